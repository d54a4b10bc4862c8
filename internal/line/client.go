// Package line adapts the LINE Messaging API to the channel-neutral messaging model.
package line

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"restaurant_booking_backend/internal/messaging"
	"restaurant_booking_backend/pkg/utils"
)

const (
	maxMessagesPerCall = 5
	maxLabelRunes      = 20
	maxTextRunes       = 5000
)

// ErrInvalidSignature is returned when the X-Line-Signature header does not match the body.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Client sends messages and parses webhooks for one LINE channel.
type Client struct {
	api    *messaging_api.MessagingApiAPI
	secret string
}

// NewClient creates a client for the channel identified by secret and access token.
func NewClient(channelSecret, channelToken string) (*Client, error) {
	return newClient(channelSecret, channelToken)
}

func newClient(channelSecret, channelToken string, opts ...messaging_api.MessagingApiAPIOption) (*Client, error) {
	if channelSecret == "" || channelToken == "" {
		return nil, errors.New("line channel secret and token are required")
	}
	api, err := messaging_api.NewMessagingApiAPI(channelToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("line client: %w", err)
	}
	return &Client{api: api, secret: channelSecret}, nil
}

// Reply answers an event with its reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs ...messaging.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.withContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   toLineMessages(msgs),
	})
	if err != nil {
		if isReplyTokenError(err) {
			return fmt.Errorf("line reply: %w", messaging.ErrReplyTokenUsed)
		}
		return fmt.Errorf("line reply: %w", err)
	}
	return nil
}

// Push sends messages to a user outside of a reply.
func (c *Client) Push(ctx context.Context, userID string, msgs ...messaging.Message) error {
	for start := 0; start < len(msgs); start += maxMessagesPerCall {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + maxMessagesPerCall
		if end > len(msgs) {
			end = len(msgs)
		}
		_, err := c.withContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
			To:       userID,
			Messages: toLineMessages(msgs[start:end]),
		}, "")
		if err != nil {
			return fmt.Errorf("line push to %s: %w", userID, err)
		}
	}
	return nil
}

// withContext binds ctx to a per-call copy of the API client; the SDK's WithContext mutates its receiver.
func (c *Client) withContext(ctx context.Context) *messaging_api.MessagingApiAPI {
	api := *c.api
	return api.WithContext(ctx)
}

// ParseEvents verifies the request signature and converts supported events.
func (c *Client) ParseEvents(r *http.Request) ([]messaging.InboundEvent, error) {
	cb, err := webhook.ParseRequest(c.secret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("parse line webhook: %w", err)
	}

	events := make([]messaging.InboundEvent, 0, len(cb.Events))
	for _, e := range cb.Events {
		ev, ok := convertEvent(e)
		if !ok {
			utils.LogDebug("unsupported line event skipped", map[string]interface{}{"event": fmt.Sprintf("%T", e)})
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func convertEvent(e webhook.EventInterface) (messaging.InboundEvent, bool) {
	switch ev := e.(type) {
	case webhook.MessageEvent:
		text, ok := ev.Message.(webhook.TextMessageContent)
		if !ok {
			return messaging.InboundEvent{}, false
		}
		return messaging.InboundEvent{
			ID:         ev.WebhookEventId,
			Type:       messaging.EventText,
			UserID:     sourceUserID(ev.Source),
			ReplyToken: ev.ReplyToken,
			Text:       text.Text,
			Redelivery: isRedelivery(ev.DeliveryContext),
		}, true
	case webhook.PostbackEvent:
		if ev.Postback == nil {
			return messaging.InboundEvent{}, false
		}
		return messaging.InboundEvent{
			ID:         ev.WebhookEventId,
			Type:       messaging.EventPostback,
			UserID:     sourceUserID(ev.Source),
			ReplyToken: ev.ReplyToken,
			Data:       ev.Postback.Data,
			Redelivery: isRedelivery(ev.DeliveryContext),
		}, true
	case webhook.FollowEvent:
		return messaging.InboundEvent{
			ID:         ev.WebhookEventId,
			Type:       messaging.EventFollow,
			UserID:     sourceUserID(ev.Source),
			ReplyToken: ev.ReplyToken,
			Redelivery: isRedelivery(ev.DeliveryContext),
		}, true
	}
	return messaging.InboundEvent{}, false
}

func sourceUserID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}

func isRedelivery(dc *webhook.DeliveryContext) bool {
	return dc != nil && dc.IsRedelivery
}

func toLineMessages(msgs []messaging.Message) []messaging_api.MessageInterface {
	out := make([]messaging_api.MessageInterface, 0, len(msgs))
	for _, m := range msgs {
		if m.ImageURL != "" {
			out = append(out, messaging_api.ImageMessage{
				OriginalContentUrl: m.ImageURL,
				PreviewImageUrl:    m.ImageURL,
			})
			continue
		}
		msg := messaging_api.TextMessage{Text: truncate(m.Text, maxTextRunes)}
		if len(m.Choices) > 0 {
			msg.QuickReply = quickReply(m.Choices)
		}
		out = append(out, msg)
	}
	return out
}

func quickReply(choices []messaging.Choice) *messaging_api.QuickReply {
	if len(choices) > messaging.MaxQuickReplyItems {
		choices = choices[:messaging.MaxQuickReplyItems]
	}
	items := make([]messaging_api.QuickReplyItem, 0, len(choices))
	for _, ch := range choices {
		items = append(items, messaging_api.QuickReplyItem{
			Action: messaging_api.PostbackAction{
				Label:       truncate(ch.Label, maxLabelRunes),
				Data:        ch.Data,
				DisplayText: ch.DisplayText,
			},
		})
	}
	return &messaging_api.QuickReply{Items: items}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func isReplyTokenError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "invalid reply token")
}
