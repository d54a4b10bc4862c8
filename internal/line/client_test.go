package line

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"restaurant_booking_backend/internal/messaging"
)

func TestConvertEvent(t *testing.T) {
	tests := []struct {
		name   string
		event  webhook.EventInterface
		wantOK bool
		want   messaging.InboundEvent
	}{
		{
			name: "text message",
			event: webhook.MessageEvent{
				WebhookEventId:  "01HEVENT1",
				ReplyToken:      "rt-1",
				Source:          webhook.UserSource{UserId: "U1"},
				Message:         webhook.TextMessageContent{Id: "m1", Text: "book"},
				DeliveryContext: &webhook.DeliveryContext{IsRedelivery: true},
			},
			wantOK: true,
			want:   messaging.InboundEvent{ID: "01HEVENT1", Type: messaging.EventText, UserID: "U1", ReplyToken: "rt-1", Text: "book", Redelivery: true},
		},
		{
			name: "postback from a group member",
			event: webhook.PostbackEvent{
				WebhookEventId: "01HEVENT2",
				ReplyToken:     "rt-2",
				Source:         webhook.GroupSource{GroupId: "G1", UserId: "U2"},
				Postback:       &webhook.PostbackContent{Data: "action=staff_confirm&booking=4"},
			},
			wantOK: true,
			want:   messaging.InboundEvent{ID: "01HEVENT2", Type: messaging.EventPostback, UserID: "U2", ReplyToken: "rt-2", Data: "action=staff_confirm&booking=4"},
		},
		{
			name:   "follow",
			event:  webhook.FollowEvent{WebhookEventId: "01HEVENT3", ReplyToken: "rt-3", Source: webhook.UserSource{UserId: "U3"}},
			wantOK: true,
			want:   messaging.InboundEvent{ID: "01HEVENT3", Type: messaging.EventFollow, UserID: "U3", ReplyToken: "rt-3"},
		},
		{
			name:  "sticker is ignored",
			event: webhook.MessageEvent{Source: webhook.UserSource{UserId: "U1"}, Message: webhook.StickerMessageContent{Id: "s1"}},
		},
		{
			name:  "postback without content",
			event: webhook.PostbackEvent{Source: webhook.UserSource{UserId: "U1"}},
		},
		{
			name:  "unfollow",
			event: webhook.UnfollowEvent{Source: webhook.UserSource{UserId: "U1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertEvent(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("event = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToLineMessages(t *testing.T) {
	choices := make([]messaging.Choice, 0, 15)
	for i := 0; i < 15; i++ {
		choices = append(choices, messaging.Choice{Label: "Table T4 by the window (4 seats)", Data: "action=booking_confirm"})
	}
	out := toLineMessages([]messaging.Message{
		{ImageURL: "https://example.com/plan.png"},
		messaging.Text("Pick one:", choices...),
	})
	if len(out) != 2 {
		t.Fatalf("messages = %d, want 2", len(out))
	}
	img, ok := out[0].(messaging_api.ImageMessage)
	if !ok || img.OriginalContentUrl != "https://example.com/plan.png" || img.PreviewImageUrl != img.OriginalContentUrl {
		t.Errorf("image = %+v", out[0])
	}
	text, ok := out[1].(messaging_api.TextMessage)
	if !ok || text.QuickReply == nil {
		t.Fatalf("text = %+v", out[1])
	}
	if len(text.QuickReply.Items) != messaging.MaxQuickReplyItems {
		t.Errorf("quick reply items = %d, want %d", len(text.QuickReply.Items), messaging.MaxQuickReplyItems)
	}
	action, ok := text.QuickReply.Items[0].Action.(messaging_api.PostbackAction)
	if !ok || len([]rune(action.Label)) != maxLabelRunes {
		t.Errorf("action = %+v, want label cut to %d runes", text.QuickReply.Items[0].Action, maxLabelRunes)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	if got := truncate("จองโต๊ะวันนี้", 4); got != "จองโ" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 20); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}

func TestParseEventsRejectsBadSignature(t *testing.T) {
	c := &Client{secret: "channel-secret"}
	req := httptest.NewRequest("POST", "/webhook/line", strings.NewReader(`{"destination":"U0","events":[]}`))
	req.Header.Set("X-Line-Signature", "bm90LWEtc2lnbmF0dXJl")

	if _, err := c.ParseEvents(req); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("error = %v, want ErrInvalidSignature", err)
	}
}

func TestIsReplyTokenError(t *testing.T) {
	if !isReplyTokenError(errors.New(`unexpected status code: 400, {"message":"Invalid reply token"}`)) {
		t.Error("expected reply token error to be recognised")
	}
	if isReplyTokenError(errors.New("unexpected status code: 500")) {
		t.Error("server error classified as reply token error")
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := newClient("secret", "token", messaging_api.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestReplyStopsWhenContextEnds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.Reply(ctx, "rt-1", messaging.Text("hello"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("reply took %v after the deadline", elapsed)
	}
}

func TestPushStopsWhenContextEnds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Push(ctx, "U1", messaging.Text("hello")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestReplyMapsUsedToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/message/reply" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("authorization = %q", got)
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid reply token"}`))
	})

	err := c.Reply(context.Background(), "rt-used", messaging.Text("hello"))
	if !errors.Is(err, messaging.ErrReplyTokenUsed) {
		t.Errorf("error = %v, want ErrReplyTokenUsed", err)
	}
}
