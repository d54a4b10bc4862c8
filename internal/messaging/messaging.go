// Package messaging holds the channel-neutral message model shared by the chat flow,
// the LINE adapter and the notifiers.
package messaging

import (
	"context"
	"errors"
)

// MaxQuickReplyItems is the per-message limit of selectable choices on the chat channel.
const MaxQuickReplyItems = 13

// ErrReplyTokenUsed is returned when a reply token was already consumed or expired.
// It must be swallowed, never retried.
var ErrReplyTokenUsed = errors.New("reply token already used")

// Choice is a selectable button whose Data is a continuation payload.
type Choice struct {
	Label       string
	Data        string
	DisplayText string
}

// Message is one outbound message: text with optional choices, or an image.
type Message struct {
	Text     string
	ImageURL string
	Choices  []Choice
}

// Text builds a plain text message.
func Text(text string, choices ...Choice) Message {
	return Message{Text: text, Choices: choices}
}

// Messenger delivers messages over the chat channel.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, msgs ...Message) error
	Push(ctx context.Context, userID string, msgs ...Message) error
}

// EventType is the kind of inbound chat event.
type EventType string

const (
	EventText     EventType = "text"
	EventPostback EventType = "postback"
	EventFollow   EventType = "follow"
)

// InboundEvent is a parsed chat webhook event.
type InboundEvent struct {
	ID         string
	Type       EventType
	UserID     string
	ReplyToken string
	Text       string
	Data       string
	Redelivery bool
}
