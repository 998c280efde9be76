// Package messages is the channel message store.
package messages

import (
	"context"
	"time"
)

// Message is a single channel or direct message.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	Content     string    `json:"content"`
	Channel     string    `json:"channel"`
	RecipientID string    `json:"recipient_id,omitempty"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
}

// TypeText is the default message type; the AI layer also writes
// TypeSystem notices.
const (
	TypeText   = "text"
	TypeSystem = "system"
)

// Store is the message storage contract.
type Store interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, senderID, content, channel, recipientID, msgType string) (*Message, error)
	// GetChannelMessages returns up to limit messages for a channel,
	// newest first.
	GetChannelMessages(ctx context.Context, channel string, limit int) ([]*Message, error)
	Count(ctx context.Context) (int, error)
}
