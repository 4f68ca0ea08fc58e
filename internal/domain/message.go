package domain

import (
	"context"
	"time"
)

// Message is a single immutable chat entry. IDs are assigned by the
// database sequence, so within a room they increase in insert order.
type Message struct {
	ID         int64     `json:"messageId"`
	RoomID     int64     `json:"roomId"`
	SenderID   int64     `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MessageRepository defines data access for the per-room message log.
type MessageRepository interface {
	// Append persists the message and, in the same transaction, updates
	// the room's lastMessageAt, lastMessagePreview and the sender's
	// read marker. Either everything commits or nothing does.
	Append(ctx context.Context, message *Message) error
	// RecentByRoom returns up to limit of the newest messages in the
	// room, in ascending chronological order.
	RecentByRoom(ctx context.Context, roomID int64, limit int) ([]*Message, error)
}
