// Package transport abstracts the chat platform the moderation pipeline
// runs against. The service layer speaks only to the Chat interface, so a
// Telegram adapter, a Matrix adapter or the in-memory fake used by tests
// are interchangeable.
package transport

import (
	"context"
	"time"
)

// Message is a platform-neutral view of one inbound group message.
type Message struct {
	ChatID       int64
	MessageID    int64
	SenderID     int64
	SenderHandle string // without the leading @
	SenderName   string
	Text         string
	HasLink      bool
	IsForward    bool
	// MentionIDs maps lower-cased mentioned handles to numeric user ids
	// when the platform already resolved them. Unresolved handles are
	// simply absent.
	MentionIDs map[string]int64
	Timestamp  time.Time
}

// Delivery describes an outbound message.
type Delivery struct {
	ChatID  int64
	ReplyTo int64 // 0 means no reply threading
	Text    string
}

// Poll describes a yes/no poll posted in place of a vouch request.
type Poll struct {
	ChatID   int64
	Question string
	Options  []string
}

// Chat is the outbound surface the services need from the platform.
// Implementations must be safe for concurrent use.
type Chat interface {
	// Deliver posts a message and returns the platform message id.
	Deliver(ctx context.Context, d Delivery) (int64, error)
	// Delete removes a message. Deleting an already-gone message must
	// not be treated as an error by callers.
	Delete(ctx context.Context, chatID, messageID int64) error
	// Restrict mutes a user in a chat for the given duration.
	Restrict(ctx context.Context, chatID, userID int64, d time.Duration) error
	// CreatePoll posts a poll and returns its message id.
	CreatePoll(ctx context.Context, p Poll) (int64, error)
}
