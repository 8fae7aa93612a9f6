// ABOUTME: Store interface and data types for fireside persistence
// ABOUTME: Defines Conversation, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateSession is returned when trying to create a conversation whose
// session ID is already taken
var ErrDuplicateSession = errors.New("session already exists")

// DefaultTitle is the placeholder title assigned to new conversations until
// an explicit title is set or the first user message provides one.
const DefaultTitle = "New Conversation"

// Role constants for message authorship
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation represents one persistent chat session
type Conversation struct {
	SessionID string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary is the listing view of a conversation (no messages)
type Summary struct {
	SessionID string
	Title     string
	UpdatedAt time.Time
}

// Message represents a single message within a conversation.
// Content is immutable once persisted. Reasoning holds accumulated thinking
// text for assistant messages and is empty for user messages.
type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Reasoning string
	CreatedAt time.Time
}

// Store defines the interface for conversation and message persistence.
// Mutating operations are atomic with respect to concurrent readers: a
// partially-appended message is never visible.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, sessionID string) (*Conversation, error)
	ListConversations(ctx context.Context, limit, offset int) ([]*Summary, error)
	UpdateTitle(ctx context.Context, sessionID, title string) error

	// DeleteConversation removes the conversation and all its messages in a
	// single transaction. The bool reports whether anything was deleted.
	DeleteConversation(ctx context.Context, sessionID string) (bool, error)

	// Messages (append-only, insertion order preserved on read)
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessages(ctx context.Context, sessionID string) ([]*Message, error)

	// Close releases any resources held by the store
	Close() error
}
