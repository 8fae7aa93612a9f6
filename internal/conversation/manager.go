// ABOUTME: Manager is the central layer for session lifecycle and context assembly
// ABOUTME: All messages flow through here - stored history is the source of truth, not a side effect

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/torchlightlabs/fireside/internal/store"
)

// ErrEmptyMessage is returned when a submitted user message has no text
var ErrEmptyMessage = errors.New("message text is empty")

// ErrEmptyTitle is returned when a rename carries no title
var ErrEmptyTitle = errors.New("title is empty")

// maxTitleLen caps stored titles; longer values are truncated with an ellipsis
const maxTitleLen = 255

// autoTitleLen is how much of the first user message becomes the title
const autoTitleLen = 100

// Manager owns session lifecycle and context assembly. It is the sole writer
// of the message store: user messages are appended here before generation
// starts, assistant messages are appended here once a stream finalizes.
type Manager struct {
	store  store.Store
	logger *slog.Logger
}

// NewManager creates a Manager. Pass nil logger for the default.
func NewManager(s store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  s,
		logger: logger.With("component", "conversation"),
	}
}

// StartSession creates an empty conversation with a default title and
// returns it.
func (m *Manager) StartSession(ctx context.Context) (*store.Conversation, error) {
	now := time.Now()
	conv := &store.Conversation{
		SessionID: uuid.New().String(),
		Title:     store.DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	m.logger.Debug("session started", "session_id", conv.SessionID)
	return conv, nil
}

// GetConversation returns conversation metadata.
// Returns store.ErrNotFound if the session is unknown.
func (m *Manager) GetConversation(ctx context.Context, sessionID string) (*store.Conversation, error) {
	return m.store.GetConversation(ctx, sessionID)
}

// GetHistory returns the ordered message history for a session.
// Returns store.ErrNotFound if the session is unknown.
func (m *Manager) GetHistory(ctx context.Context, sessionID string) ([]*store.Message, error) {
	return m.store.GetMessages(ctx, sessionID)
}

// SubmitUserMessage validates and appends a user message, then returns the
// full updated history (needed to build the generation prompt) along with
// the new message. The first user message in a session also sets the title,
// matching how clients expect untitled chats to name themselves.
func (m *Manager) SubmitUserMessage(ctx context.Context, sessionID, text string) ([]*store.Message, *store.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyMessage
	}

	// Load history first: NotFound surfaces before any write, and the
	// pre-append history tells us whether this is the session's first
	// user message.
	history, err := m.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	firstUserMessage := true
	for _, msg := range history {
		if msg.Role == store.RoleUser {
			firstUserMessage = false
			break
		}
	}

	msg := &store.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      store.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}
	if err := m.store.AppendMessage(ctx, msg); err != nil {
		return nil, nil, fmt.Errorf("recording user message: %w", err)
	}

	if firstUserMessage {
		title := truncateTitle(text, autoTitleLen)
		if err := m.store.UpdateTitle(ctx, sessionID, title); err != nil {
			// Title is cosmetic; the message is already recorded
			m.logger.Warn("auto-title failed", "session_id", sessionID, "error", err)
		}
	}

	m.logger.Debug("user message recorded",
		"session_id", sessionID,
		"message_id", msg.ID)

	history = append(history, msg)
	return history, msg, nil
}

// FinalizeAssistantMessage appends an assistant message with the given
// (possibly partial) content and optional reasoning text. Callers must not
// invoke it with empty content; the streaming layer enforces the
// no-empty-message policy before finalizing.
func (m *Manager) FinalizeAssistantMessage(ctx context.Context, sessionID, content, reasoning string) (*store.Message, error) {
	msg := &store.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      store.RoleAssistant,
		Content:   content,
		Reasoning: reasoning,
		CreatedAt: time.Now(),
	}
	if err := m.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording assistant message: %w", err)
	}

	m.logger.Debug("assistant message finalized",
		"session_id", sessionID,
		"message_id", msg.ID,
		"content_len", len(content))
	return msg, nil
}

// Rename sets a conversation's title and returns the updated metadata.
// Titles longer than 255 characters are truncated.
func (m *Manager) Rename(ctx context.Context, sessionID, title string) (*store.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		title = truncateTitle(title, maxTitleLen-3)
	}

	if err := m.store.UpdateTitle(ctx, sessionID, title); err != nil {
		return nil, err
	}
	return m.store.GetConversation(ctx, sessionID)
}

// truncateTitle shortens s to at most max characters plus an ellipsis.
// Cuts on rune boundaries so multi-byte titles stay valid UTF-8.
func truncateTitle(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// Remove deletes a conversation and all its messages.
// The bool reports whether anything existed to delete.
func (m *Manager) Remove(ctx context.Context, sessionID string) (bool, error) {
	deleted, err := m.store.DeleteConversation(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("deleting conversation: %w", err)
	}
	if deleted {
		m.logger.Debug("session removed", "session_id", sessionID)
	}
	return deleted, nil
}

// ListSessions returns conversation summaries ordered by recency.
func (m *Manager) ListSessions(ctx context.Context, limit, offset int) ([]*store.Summary, error) {
	return m.store.ListConversations(ctx, limit, offset)
}
