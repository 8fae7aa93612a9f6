// ABOUTME: In-memory Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store implementation for testing.
type MemStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by session ID
	messages      map[string][]*Message    // keyed by session ID, insertion order
}

// NewMemStore creates a new MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
	}
}

// CreateConversation stores a new conversation.
func (m *MemStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.SessionID]; exists {
		return ErrDuplicateSession
	}

	// Make a copy to avoid external modification
	c := *conv
	m.conversations[c.SessionID] = &c
	return nil
}

// GetConversation retrieves a conversation by session ID.
func (m *MemStore) GetConversation(ctx context.Context, sessionID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	result := *c
	return &result, nil
}

// ListConversations retrieves summaries ordered by most recent activity.
func (m *MemStore) ListConversations(ctx context.Context, limit, offset int) ([]*Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	all := make([]*Summary, 0, len(m.conversations))
	for _, c := range m.conversations {
		all = append(all, &Summary{
			SessionID: c.SessionID,
			Title:     c.Title,
			UpdatedAt: c.UpdatedAt,
		})
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// UpdateTitle sets a conversation's title and bumps updated_at.
func (m *MemStore) UpdateTitle(ctx context.Context, sessionID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[sessionID]
	if !ok {
		return ErrNotFound
	}

	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteConversation removes a conversation and all its messages.
func (m *MemStore) DeleteConversation(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[sessionID]; !ok {
		return false, nil
	}

	delete(m.conversations, sessionID)
	delete(m.messages, sessionID)
	return true, nil
}

// AppendMessage appends a message and bumps the conversation's updated_at.
func (m *MemStore) AppendMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[msg.SessionID]
	if !ok {
		return ErrNotFound
	}

	cp := *msg
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &cp)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// GetMessages returns all messages for a conversation in insertion order.
func (m *MemStore) GetMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.conversations[sessionID]; !ok {
		return nil, ErrNotFound
	}

	msgs := m.messages[sessionID]
	result := make([]*Message, len(msgs))
	for i, msg := range msgs {
		cp := *msg
		result[i] = &cp
	}
	return result, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
