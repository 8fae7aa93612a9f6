package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func newTestConversation(id string) *Conversation {
	now := time.Now().UTC().Truncate(time.Second)
	return &Conversation{
		SessionID: id,
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLiteStore_CreateConversation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CreateConversation(ctx, newTestConversation("sess-123"))
	require.NoError(t, err)

	retrieved, err := store.GetConversation(ctx, "sess-123")
	require.NoError(t, err)
	assert.Equal(t, "sess-123", retrieved.SessionID)
	assert.Equal(t, DefaultTitle, retrieved.Title)
}

func TestSQLiteStore_CreateConversation_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateConversation(ctx, newTestConversation("sess-123")))

	err := store.CreateConversation(ctx, newTestConversation("sess-123"))
	assert.ErrorIs(t, err, ErrDuplicateSession)
}

func TestSQLiteStore_GetConversation_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetConversation(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_AppendMessage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateConversation(ctx, newTestConversation("sess-123")))

	msg := &Message{
		ID:        "msg-1",
		SessionID: "sess-123",
		Role:      RoleUser,
		Content:   "Hello",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.AppendMessage(ctx, msg))

	messages, err := store.GetMessages(ctx, "sess-123")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, RoleUser, messages[0].Role)
}

func TestSQLiteStore_AppendMessage_NoConversation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	msg := &Message{
		ID:        "msg-1",
		SessionID: "nonexistent",
		Role:      RoleUser,
		Content:   "Hello",
		CreatedAt: time.Now().UTC(),
	}
	err := store.AppendMessage(ctx, msg)
	assert.ErrorIs(t, err, ErrNotFound)

	// The orphan message must not have been written
	_, err = store.GetMessages(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_AppendMessage_BumpsUpdatedAt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	conv := newTestConversation("sess-123")
	conv.UpdatedAt = conv.UpdatedAt.Add(-time.Hour)
	conv.CreatedAt = conv.CreatedAt.Add(-time.Hour)
	require.NoError(t, store.CreateConversation(ctx, conv))

	before, err := store.GetConversation(ctx, "sess-123")
	require.NoError(t, err)

	msg := &Message{
		ID:        "msg-1",
		SessionID: "sess-123",
		Role:      RoleUser,
		Content:   "Hello",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.AppendMessage(ctx, msg))

	after, err := store.GetConversation(ctx, "sess-123")
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt),
		"updated_at should advance on message append")
}

func TestSQLiteStore_GetMessages_Order(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateConversation(ctx, newTestConversation("sess-123")))

	// All appended within the same instant; rowid order must still hold
	now := time.Now().UTC()
	for i, content := range []string{"first", "second", "third"} {
		msg := &Message{
			ID:        fmt.Sprintf("msg-%d", i),
			SessionID: "sess-123",
			Role:      RoleUser,
			Content:   content,
			CreatedAt: now,
		}
		require.NoError(t, store.AppendMessage(ctx, msg))
	}

	messages, err := store.GetMessages(ctx, "sess-123")
	require.NoError(t, err)
	require.Len(t, messages, 3)

	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "third", messages[2].Content)
}

func TestSQLiteStore_GetMessages_EmptyConversation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateConversation(ctx, newTestConversation("sess-123")))

	messages, err := store.GetMessages(ctx, "sess-123")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestSQLiteStore_MessageReasoning(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateConversation(ctx, newTestConversation("sess-123")))

	msg := &Message{
		ID:        "msg-1",
		SessionID: "sess-123",
		Role:      RoleAssistant,
		Content:   "The answer is 4.",
		Reasoning: "2+2 is basic arithmetic.",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.AppendMessage(ctx, msg))

	messages, err := store.GetMessages(ctx, "sess-123")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "2+2 is basic arithmetic.", messages[0].Reasoning)
}

func TestSQLiteStore_DeleteConversation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateConversation(ctx, newTestConversation("sess-123")))
	require.NoError(t, store.AppendMessage(ctx, &Message{
		ID:        "msg-1",
		SessionID: "sess-123",
		Role:      RoleUser,
		Content:   "Hello",
		CreatedAt: time.Now().UTC(),
	}))

	deleted, err := store.DeleteConversation(ctx, "sess-123")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.GetConversation(ctx, "sess-123")
	assert.ErrorIs(t, err, ErrNotFound)

	// Messages went with the conversation
	_, err = store.GetMessages(ctx, "sess-123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DeleteConversation_Absent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	deleted, err := store.DeleteConversation(ctx, "nonexistent")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSQLiteStore_UpdateTitle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	conv := newTestConversation("sess-123")
	conv.UpdatedAt = conv.UpdatedAt.Add(-time.Hour)
	require.NoError(t, store.CreateConversation(ctx, conv))

	require.NoError(t, store.UpdateTitle(ctx, "sess-123", "My Chat"))

	retrieved, err := store.GetConversation(ctx, "sess-123")
	require.NoError(t, err)
	assert.Equal(t, "My Chat", retrieved.Title)
	assert.True(t, retrieved.UpdatedAt.After(conv.UpdatedAt),
		"updated_at should advance on title change")
}

func TestSQLiteStore_UpdateTitle_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.UpdateTitle(ctx, "nonexistent", "My Chat")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListConversations_Recency(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		conv := &Conversation{
			SessionID: fmt.Sprintf("sess-%d", i),
			Title:     fmt.Sprintf("chat %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.CreateConversation(ctx, conv))
	}

	summaries, err := store.ListConversations(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	// Most recently updated first
	assert.Equal(t, "sess-2", summaries[0].SessionID)
	assert.Equal(t, "sess-1", summaries[1].SessionID)
	assert.Equal(t, "sess-0", summaries[2].SessionID)
}

func TestSQLiteStore_ListConversations_LimitOffset(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		conv := &Conversation{
			SessionID: fmt.Sprintf("sess-%d", i),
			Title:     "chat",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.CreateConversation(ctx, conv))
	}

	page, err := store.ListConversations(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "sess-3", page[0].SessionID)
	assert.Equal(t, "sess-2", page[1].SessionID)
}
