// ABOUTME: Conversation CRUD handlers - create, list, fetch, rename, delete
// ABOUTME: Fetch optionally renders assistant markdown to HTML for thin clients

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/yuin/goldmark"

	"github.com/torchlightlabs/fireside/internal/conversation"
	"github.com/torchlightlabs/fireside/internal/store"
)

// ConversationResponse is the JSON shape for conversation metadata.
type ConversationResponse struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// SummaryResponse is one entry in the conversation list.
type SummaryResponse struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at"`
}

// ListConversationsResponse is the JSON response for GET /api/conversations.
type ListConversationsResponse struct {
	Conversations []SummaryResponse `json:"conversations"`
}

// MessageResponse is the JSON shape for one message.
type MessageResponse struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentHTML string `json:"content_html,omitempty"`
	Reasoning   string `json:"reasoning,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ConversationDetailResponse is the JSON response for a conversation fetch.
type ConversationDetailResponse struct {
	ConversationResponse
	Messages []MessageResponse `json:"messages"`
}

// RenameRequest is the JSON body for PATCH .../title.
type RenameRequest struct {
	Title string `json:"title"`
}

func conversationResponse(conv *store.Conversation) ConversationResponse {
	return ConversationResponse{
		SessionID: conv.SessionID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
}

func messageResponse(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		Role:      msg.Role,
		Content:   msg.Content,
		Reasoning: msg.Reasoning,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339),
	}
}

// handleCreateConversation handles POST /api/conversations/new.
// An optional JSON body may set an initial title.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	conv, err := s.manager.StartSession(r.Context())
	if err != nil {
		s.logger.Error("failed to create conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.Title != "" {
		conv, err = s.manager.Rename(r.Context(), conv.SessionID, req.Title)
		if err != nil {
			s.logger.Error("failed to set initial title", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	s.writeJSON(w, http.StatusCreated, conversationResponse(conv))
}

// handleListConversations handles GET /api/conversations?limit&offset.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r, "limit", 0)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	offset, err := parseIntParam(r, "offset", 0)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	summaries, err := s.manager.ListSessions(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := ListConversationsResponse{
		Conversations: make([]SummaryResponse, len(summaries)),
	}
	for i, sum := range summaries {
		response.Conversations[i] = SummaryResponse{
			SessionID: sum.SessionID,
			Title:     sum.Title,
			UpdatedAt: sum.UpdatedAt.Format(time.RFC3339),
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleGetConversation handles GET /api/conversations/{session_id}.
// With ?render=html each message also carries goldmark-rendered HTML.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	conv, err := s.manager.GetConversation(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	messages, err := s.manager.GetHistory(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("failed to get messages", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	renderHTML := r.URL.Query().Get("render") == "html"

	response := ConversationDetailResponse{
		ConversationResponse: conversationResponse(conv),
		Messages:             make([]MessageResponse, len(messages)),
	}
	for i, msg := range messages {
		mr := messageResponse(msg)
		if renderHTML {
			mr.ContentHTML = s.renderMarkdown(msg.Content)
		}
		response.Messages[i] = mr
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleRenameConversation handles PATCH /api/conversations/{session_id}/title.
func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv, err := s.manager.Rename(r.Context(), sessionID, req.Title)
	switch {
	case errors.Is(err, conversation.ErrEmptyTitle):
		s.sendJSONError(w, http.StatusBadRequest, "title is required")
		return
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	case err != nil:
		s.logger.Error("failed to rename conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, conversationResponse(conv))
}

// handleDeleteConversation handles DELETE /api/conversations/{session_id}.
// An in-flight generation is cancelled and drained before the history goes.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	if err := s.streamer.CancelWait(r.Context(), sessionID); err != nil {
		s.logger.Error("failed to cancel active generation", "error", err, "session_id", sessionID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	deleted, err := s.manager.Remove(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("failed to delete conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !deleted {
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// renderMarkdown converts message markdown to HTML. Render failures fall
// back to an empty string; the raw content is always present alongside.
func (s *Server) renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		s.logger.Error("failed to render markdown", "error", err)
		return ""
	}
	return buf.String()
}

// parseIntParam reads a non-negative integer query parameter.
func parseIntParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0, errors.New("invalid integer")
	}
	return parsed, nil
}
