// ABOUTME: Generation endpoints - blocking send, SSE streaming, and cancel
// ABOUTME: SSE events mirror the run's event stream one-to-one

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/torchlightlabs/fireside/internal/conversation"
	"github.com/torchlightlabs/fireside/internal/engine"
	"github.com/torchlightlabs/fireside/internal/store"
	"github.com/torchlightlabs/fireside/internal/streamer"
)

// SendMessageRequest is the JSON body for POST .../message.
type SendMessageRequest struct {
	Content  string `json:"content"`
	Thinking bool   `json:"thinking"`
}

// SendMessageResponse is the JSON response for the blocking send endpoint.
type SendMessageResponse struct {
	Status  string           `json:"status"` // "completed" or "cancelled"
	Message *MessageResponse `json:"message"`
}

// handleSendMessage handles POST /api/conversations/{session_id}/message.
// It submits the user message, waits for the full generation, and returns
// the finalized assistant message.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	run, err := s.streamer.Submit(r.Context(), sessionID, req.Content, req.Thinking)
	if err != nil {
		s.sendSubmitError(w, err)
		return
	}

	msg, err := run.Wait(r.Context())
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, sendMessageResponse("completed", msg))
	case errors.Is(err, streamer.ErrCancelled):
		s.writeJSON(w, http.StatusOK, sendMessageResponse("cancelled", msg))
	case engine.IsUnavailable(err):
		s.sendJSONError(w, http.StatusBadGateway, "model backend unavailable")
	case engine.IsNoOutput(err):
		s.sendJSONError(w, http.StatusBadGateway, "model produced no output")
	default:
		s.logger.Error("generation failed", "error", err, "session_id", sessionID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func sendMessageResponse(status string, msg *store.Message) SendMessageResponse {
	resp := SendMessageResponse{Status: status}
	if msg != nil {
		mr := messageResponse(msg)
		resp.Message = &mr
	}
	return resp
}

// handleStream handles GET /api/conversations/{session_id}/stream.
// The prompt travels as a query parameter so EventSource clients work
// without a body. Fragments stream as SSE events; the connection closes
// after the terminal event. Client disconnect cancels the generation.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	prompt := r.URL.Query().Get("prompt")
	thinking := r.URL.Query().Get("thinking") == "true"

	// Fail fast before committing to the SSE content type.
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	run, err := s.streamer.Submit(r.Context(), sessionID, prompt, thinking)
	if err != nil {
		s.sendSubmitError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	s.writeSSEEvent(w, "started", map[string]string{
		"session_id": sessionID,
		"message_id": run.UserMessage.ID,
	})
	flusher.Flush()

	for ev := range run.Events() {
		s.writeSSEEvent(w, ev.Type.String(), eventPayload(ev))
		flusher.Flush()
	}
}

// eventPayload converts a run event to its SSE data object.
func eventPayload(ev streamer.Event) any {
	switch ev.Type {
	case streamer.EventFragment, streamer.EventThinking:
		return map[string]string{"text": ev.Text}
	case streamer.EventDone, streamer.EventCancelled:
		data := map[string]any{}
		if ev.Message != nil {
			data["message"] = messageResponse(ev.Message)
		}
		return data
	case streamer.EventError:
		data := map[string]any{"error": ev.Err.Error()}
		if ev.Message != nil {
			data["message"] = messageResponse(ev.Message)
		}
		return data
	default:
		return map[string]string{"text": ev.Text}
	}
}

// handleCancel handles POST /api/conversations/{session_id}/cancel.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	if _, err := s.manager.GetConversation(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("failed to get conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	cancelled := s.streamer.Cancel(sessionID)
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// sendSubmitError maps controller submit failures to HTTP statuses.
func (s *Server) sendSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		s.sendJSONError(w, http.StatusBadRequest, "content is required")
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, streamer.ErrSessionBusy):
		s.sendJSONError(w, http.StatusConflict, "a generation is already running for this conversation")
	default:
		s.logger.Error("failed to submit message", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}
