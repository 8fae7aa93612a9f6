// ABOUTME: HTTP API server wiring conversations, streaming, audio, and metrics
// ABOUTME: Routes use method-qualified ServeMux patterns; handlers live in sibling files

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/torchlightlabs/fireside/internal/audio"
	"github.com/torchlightlabs/fireside/internal/conversation"
	"github.com/torchlightlabs/fireside/internal/streamer"
)

// Options configure optional server features.
type Options struct {
	// Audio enables the transcription and speech endpoints. Nil disables
	// them (they return 404).
	Audio *audio.Service

	// MetricsPath mounts the metrics handler when MetricsHandler is set.
	MetricsPath    string
	MetricsHandler http.Handler
}

// Server is the HTTP API for conversation and streaming operations.
type Server struct {
	manager  *conversation.Manager
	streamer *streamer.Controller
	audio    *audio.Service
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a Server and registers its routes.
func New(manager *conversation.Manager, ctrl *streamer.Controller, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		manager:  manager,
		streamer: ctrl,
		audio:    opts.Audio,
		logger:   logger.With("component", "server"),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/ping", s.handlePing)

	s.mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	s.mux.HandleFunc("POST /api/conversations/new", s.handleCreateConversation)
	s.mux.HandleFunc("GET /api/conversations/{session_id}", s.handleGetConversation)
	s.mux.HandleFunc("DELETE /api/conversations/{session_id}", s.handleDeleteConversation)
	s.mux.HandleFunc("PATCH /api/conversations/{session_id}/title", s.handleRenameConversation)

	s.mux.HandleFunc("POST /api/conversations/{session_id}/message", s.handleSendMessage)
	s.mux.HandleFunc("GET /api/conversations/{session_id}/stream", s.handleStream)
	s.mux.HandleFunc("POST /api/conversations/{session_id}/cancel", s.handleCancel)

	if s.audio != nil {
		s.mux.HandleFunc("POST /api/audio/transcriptions", s.handleTranscription)
		s.mux.HandleFunc("POST /api/audio/speech", s.handleSpeech)
	}

	if opts.MetricsHandler != nil && opts.MetricsPath != "" {
		s.mux.Handle("GET "+opts.MetricsPath, opts.MetricsHandler)
	}

	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// handlePing handles GET /api/ping.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"response": "pong"})
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
