// ABOUTME: Audio endpoints - speech-to-text transcription and text-to-speech synthesis
// ABOUTME: Registered only when audio is enabled in configuration

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/torchlightlabs/fireside/internal/audio"
)

// maxAudioUpload caps transcription uploads at 25 MB, matching the
// OpenAI API limit.
const maxAudioUpload = 25 << 20

// TranscriptionResponse is the JSON response for POST /api/audio/transcriptions.
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// SpeechRequest is the JSON body for POST /api/audio/speech.
type SpeechRequest struct {
	Input string `json:"input"`
	Voice string `json:"voice,omitempty"`
}

// handleTranscription handles POST /api/audio/transcriptions.
// Expects a multipart form with the audio payload in the "file" field.
func (s *Server) handleTranscription(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	text, err := s.audio.Transcribe(r.Context(), file, header.Filename)
	if err != nil {
		s.logger.Error("transcription failed", "error", err)
		s.sendJSONError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	s.writeJSON(w, http.StatusOK, TranscriptionResponse{Text: text})
}

// handleSpeech handles POST /api/audio/speech. Streams MP3 bytes back.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	speech, err := s.audio.Synthesize(r.Context(), req.Input, req.Voice)
	if errors.Is(err, audio.ErrEmptyText) {
		s.sendJSONError(w, http.StatusBadRequest, "input is required")
		return
	}
	if err != nil {
		s.logger.Error("speech synthesis failed", "error", err)
		s.sendJSONError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}
	defer speech.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	if _, err := io.Copy(w, speech); err != nil {
		s.logger.Error("failed to stream speech response", "error", err)
	}
}
