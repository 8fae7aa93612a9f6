// ABOUTME: Tests for the audio service adapter
// ABOUTME: Runs against a fake OpenAI-compatible audio server

package audio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAudioServer implements just enough of the OpenAI audio API.
func fakeAudioServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") == "" {
			http.Error(w, "missing model", http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "hello from audio"})
	})

	mux.HandleFunc("POST /audio/speech", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes:" + req.Input))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	srv := fakeAudioServer(t)
	return NewService(Config{
		BaseURL:  srv.URL,
		STTModel: "whisper-1",
		TTSModel: "tts-1",
	}, nil)
}

func TestService_Transcribe(t *testing.T) {
	svc := newTestService(t)

	text, err := svc.Transcribe(context.Background(), strings.NewReader("fake-wav"), "clip.wav")
	require.NoError(t, err)
	assert.Equal(t, "hello from audio", text)
}

func TestService_Synthesize(t *testing.T) {
	svc := newTestService(t)

	rc, err := svc.Synthesize(context.Background(), "say this", "")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes:say this", string(data))
}

func TestService_SynthesizeEmptyText(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Synthesize(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestService_BackendDown(t *testing.T) {
	srv := fakeAudioServer(t)
	url := srv.URL
	srv.Close()

	svc := NewService(Config{BaseURL: url, STTModel: "whisper-1", TTSModel: "tts-1"}, nil)

	_, err := svc.Transcribe(context.Background(), strings.NewReader("x"), "clip.wav")
	assert.Error(t, err)

	_, err = svc.Synthesize(context.Background(), "x", "")
	assert.Error(t, err)
}
