// ABOUTME: Tests for the audio HTTP endpoints
// ABOUTME: Wires a real audio service against a fake OpenAI-compatible upstream

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torchlightlabs/fireside/internal/audio"
)

func fakeAudioUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "spoken words"})
	})
	mux.HandleFunc("POST /audio/speech", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-data"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newAudioEnv(t *testing.T) *testEnv {
	t.Helper()
	upstream := fakeAudioUpstream(t)
	svc := audio.NewService(audio.Config{
		BaseURL:  upstream.URL,
		STTModel: "whisper-1",
		TTSModel: "tts-1",
	}, nil)
	return newTestEnv(t, &scriptedGenerator{}, Options{Audio: svc})
}

func TestServer_Transcription(t *testing.T) {
	env := newAudioEnv(t)

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "clip.wav")
	require.NoError(t, err)
	part.Write([]byte("fake-wav-bytes"))
	require.NoError(t, writer.Close())

	resp, err := http.Post(env.srv.URL+"/api/audio/transcriptions", writer.FormDataContentType(), &form)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"spoken words"}`, string(body))
}

func TestServer_TranscriptionMissingFile(t *testing.T) {
	env := newAudioEnv(t)

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	require.NoError(t, writer.WriteField("model", "whisper-1"))
	require.NoError(t, writer.Close())

	resp, err := http.Post(env.srv.URL+"/api/audio/transcriptions", writer.FormDataContentType(), &form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Speech(t *testing.T) {
	env := newAudioEnv(t)

	resp, body := env.request(t, http.MethodPost, "/api/audio/speech",
		SpeechRequest{Input: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "mp3-data", string(body))
}

func TestServer_SpeechEmptyInput(t *testing.T) {
	env := newAudioEnv(t)

	resp, _ := env.request(t, http.MethodPost, "/api/audio/speech",
		SpeechRequest{Input: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
