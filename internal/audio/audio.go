// ABOUTME: Speech-to-text and text-to-speech over an OpenAI-compatible audio API
// ABOUTME: Thin adapter so handlers never touch the wire protocol directly

package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyText is returned when synthesis is requested with no text.
var ErrEmptyText = errors.New("synthesis text is empty")

// Config holds the audio backend settings.
type Config struct {
	BaseURL  string
	APIKey   string
	STTModel string
	TTSModel string
	Voice    string
}

// Service provides transcription and speech synthesis against any server
// that speaks the OpenAI audio API.
type Service struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewService creates a Service. Pass nil logger for the default.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Service{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.With("component", "audio"),
	}
}

// Transcribe converts spoken audio into text. The filename carries the
// format hint (extension) the backend uses to decode the payload.
func (s *Service) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.cfg.STTModel,
		Reader:   audio,
		FilePath: filename,
	})
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}

	s.logger.Debug("audio transcribed", "text_len", len(resp.Text))
	return resp.Text, nil
}

// Synthesize converts text into spoken audio (MP3). An empty voice uses
// the configured default. The caller owns the returned reader and must
// close it.
func (s *Service) Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if voice == "" {
		voice = s.cfg.Voice
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.cfg.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesizing speech: %w", err)
	}

	s.logger.Debug("speech synthesized", "text_len", len(text))
	return resp, nil
}
