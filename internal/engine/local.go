// ABOUTME: Generator implementation speaking the OpenAI streaming protocol
// ABOUTME: Targets a locally hosted model server (llama.cpp, vLLM, Ollama) via base_url

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/torchlightlabs/fireside/internal/store"
)

// Config holds the local model server settings.
type Config struct {
	BaseURL     string
	APIKey      string // most local servers ignore this; sent if set
	Model       string
	MaxTokens   int
	Temperature float32
}

// LocalEngine implements Generator against an OpenAI-compatible
// chat-completions endpoint.
type LocalEngine struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewLocalEngine creates a LocalEngine. Pass nil logger for the default.
func NewLocalEngine(cfg Config, logger *slog.Logger) *LocalEngine {
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &LocalEngine{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.With("component", "engine"),
	}
}

// Generate submits the conversation context and returns a lazy fragment
// stream. Cancelling ctx aborts generation on the backend.
func (e *LocalEngine) Generate(ctx context.Context, req Request) (Stream, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		Messages:    convertMessages(req.Messages),
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Stream:      true,
	}

	upstream, err := e.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &GenerationError{Kind: KindUnavailable, Err: err}
	}

	e.logger.Debug("generation stream opened",
		"model", e.cfg.Model,
		"context_len", len(req.Messages))

	return &tokenStream{
		upstream: upstream,
		thinking: req.Thinking,
		ctx:      ctx,
	}, nil
}

// convertMessages maps stored messages onto the wire format. Reasoning text
// is never replayed into the prompt; only content counts as context.
func convertMessages(messages []*store.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == store.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return out
}

// chunkReceiver is the slice of *openai.ChatCompletionStream the tokenStream
// depends on; tests substitute a scripted fake.
type chunkReceiver interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// tokenStream adapts the OpenAI chunk stream to the Fragment contract and
// classifies how the stream ended.
type tokenStream struct {
	upstream chunkReceiver
	thinking bool
	ctx      context.Context

	emitted   bool // at least one content fragment was produced
	budgetHit bool // backend reported finish_reason "length"
	closed    bool
}

// Recv returns the next fragment. io.EOF signals normal end-of-output;
// budget stops and empty streams surface as GenerationErrors so the caller
// can finalize or fail accordingly.
func (s *tokenStream) Recv() (Fragment, error) {
	for {
		resp, err := s.upstream.Recv()
		if err != nil {
			return Fragment{}, s.classifyEnd(err)
		}

		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]

		if choice.FinishReason == openai.FinishReasonLength {
			s.budgetHit = true
		}

		if rc := choice.Delta.ReasoningContent; rc != "" {
			if !s.thinking {
				continue
			}
			return Fragment{Text: rc, Thinking: true}, nil
		}

		if choice.Delta.Content != "" {
			s.emitted = true
			return Fragment{Text: choice.Delta.Content}, nil
		}
	}
}

// classifyEnd turns the upstream terminal error into the taxonomy the
// controller reacts to.
func (s *tokenStream) classifyEnd(err error) error {
	// Caller-driven cancellation is not a backend failure
	if s.ctx != nil && s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, io.EOF) {
		// No content means no output, even when the budget ran out first:
		// a budget stop is only a valid completion if something was said.
		if !s.emitted {
			return &GenerationError{Kind: KindNoOutput}
		}
		if s.budgetHit {
			return &GenerationError{Kind: KindBudgetExceeded}
		}
		return io.EOF
	}

	return &GenerationError{Kind: KindUnavailable, Err: fmt.Errorf("stream receive: %w", err)}
}

// Close aborts the stream. Safe to call more than once.
func (s *tokenStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.upstream.Close()
}
