// ABOUTME: Streaming session controller - binds one in-flight generation to one conversation
// ABOUTME: Multiplexes fragments to the client, accumulates them, and finalizes on every exit path

package streamer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/torchlightlabs/fireside/internal/conversation"
	"github.com/torchlightlabs/fireside/internal/engine"
	"github.com/torchlightlabs/fireside/internal/metrics"
	"github.com/torchlightlabs/fireside/internal/store"
)

// ErrSessionBusy indicates a generation is already bound to the session.
var ErrSessionBusy = errors.New("session already has an active generation")

// ErrCancelled indicates the stream was cancelled before completing.
var ErrCancelled = errors.New("generation cancelled")

const (
	// eventBufferSize bounds per-run buffering toward the client. A slow
	// consumer stalls fragment production rather than growing memory.
	eventBufferSize = 64

	// finalizeTimeout bounds the store write after the run context has
	// already ended (cancel/disconnect).
	finalizeTimeout = 5 * time.Second

	// terminalSendTimeout bounds how long a run waits for a stalled consumer
	// to make room for the terminal event before giving up on delivery.
	terminalSendTimeout = 10 * time.Second

	// partialMarker is appended to persisted partial content when
	// MarkPartial is configured.
	partialMarker = "\n\n[interrupted]"
)

// Options tune controller behavior.
type Options struct {
	// MarkPartial appends an interruption marker to assistant messages
	// finalized from a cancelled stream.
	MarkPartial bool
}

// Recorder receives generation lifecycle signals. *metrics.Metrics
// implements it; nil disables recording.
type Recorder interface {
	GenerationStarted()
	GenerationEnded(outcome string)
	FragmentForwarded()
}

// Controller is the streaming state machine. It owns the per-session
// active-generation registry: at most one run may be bound to a session at
// any instant, and the binding is released on every exit path.
type Controller struct {
	manager  *conversation.Manager
	engine   engine.Generator
	opts     Options
	recorder Recorder
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]*Run // keyed by session ID
}

// New creates a Controller. recorder and logger may be nil.
func New(manager *conversation.Manager, gen engine.Generator, opts Options, recorder Recorder, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		manager:  manager,
		engine:   gen,
		opts:     opts,
		recorder: recorder,
		logger:   logger.With("component", "streamer"),
		active:   make(map[string]*Run),
	}
}

// Submit binds a generation to the session: the user message is persisted
// synchronously, then fragments flow on the returned Run's event channel.
// Returns ErrSessionBusy if a generation is already bound (no state change),
// and surfaces validation/store errors before any generation side effect.
func (c *Controller) Submit(ctx context.Context, sessionID, text string, thinking bool) (*Run, error) {
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		SessionID: sessionID,
		events:    make(chan Event, eventBufferSize),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	// Acquire the active-generation lock before touching the store so a
	// conflicting submit produces no additional message.
	c.mu.Lock()
	if _, busy := c.active[sessionID]; busy {
		c.mu.Unlock()
		cancel()
		return nil, ErrSessionBusy
	}
	c.active[sessionID] = run
	c.mu.Unlock()

	// Record first, then act: history must hold the user message even if
	// generation fails immediately.
	history, userMsg, err := c.manager.SubmitUserMessage(ctx, sessionID, text)
	if err != nil {
		c.releaseSlot(sessionID, run)
		cancel()
		return nil, err
	}
	run.UserMessage = userMsg

	if c.recorder != nil {
		c.recorder.GenerationStarted()
	}

	c.logger.Debug("generation bound",
		"session_id", sessionID,
		"context_len", len(history))

	go c.stream(runCtx, run, history, thinking)

	return run, nil
}

// Cancel signals the session's active generation, if any, to stop.
// Returns whether a generation was active. It does not wait for the run to
// finalize; use CancelWait when the caller needs the session quiescent.
func (c *Controller) Cancel(sessionID string) bool {
	c.mu.Lock()
	run, ok := c.active[sessionID]
	c.mu.Unlock()

	if !ok {
		return false
	}
	run.cancel()
	return true
}

// CancelWait cancels the session's active generation and waits for it to
// reach a terminal state (bounded by ctx). Used by session deletion, which
// must release any in-flight stream before removing history.
func (c *Controller) CancelWait(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	run, ok := c.active[sessionID]
	c.mu.Unlock()

	if !ok {
		return nil
	}
	run.cancel()

	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAll cancels every active generation and waits for all of them,
// bounded by ctx. Called on shutdown.
func (c *Controller) CancelAll(ctx context.Context) error {
	c.mu.Lock()
	runs := make([]*Run, 0, len(c.active))
	for _, run := range c.active {
		runs = append(runs, run)
	}
	c.mu.Unlock()

	for _, run := range runs {
		run.cancel()
	}
	for _, run := range runs {
		select {
		case <-run.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Active reports whether a generation is currently bound to the session.
func (c *Controller) Active(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[sessionID]
	return ok
}

// releaseSlot frees the per-session lock. Guarded against double release.
func (c *Controller) releaseSlot(sessionID string, run *Run) {
	c.mu.Lock()
	if c.active[sessionID] == run {
		delete(c.active, sessionID)
	}
	c.mu.Unlock()
}

// stream drives one generation: pulls fragments from the engine, forwards
// them to the run's event channel, and hands the accumulated text to finish
// exactly once. The deferred release covers every exit path.
func (c *Controller) stream(ctx context.Context, run *Run, history []*store.Message, thinking bool) {
	defer func() {
		close(run.events)
		close(run.done)
		run.cancel()
		c.releaseSlot(run.SessionID, run)
	}()

	src, err := c.engine.Generate(ctx, engine.Request{
		Messages: history,
		Thinking: thinking,
	})
	if err != nil {
		c.finish(run, "", "", err)
		return
	}
	defer src.Close()

	var content, reasoning strings.Builder
	for {
		frag, err := src.Recv()
		if err != nil {
			c.finish(run, content.String(), reasoning.String(), err)
			return
		}

		ev := Event{Type: EventFragment, Text: frag.Text}
		if frag.Thinking {
			ev.Type = EventThinking
		}

		// Blocking forward with bounded buffering; cancellation or client
		// disconnect unblocks via the run context.
		select {
		case run.events <- ev:
			if frag.Thinking {
				reasoning.WriteString(frag.Text)
			} else {
				content.WriteString(frag.Text)
			}
			if c.recorder != nil {
				c.recorder.FragmentForwarded()
			}
		case <-ctx.Done():
			src.Close()
			c.finish(run, content.String(), reasoning.String(), ctx.Err())
			return
		}
	}
}

// finish maps the stream's end condition to exactly one terminal event and
// at most one finalized assistant message. Accumulated partial content is
// never dropped silently: cancellation persists it (optionally marked), and
// only the no-output and zero-content failure paths end without a message.
func (c *Controller) finish(run *Run, content, reasoning string, cause error) {
	log := c.logger.With("session_id", run.SessionID)

	switch {
	case errors.Is(cause, io.EOF):
		msg, err := c.finalize(run.SessionID, content, reasoning)
		if err != nil {
			c.terminate(run, metrics.OutcomeFailed, Event{Type: EventError, Err: err})
			return
		}
		log.Info("generation completed", "content_len", len(content))
		c.terminate(run, metrics.OutcomeCompleted, Event{Type: EventDone, Message: msg})

	case errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded):
		var msg *store.Message
		if content != "" {
			if c.opts.MarkPartial {
				content += partialMarker
			}
			var err error
			msg, err = c.finalize(run.SessionID, content, reasoning)
			if err != nil {
				log.Error("finalizing partial message", "error", err)
			}
		}
		log.Info("generation cancelled", "content_len", len(content))
		c.terminate(run, metrics.OutcomeCancelled, Event{Type: EventCancelled, Message: msg})

	case engine.IsBudgetExceeded(cause):
		// A budget stop without content (the budget went entirely to
		// reasoning) is a failure, not a short answer.
		if content == "" {
			log.Warn("token budget consumed before any content")
			c.terminate(run, metrics.OutcomeFailed, Event{Type: EventError, Err: cause})
			return
		}
		// The token budget cut the stream, but everything produced so far
		// is valid output. Persist it as a complete message.
		msg, err := c.finalize(run.SessionID, content, reasoning)
		if err != nil {
			c.terminate(run, metrics.OutcomeFailed, Event{Type: EventError, Err: err})
			return
		}
		log.Info("generation hit token budget", "content_len", len(content))
		c.terminate(run, metrics.OutcomeCompleted, Event{Type: EventDone, Message: msg})

	case engine.IsNoOutput(cause):
		log.Warn("generation produced no output")
		c.terminate(run, metrics.OutcomeFailed, Event{Type: EventError, Err: cause})

	default:
		// Transport failure mid-stream. Partial content is still recorded
		// rather than discarded, and the error is surfaced alongside it.
		var msg *store.Message
		if content != "" {
			var err error
			msg, err = c.finalize(run.SessionID, content, reasoning)
			if err != nil {
				log.Error("finalizing partial message", "error", err)
			}
		}
		log.Error("generation failed", "error", cause)
		c.terminate(run, metrics.OutcomeFailed, Event{Type: EventError, Message: msg, Err: cause})
	}
}

// finalize records the assistant message with a fresh bounded context; the
// run context may already be dead by the time a stream ends.
func (c *Controller) finalize(sessionID, content, reasoning string) (*store.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	return c.manager.FinalizeAssistantMessage(ctx, sessionID, content, reasoning)
}

// terminate emits the terminal event and records the outcome. Every run ends
// with exactly one terminal event, so the send waits for a full buffer to
// drain; the wait is bounded so an abandoned run cannot pin the goroutine
// forever.
func (c *Controller) terminate(run *Run, outcome string, ev Event) {
	timer := time.NewTimer(terminalSendTimeout)
	defer timer.Stop()
	select {
	case run.events <- ev:
	case <-timer.C:
		c.logger.Warn("consumer never drained the event buffer, dropping terminal event",
			"session_id", run.SessionID)
	}
	if c.recorder != nil {
		c.recorder.GenerationEnded(outcome)
	}
}
