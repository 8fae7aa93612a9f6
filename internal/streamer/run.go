// ABOUTME: Run is the client-facing handle for one generation stream
// ABOUTME: Carries the event channel plus cancellation and a blocking Wait

package streamer

import (
	"context"
	"errors"

	"github.com/torchlightlabs/fireside/internal/store"
)

// EventType discriminates stream events.
type EventType int

const (
	// EventFragment carries a piece of assistant output text.
	EventFragment EventType = iota
	// EventThinking carries a piece of reasoning text.
	EventThinking
	// EventDone ends a completed run; Message holds the finalized reply.
	EventDone
	// EventCancelled ends a cancelled run; Message holds the partial reply
	// if any content was finalized, nil otherwise.
	EventCancelled
	// EventError ends a failed run. Message is non-nil when partial content
	// was recorded before the failure.
	EventError
)

// String returns the wire name used on the SSE event line.
func (t EventType) String() string {
	switch t {
	case EventFragment:
		return "fragment"
	case EventThinking:
		return "thinking"
	case EventDone:
		return "done"
	case EventCancelled:
		return "cancelled"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item on a Run's stream. Exactly one terminal event
// (done, cancelled, or error) ends every run, after which the channel
// closes.
type Event struct {
	Type    EventType
	Text    string
	Message *store.Message
	Err     error
}

// Terminal reports whether the event ends the run.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventDone, EventCancelled, EventError:
		return true
	default:
		return false
	}
}

// Run is the handle for one in-flight generation.
type Run struct {
	SessionID   string
	UserMessage *store.Message

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// Events returns the run's event stream. Fragments arrive in generation
// order; the stream ends with exactly one terminal event and then closes.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Cancel requests the run stop. Safe to call multiple times.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed once the run has reached a terminal state and released
// its session.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait drains the run until its terminal event and returns the finalized
// assistant message. Cancelling ctx aborts the generation as well; a run
// cancelled mid-stream returns its partial message with ErrCancelled.
func (r *Run) Wait(ctx context.Context) (*store.Message, error) {
	for {
		select {
		case <-ctx.Done():
			r.cancel()
			return nil, ctx.Err()
		case ev, ok := <-r.events:
			if !ok {
				return nil, errors.New("stream ended without a terminal event")
			}
			switch ev.Type {
			case EventDone:
				return ev.Message, nil
			case EventCancelled:
				return ev.Message, ErrCancelled
			case EventError:
				return ev.Message, ev.Err
			}
		}
	}
}
