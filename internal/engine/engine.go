// ABOUTME: Generator contract isolating the streaming core from the model backend
// ABOUTME: Defines the lazy fragment stream and the GenerationError taxonomy

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/torchlightlabs/fireside/internal/store"
)

// Generator is the narrow capability the streaming controller needs from a
// model backend: submit a prompt context, receive a lazy fragment stream.
type Generator interface {
	Generate(ctx context.Context, req Request) (Stream, error)
}

// Request carries the full ordered conversation context for one generation.
// Thinking controls whether reasoning fragments are surfaced.
type Request struct {
	Messages []*store.Message
	Thinking bool
}

// Fragment is one incremental unit of generated text. Granularity is
// backend-defined and opaque to callers. Thinking fragments carry reasoning
// text that is kept separate from the answer content.
type Fragment struct {
	Text     string
	Thinking bool
}

// Stream is a finite, lazily-produced fragment sequence.
//
// Recv returns io.EOF on normal end-of-output and a *GenerationError for
// the failure taxonomy. Close aborts generation and releases backend
// resources; callers must invoke it on every exit path.
type Stream interface {
	Recv() (Fragment, error)
	Close() error
}

// Kind discriminates generation failures, each of which the controller
// handles differently.
type Kind int

const (
	// KindUnavailable: the backend is unreachable or the request failed in
	// transport. No content judgment is implied; the caller may retry.
	KindUnavailable Kind = iota

	// KindNoOutput: the stream ended without producing any content.
	KindNoOutput

	// KindBudgetExceeded: the backend stopped at its output budget
	// (max new tokens). Content produced so far is complete, not failed.
	KindBudgetExceeded
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "backend unavailable"
	case KindNoOutput:
		return "no output produced"
	case KindBudgetExceeded:
		return "output budget exceeded"
	default:
		return "unknown"
	}
}

// GenerationError wraps a backend failure with its taxonomy kind.
type GenerationError struct {
	Kind Kind
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation failed: %s", e.Kind)
	}
	return fmt.Sprintf("generation failed: %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// kindIs reports whether err is a GenerationError of the given kind.
func kindIs(err error, kind Kind) bool {
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		return false
	}
	return genErr.Kind == kind
}

// IsUnavailable reports whether err is a backend-unavailable failure.
func IsUnavailable(err error) bool { return kindIs(err, KindUnavailable) }

// IsNoOutput reports whether err is a no-output failure.
func IsNoOutput(err error) bool { return kindIs(err, KindNoOutput) }

// IsBudgetExceeded reports whether err is an output-budget stop.
func IsBudgetExceeded(err error) bool { return kindIs(err, KindBudgetExceeded) }
