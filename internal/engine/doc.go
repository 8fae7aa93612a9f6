// Package engine adapts a model backend to a uniform streaming contract.
//
// # Overview
//
// The streaming controller never talks to a concrete model server; it
// submits an ordered message context to a Generator and pulls Fragments
// from the returned Stream until io.EOF or a GenerationError. Fragment
// granularity (token vs. chunk) is backend-defined and treated as opaque.
//
// # Failure taxonomy
//
// The controller reacts differently to each terminal condition, so the
// adapter distinguishes them:
//
//   - KindUnavailable: backend unreachable or transport failure
//   - KindNoOutput: stream ended with zero content fragments
//   - KindBudgetExceeded: backend stopped at max new tokens; the content
//     produced so far is complete
//
// # Cancellation
//
// Abandoning iteration via Stream.Close (or cancelling the Generate
// context) stops fragment production and releases backend resources; no
// generation work is orphaned.
//
// # LocalEngine
//
// LocalEngine speaks the OpenAI chat-completions streaming protocol, which
// local servers (llama.cpp, vLLM, Ollama) expose behind a base_url.
// Reasoning deltas are surfaced as thinking fragments and can be disabled
// per request.
package engine
