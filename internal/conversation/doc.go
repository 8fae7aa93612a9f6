// Package conversation provides session lifecycle and context assembly.
//
// # Overview
//
// The Manager sits between the HTTP layer / streaming controller and the
// store. Every durable mutation of conversation history flows through it:
// user messages on submit, assistant messages on finalize, title changes,
// and whole-session deletion.
//
// # Key operations
//
//   - StartSession(ctx): create an empty conversation with a default title
//   - SubmitUserMessage(ctx, id, text): validate, append, return the full
//     updated history for prompt building
//   - FinalizeAssistantMessage(ctx, id, content, reasoning): append the
//     assembled assistant reply once its stream has ended
//   - Rename / Remove / ListSessions / GetHistory
//
// # Ordering
//
// Record first, then act: the user message is persisted before generation
// is submitted, so history survives even when the backend fails
// immediately. Assistant messages are appended exactly once per stream, at
// finalization, never per fragment.
//
// # Auto-titling
//
// The first user message in a session replaces the placeholder title with
// its first 100 characters. Explicit renames always win afterwards.
package conversation
