// Package streamer binds live generations to conversations.
//
// # Single active stream
//
// A session holds at most one in-flight generation. Submit acquires the
// session's slot before persisting anything, so a conflicting submit fails
// with ErrSessionBusy and leaves no trace. The slot is released on every
// exit path.
//
// # Lifecycle
//
// A run moves through bind, stream, and exactly one terminal state:
// completed, cancelled, or failed. The user message is recorded before
// generation starts; the assistant message is recorded once, at the end,
// from the accumulated fragments. Cancellation (explicit or client
// disconnect) persists whatever content has streamed so far rather than
// dropping it. A backend failure or empty stream ends the run without an
// assistant message.
//
// # Consumption
//
// Clients either range over Run.Events for live fragments or call Run.Wait
// for the finalized message. Events are buffered; a consumer that stops
// reading stalls production instead of growing memory.
package streamer
