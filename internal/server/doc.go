// Package server exposes the HTTP API.
//
// # Routes
//
//	GET    /api/ping
//	GET    /api/conversations
//	POST   /api/conversations/new
//	GET    /api/conversations/{session_id}
//	DELETE /api/conversations/{session_id}
//	PATCH  /api/conversations/{session_id}/title
//	POST   /api/conversations/{session_id}/message
//	GET    /api/conversations/{session_id}/stream
//	POST   /api/conversations/{session_id}/cancel
//	POST   /api/audio/transcriptions   (when audio is enabled)
//	POST   /api/audio/speech           (when audio is enabled)
//
// # Streaming
//
// The stream endpoint emits Server-Sent Events mirroring the run's event
// stream: a "started" event, then "fragment"/"thinking" events as text
// arrives, and exactly one of "done", "cancelled", or "error" before the
// connection closes. Closing the connection cancels the generation; any
// content already streamed is kept.
//
// # Error mapping
//
// Unknown session 404, validation failure 400, concurrent generation on the
// same session 409, model backend failure 502, everything else 500. Bodies
// are always {"error": "..."} JSON.
package server
