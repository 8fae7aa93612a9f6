// Package audio wraps the OpenAI audio API for speech endpoints.
//
// Transcription (speech-to-text) and synthesis (text-to-speech) run against
// the same base URL style as the model backend, so a local server exposing
// whisper and a TTS model works unchanged. Audio support is optional; when
// disabled in configuration the HTTP layer never constructs a Service.
package audio
