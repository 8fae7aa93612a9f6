// Package config handles configuration loading for fireside.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults; a missing section
// keeps its default values, so a minimal config file is enough to run.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	model:
//	  api_key: "${FIRESIDE_API_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  addr: ":8700"
//	  shutdown_grace: "10s"
//
// Database:
//
//	database:
//	  path: "/var/lib/fireside/fireside.db"
//
// Model backend (any OpenAI-compatible server):
//
//	model:
//	  base_url: "http://localhost:8080/v1"
//	  api_key: ""
//	  name: "local"
//	  max_tokens: 2048
//	  temperature: 0.7
//
// Audio (speech-to-text and text-to-speech, optional):
//
//	audio:
//	  enabled: true
//	  stt_model: "whisper-1"
//	  tts_model: "tts-1"
//	  voice: "alloy"
//
// Chat behavior:
//
//	chat:
//	  mark_partial: false  # annotate messages saved from a cancelled stream
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics:
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Usage
//
//	cfg, err := config.Load("/etc/fireside/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
