// Package handlers is the HTTP boundary of the service: the browser-facing
// tutoring endpoints (SSE ask stream, MCQ generation, passthrough functions)
// plus syllabus, history and health.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pkoukk/tiktoken-go"
)

const (
	FunctionAskAgent  = "ask_agent"
	FunctionMCQ       = "mcq"
	FunctionWebSearch = "websearch"
	FunctionYouTube   = "youtube_summarize"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{"error": fmt.Sprintf(format, args...)})
}

// writeSSE emits one named Server-Sent Event and flushes it immediately so
// intermediaries cannot batch the stream.
func writeSSE(w http.ResponseWriter, eventType string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		jsonData = []byte(`{"error":"failed to marshal data"}`)
		eventType = "error"
	}

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// formValue reads a parameter from query string or form body.
func formValue(r *http.Request, name, fallback string) string {
	if v := r.FormValue(name); v != "" {
		return v
	}
	return fallback
}

// countTokens estimates prompt size with the cl100k_base encoding; returns 0
// when the encoding is unavailable rather than failing the request.
func countTokens(logger *slog.Logger, text string) int {
	tke, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Error("Failed to get tiktoken encoding", "error", err)
		return 0
	}
	return len(tke.Encode(text, nil, nil))
}
