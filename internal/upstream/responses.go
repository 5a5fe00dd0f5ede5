package upstream

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tutorgate/tutorgate/internal/config"
)

const defaultResponsesAPIVersion = "2025-04-01-preview"

// ResponsesAdapter speaks the OpenAI-style Responses API: messages travel
// under "input", token limits under "max_output_tokens", and streamed frames
// are typed "event:"/"data:" pairs.
type ResponsesAdapter struct {
	logger *slog.Logger
}

func NewResponsesAdapter(logger *slog.Logger) *ResponsesAdapter {
	return &ResponsesAdapter{logger: logger}
}

func (a *ResponsesAdapter) Kind() Kind {
	return KindResponsesAPI
}

// URL normalizes the endpoint onto the Responses path and appends the
// api-version query parameter the service requires.
func (a *ResponsesAdapter) URL(ep config.FunctionEndpoint) string {
	endpoint := ep.Endpoint
	if !strings.Contains(endpoint, responsesPathMarker) {
		endpoint = strings.TrimRight(endpoint, "/") + responsesPathMarker
	}

	version := ep.APIVersion
	if version == "" {
		version = defaultResponsesAPIVersion
	}

	return appendAPIVersion(endpoint, version)
}

type responsesRequestBody struct {
	Model           string    `json:"model"`
	Input           []Message `json:"input"`
	Stream          bool      `json:"stream"`
	MaxOutputTokens int       `json:"max_output_tokens"`
	Temperature     *float64  `json:"temperature,omitempty"`
	TopP            *float64  `json:"top_p,omitempty"`
}

// BuildRequestBody renames messages to input and coalesces the token limits
// into max_output_tokens (first non-nil wins). Penalty fields are Chat
// Completions only and are dropped here.
func (a *ResponsesAdapter) BuildRequestBody(req *Request) ([]byte, error) {
	maxOutput := DefaultCallOutputTokens
	if req.Stream {
		maxOutput = DefaultStreamOutputTokens
	}
	switch {
	case req.MaxOutputTokens != nil:
		maxOutput = *req.MaxOutputTokens
	case req.MaxCompletionTokens != nil:
		maxOutput = *req.MaxCompletionTokens
	case req.MaxTokens != nil:
		maxOutput = *req.MaxTokens
	}

	return json.Marshal(responsesRequestBody{
		Model:           req.Model,
		Input:           req.Messages,
		Stream:          req.Stream,
		MaxOutputTokens: maxOutput,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
	})
}

func (a *ResponsesAdapter) ParseFrame(frame []byte) []Event {
	eventType, ok := frameField(frame, "event:")
	if !ok {
		return nil
	}
	payload, ok := frameField(frame, "data:")
	if !ok {
		return nil
	}

	var chunk map[string]any
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		a.logger.Warn("Skipping malformed responses frame", "event", eventType, "error", err)
		return nil
	}

	switch eventType {
	case "response.output_text.delta":
		if delta, ok := chunk["delta"].(string); ok && delta != "" {
			return []Event{ChunkEvent(delta)}
		}
		return nil

	case "response.completed":
		var events []Event
		md := &Metadata{}
		if response, ok := chunk["response"].(map[string]any); ok {
			if usage, ok := response["usage"].(map[string]any); ok {
				md.Usage = usage
			}
			if id, ok := response["id"].(string); ok {
				md.ResponseID = id
			}
			if reason, ok := response["finish_reason"].(string); ok {
				md.FinishReason = reason
			}
			if model, ok := response["model"].(string); ok {
				md.Model = model
			}
		}
		if md.Usage != nil || md.ResponseID != "" || md.FinishReason != "" || md.Model != "" {
			events = append(events, MetadataEvent(md))
		}
		return append(events, DoneEvent())

	case "response.error":
		return []Event{ErrorEvent("API error", chunk)}

	// Lifecycle events carry no text; drop them without complaint.
	case "response.created", "response.in_progress",
		"response.output_item.added", "response.output_item.done":
		return nil

	default:
		a.logger.Debug("Ignoring unknown responses event type", "event", eventType)
		return nil
	}
}

// ExtractText walks the known Responses payload shapes in priority order.
// The chain matters: response shape varies across API versions and the first
// hit wins.
func (a *ResponsesAdapter) ExtractText(body []byte) (string, bool) {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", false
	}

	paths := [][]any{
		{"text"},
		{"output", 0, "content", 0, "text"},
		{"output", 0, "text"},
		{"output", "text"},
		{"response", "output", 0, "content", 0, "text"},
		{"content"},
	}

	for _, path := range paths {
		if text, ok := lookupString(data, path); ok && text != "" {
			return text, true
		}
	}
	return "", false
}

// lookupString walks a mixed map/array path where string elements are map
// keys and int elements are array indices.
func lookupString(data any, path []any) (string, bool) {
	current := data
	for _, step := range path {
		switch key := step.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return "", false
			}
			current, ok = m[key]
			if !ok {
				return "", false
			}
		case int:
			arr, ok := current.([]any)
			if !ok || key >= len(arr) {
				return "", false
			}
			current = arr[key]
		}
	}
	s, ok := current.(string)
	return s, ok
}
