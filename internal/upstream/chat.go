package upstream

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tutorgate/tutorgate/internal/config"
)

// ChatCompletionsAdapter speaks the OpenAI-style Chat Completions API:
// request bodies carry messages verbatim, streamed frames are bare
// "data: <json>" lines with deltas at choices[0].delta.content, and the
// stream terminates with "data: [DONE]".
type ChatCompletionsAdapter struct {
	logger *slog.Logger
}

func NewChatCompletionsAdapter(logger *slog.Logger) *ChatCompletionsAdapter {
	return &ChatCompletionsAdapter{logger: logger}
}

func (a *ChatCompletionsAdapter) Kind() Kind {
	return KindChatCompletions
}

func (a *ChatCompletionsAdapter) URL(ep config.FunctionEndpoint) string {
	if ep.APIVersion == "" {
		return ep.Endpoint
	}
	return appendAPIVersion(ep.Endpoint, ep.APIVersion)
}

type chatRequestBody struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	Stream              bool      `json:"stream"`
	MaxTokens           *int      `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int      `json:"max_completion_tokens,omitempty"`
	Temperature         *float64  `json:"temperature,omitempty"`
	TopP                *float64  `json:"top_p,omitempty"`
	FrequencyPenalty    *float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64  `json:"presence_penalty,omitempty"`
}

// BuildRequestBody passes sampling parameters through under their Chat
// Completions field names.
func (a *ChatCompletionsAdapter) BuildRequestBody(req *Request) ([]byte, error) {
	return json.Marshal(chatRequestBody{
		Model:               req.Model,
		Messages:            req.Messages,
		Stream:              req.Stream,
		MaxTokens:           req.MaxTokens,
		MaxCompletionTokens: req.MaxCompletionTokens,
		Temperature:         req.Temperature,
		TopP:                req.TopP,
		FrequencyPenalty:    req.FrequencyPenalty,
		PresencePenalty:     req.PresencePenalty,
	})
}

func (a *ChatCompletionsAdapter) ParseFrame(frame []byte) []Event {
	payload, ok := frameField(frame, "data:")
	if !ok {
		return nil
	}

	if payload == "[DONE]" {
		return []Event{DoneEvent()}
	}

	var chunk map[string]any
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		a.logger.Warn("Skipping malformed chat completions frame", "error", err)
		return nil
	}

	var events []Event

	choices, _ := chunk["choices"].([]any)
	if len(choices) == 0 {
		return nil
	}
	choice, _ := choices[0].(map[string]any)
	if choice == nil {
		return nil
	}

	if delta, ok := choice["delta"].(map[string]any); ok {
		if content, ok := delta["content"].(string); ok && content != "" {
			events = append(events, ChunkEvent(content))
		}
	}

	if reason, ok := choice["finish_reason"].(string); ok && reason != "" {
		md := &Metadata{FinishReason: reason}
		if model, ok := chunk["model"].(string); ok {
			md.Model = model
		}
		if usage, ok := chunk["usage"].(map[string]any); ok {
			md.Usage = usage
		}
		if id, ok := chunk["id"].(string); ok {
			md.ResponseID = id
		}
		events = append(events, MetadataEvent(md))
	}

	return events
}

// ExtractText pulls the assistant text out of a whole (non-streamed)
// Chat Completions response.
func (a *ChatCompletionsAdapter) ExtractText(body []byte) (string, bool) {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", false
	}

	choices, _ := data["choices"].([]any)
	if len(choices) == 0 {
		return "", false
	}
	choice, _ := choices[0].(map[string]any)
	if choice == nil {
		return "", false
	}
	message, _ := choice["message"].(map[string]any)
	if message == nil {
		return "", false
	}
	content, ok := message["content"].(string)
	return content, ok
}

// frameField returns the value of the first line in the frame starting with
// the given prefix ("data:" or "event:"), trimmed of surrounding whitespace.
func frameField(frame []byte, prefix string) (string, bool) {
	for _, line := range strings.Split(string(frame), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}
