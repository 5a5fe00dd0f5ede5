package upstream

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/tutorgate/tutorgate/internal/config"
)

// Kind identifies the upstream API family. It is decided once per call from
// the resolved endpoint configuration and threaded through as a value rather
// than re-derived per frame.
type Kind int

const (
	KindChatCompletions Kind = iota
	KindResponsesAPI
)

func (k Kind) String() string {
	if k == KindResponsesAPI {
		return "responses"
	}
	return "chat_completions"
}

const responsesPathMarker = "/openai/responses"

// appendAPIVersion attaches the api-version query parameter, joining with
// '&' when the endpoint already carries a query string.
func appendAPIVersion(endpoint, version string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "api-version=" + url.QueryEscape(version)
}

// DetectKind selects the API family for an endpoint. The Responses API is
// chosen when the endpoint path carries the marker segment or the model name
// belongs to a known Responses-only family; anything ambiguous defaults to
// Chat Completions.
func DetectKind(endpoint, model string) Kind {
	if strings.Contains(endpoint, responsesPathMarker) {
		return KindResponsesAPI
	}
	if strings.Contains(strings.ToLower(model), "gpt-5") {
		return KindResponsesAPI
	}
	return KindChatCompletions
}

// Adapter knows how to speak one upstream API family: building the request
// URL and body from a canonical request, decoding one SSE frame into
// canonical events, and extracting assistant text from a whole response.
//
// ParseFrame receives a single blank-line-terminated frame (comment frames
// already stripped) and may return zero or more events. A frame that fails
// to decode is skipped, never fatal.
type Adapter interface {
	Kind() Kind
	URL(ep config.FunctionEndpoint) string
	BuildRequestBody(req *Request) ([]byte, error)
	ParseFrame(frame []byte) []Event
	ExtractText(body []byte) (string, bool)
}

// ForEndpoint returns the adapter matching the resolved endpoint.
func ForEndpoint(ep config.FunctionEndpoint, logger *slog.Logger) Adapter {
	if DetectKind(ep.Endpoint, ep.Model) == KindResponsesAPI {
		return NewResponsesAdapter(logger)
	}
	return NewChatCompletionsAdapter(logger)
}
