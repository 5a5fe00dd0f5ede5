package upstream

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// max_output_tokens defaults applied by the Responses adapter when the
	// caller supplies no token limit at all.
	DefaultStreamOutputTokens = 2048
	DefaultCallOutputTokens   = 4096
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the canonical chat request built once per incoming call and
// never mutated after dispatch. Sampling parameters are optional; a nil
// pointer means "let the upstream default apply".
type Request struct {
	Model    string
	Messages []Message
	Stream   bool

	MaxTokens           *int
	MaxCompletionTokens *int
	MaxOutputTokens     *int
	Temperature         *float64
	TopP                *float64
	FrequencyPenalty    *float64
	PresencePenalty     *float64
}

func IntPtr(v int) *int           { return &v }
func FloatPtr(v float64) *float64 { return &v }
