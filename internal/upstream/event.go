// Package upstream contains the canonical request/event model shared by the
// proxy, plus one adapter per upstream API family (Chat Completions and the
// Responses API) and the stream normalizer that turns raw upstream bytes
// into canonical events.
package upstream

// EventType tags the canonical event variant.
type EventType int

const (
	EventChunk EventType = iota
	EventMetadata
	EventError
	EventDone
)

func (t EventType) String() string {
	switch t {
	case EventChunk:
		return "chunk"
	case EventMetadata:
		return "metadata"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Metadata carries completion info surfaced by the upstream alongside or at
// the end of the generated text. All fields are optional.
type Metadata struct {
	FinishReason string         `json:"finish_reason,omitempty"`
	Model        string         `json:"model,omitempty"`
	Usage        map[string]any `json:"usage,omitempty"`
	ResponseID   string         `json:"response_id,omitempty"`
}

// Event is the only contract between the stream normalizer and the
// orchestrator. Adapters must map every upstream-specific event into
// exactly this set.
type Event struct {
	Type     EventType
	Text     string    // EventChunk
	Metadata *Metadata // EventMetadata
	Err      string    // EventError
	Details  any       // EventError, optional upstream payload
}

func ChunkEvent(text string) Event {
	return Event{Type: EventChunk, Text: text}
}

func MetadataEvent(md *Metadata) Event {
	return Event{Type: EventMetadata, Metadata: md}
}

func ErrorEvent(msg string, details any) Event {
	return Event{Type: EventError, Err: msg, Details: details}
}

func DoneEvent() Event {
	return Event{Type: EventDone}
}
