package upstream

import (
	"bytes"
	"log/slog"
)

var frameSeparator = []byte("\n\n")

// Normalizer turns a raw upstream byte stream into canonical events. It owns
// the accumulation buffer for exactly one streaming call; concurrent streams
// each get their own Normalizer so partial frames never bleed between
// requests.
//
// Framing only: blank-line-terminated frames are split off, comment frames
// (leading ':') are discarded, and everything else is handed to the adapter.
type Normalizer struct {
	adapter  Adapter
	logger   *slog.Logger
	buf      []byte
	doneSent bool
}

func NewNormalizer(adapter Adapter, logger *slog.Logger) *Normalizer {
	return &Normalizer{adapter: adapter, logger: logger}
}

// Feed consumes one network read worth of bytes and returns the canonical
// events completed by it, in parse order. Frames split across reads are
// buffered until their terminating blank line arrives.
func (n *Normalizer) Feed(data []byte) []Event {
	if n.doneSent {
		return nil
	}

	n.buf = append(n.buf, data...)

	var events []Event
	for {
		idx := bytes.Index(n.buf, frameSeparator)
		if idx < 0 {
			break
		}

		frame := n.buf[:idx]
		n.buf = n.buf[idx+len(frameSeparator):]

		trimmed := bytes.TrimSpace(frame)
		if len(trimmed) == 0 || trimmed[0] == ':' {
			continue
		}

		for _, ev := range n.adapter.ParseFrame(trimmed) {
			if n.doneSent {
				return events
			}
			if ev.Type == EventDone {
				n.doneSent = true
			}
			events = append(events, ev)
		}
	}

	return events
}

// Finish flushes the stream after the transport closes. It guarantees the
// caller sees exactly one Done, synthesizing it when the upstream never sent
// an explicit terminator.
func (n *Normalizer) Finish() []Event {
	if n.doneSent {
		return nil
	}

	var events []Event
	if trimmed := bytes.TrimSpace(n.buf); len(trimmed) > 0 && trimmed[0] != ':' {
		// Trailing frame without a terminating blank line.
		for _, ev := range n.adapter.ParseFrame(trimmed) {
			if n.doneSent {
				break
			}
			if ev.Type == EventDone {
				n.doneSent = true
			}
			events = append(events, ev)
		}
	}
	n.buf = nil

	if !n.doneSent {
		n.doneSent = true
		events = append(events, DoneEvent())
	}
	return events
}

// Done reports whether the stream already delivered its Done event.
func (n *Normalizer) Done() bool {
	return n.doneSent
}
