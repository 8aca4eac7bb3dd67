// Package ndjson implements the newline-delimited JSON framing shared by the
// relay server and its clients.
//
// The relay side turns an upstream byte stream into line-terminated frames
// (see Framer). The client side reassembles frames from an arbitrary chunked
// byte stream and decodes each complete line into an Event (see Decoder).
//
//	upstream bytes ──▶ Framer ──▶ "<text>\n" frames ──▶ Decoder ──▶ Event
//
// A line that is not valid JSON is never an error: it is delivered as a raw
// chunk Event carrying the trimmed text.
package ndjson

import (
	"encoding/json"
	"errors"
	"strings"
)

// Kind tags the variant held by an Event.
type Kind int

const (
	// KindStructured is a line that parsed as a JSON value.
	KindStructured Kind = iota + 1

	// KindRawChunk is a line that did not parse as JSON.
	KindRawChunk
)

// RawChunkType is the "type" field used when a raw chunk is re-encoded as JSON.
const RawChunkType = "chunk"

// ErrNotStructured is returned by Event.Decode for raw chunk events.
var ErrNotStructured = errors.New("event is a raw chunk, not structured JSON")

// Event is one decoded line of an NDJSON stream.
type Event struct {
	Kind Kind

	// Data holds the JSON value of a structured event.
	Data json.RawMessage

	// Text holds the trimmed line of a raw chunk event.
	Text string
}

// Structured returns a structured Event holding data.
func Structured(data json.RawMessage) Event {
	return Event{Kind: KindStructured, Data: data}
}

// RawChunk returns a raw chunk Event holding text.
func RawChunk(text string) Event {
	return Event{Kind: KindRawChunk, Text: text}
}

// IsRaw reports whether the event is a raw chunk fallback.
func (e Event) IsRaw() bool {
	return e.Kind == KindRawChunk
}

// Decode unmarshals a structured event's JSON value into v.
func (e Event) Decode(v any) error {
	if e.Kind != KindStructured {
		return ErrNotStructured
	}
	return json.Unmarshal(e.Data, v)
}

// MarshalJSON encodes structured events as their original JSON value and raw
// chunks as {"type":"chunk","text":...}.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == KindStructured {
		return e.Data, nil
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: RawChunkType, Text: e.Text})
}

// ParseLine trims line and decodes it into an Event. It reports false for
// blank lines, which carry no event.
func ParseLine(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}

	if json.Valid([]byte(trimmed)) {
		return Structured(json.RawMessage(trimmed)), true
	}

	return RawChunk(trimmed), true
}
