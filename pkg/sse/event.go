// Package sse reads Server-Sent Events from an upstream response body so the
// relay can re-frame them as NDJSON.
//
// Only the reading side is implemented. See
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DoneSentinel is the data payload OpenAI-style providers send as the final
// event of a stream.
const DoneSentinel = "[DONE]"

// Event is a single SSE event, delimited by a blank line in the stream.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data is every "data:" line of the event joined with "\n".
	Data string

	// ID is the last "id:" field, if any.
	ID string
}

// Done reports whether the event is the end-of-stream sentinel.
func (e Event) Done() bool {
	return strings.TrimSpace(e.Data) == DoneSentinel
}

// Line returns the event's data as a single NDJSON line without the
// terminating line break. JSON data is compacted; other text has its line
// breaks folded into spaces. It reports false for sentinel and empty events.
func (e Event) Line() (string, bool) {
	data := strings.TrimSpace(strings.ToValidUTF8(e.Data, "�"))
	if data == "" || e.Done() {
		return "", false
	}

	if json.Valid([]byte(data)) {
		var b bytes.Buffer
		if err := json.Compact(&b, []byte(data)); err == nil {
			return b.String(), true
		}
	}

	return strings.ReplaceAll(strings.ReplaceAll(data, "\r", ""), "\n", " "), true
}
