package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialBufferSize = 64 * 1024

	// DefaultMaxLineBytes bounds a single SSE line.
	DefaultMaxLineBytes = 1024 * 1024
)

// Reader parses SSE events from a byte stream.
//
// ┌──────────────────┐
// │ upstream body    │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌──────────────┐
// │ Reader.Next()    │──▶│ Event        │
// └──────────────────┘   └──────────────┘
type Reader struct {
	scanner *bufio.Scanner

	// current accumulates fields for the event being built.
	current Event
	hasData bool
}

// NewReader returns a Reader over src. Lines longer than maxLineBytes make
// Next fail with bufio.ErrTooLong; zero selects DefaultMaxLineBytes.
func NewReader(src io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, min(initialBufferSize, maxLineBytes)), maxLineBytes)

	return &Reader{scanner: scanner}
}

// Next blocks until a complete event is available and returns it. An event
// still being built when the source ends is returned as the last event.
// Next returns io.EOF once the source is exhausted.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if raw == "" {
			if r.hasData {
				return r.take(), nil
			}
			// Keep-alive or leading blank line.
			continue
		}

		if strings.HasPrefix(raw, ":") {
			continue
		}

		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}

	if r.hasData {
		return r.take(), nil
	}

	return Event{}, io.EOF
}

// parseLine accumulates one "field:value" line into the current event. A
// single space after the colon is stripped.
func (r *Reader) parseLine(line string) {
	field, value, ok := strings.Cut(line, ":")
	if ok {
		value = strings.TrimPrefix(value, " ")
	} else {
		field = line
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

func (r *Reader) take() Event {
	ev := r.current
	r.current = Event{}
	r.hasData = false
	return ev
}
