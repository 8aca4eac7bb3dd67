package ndjson

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLineTooLong is returned when an unterminated line grows past the
// configured maximum.
var ErrLineTooLong = errors.New("ndjson: line exceeds maximum length")

// LineBuffer splits incoming text on line breaks, retaining the trailing
// unterminated segment (the tail) between calls.
//
// The tail never contains a line break: every complete line leaves the tail
// in the same Push call that returns it.
type LineBuffer struct {
	tail strings.Builder
	max  int
}

// NewLineBuffer returns a LineBuffer. A max of zero or less disables the tail
// length limit.
func NewLineBuffer(max int) *LineBuffer {
	return &LineBuffer{max: max}
}

// Push appends text and returns every line completed by it, without their
// terminating "\n". A preceding "\r" is left in place for the caller to trim.
func (b *LineBuffer) Push(text string) ([]string, error) {
	var lines []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}

		b.tail.WriteString(text[:i])
		lines = append(lines, b.tail.String())
		b.tail.Reset()
		text = text[i+1:]
	}

	b.tail.WriteString(text)
	if b.max > 0 && b.tail.Len() > b.max {
		size := b.tail.Len()
		b.tail.Reset()
		return lines, fmt.Errorf("%w: %d bytes buffered, limit %d", ErrLineTooLong, size, b.max)
	}

	return lines, nil
}

// Tail returns the current unterminated segment.
func (b *LineBuffer) Tail() string {
	return b.tail.String()
}

// Take returns the current unterminated segment and clears it.
func (b *LineBuffer) Take() string {
	s := b.tail.String()
	b.tail.Reset()
	return s
}
