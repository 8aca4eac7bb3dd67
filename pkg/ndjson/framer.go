package ndjson

import (
	"fmt"
	"strings"
)

// FrameMode selects how a Framer groups upstream text into frames.
type FrameMode string

const (
	// FrameChunk forwards every upstream chunk as one frame, terminated by
	// exactly one line break.
	FrameChunk FrameMode = "chunk"

	// FrameLine holds partial lines back until their line break arrives, so
	// every frame is one complete upstream line.
	FrameLine FrameMode = "line"
)

// ParseFrameMode parses a frame mode name. The empty string selects FrameChunk.
func ParseFrameMode(s string) (FrameMode, error) {
	switch FrameMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FrameChunk:
		return FrameChunk, nil
	case FrameLine:
		return FrameLine, nil
	default:
		return "", fmt.Errorf("unknown frame mode %q: must be %q or %q", s, FrameChunk, FrameLine)
	}
}

// Terminate returns text ending in exactly one added-or-existing line break.
// Text that already ends in "\n" is returned unchanged and empty text stays
// empty.
func Terminate(text string) string {
	if text == "" || strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}

// Framer turns upstream byte chunks into line-terminated wire frames.
type Framer struct {
	mode  FrameMode
	text  *TextDecoder
	lines *LineBuffer
}

// NewFramer returns a Framer. maxLineBytes only applies to FrameLine.
func NewFramer(mode FrameMode, maxLineBytes int) *Framer {
	if mode == "" {
		mode = FrameChunk
	}
	return &Framer{
		mode:  mode,
		text:  NewTextDecoder(),
		lines: NewLineBuffer(maxLineBytes),
	}
}

// Frame returns the wire bytes to forward for chunk. The result may be empty
// when chunk only carried part of a character or, in FrameLine mode, part of
// a line.
func (f *Framer) Frame(chunk []byte) (string, error) {
	return f.frame(f.text.Decode(chunk))
}

// Close flushes any held-back text as a final frame.
func (f *Framer) Close() (string, error) {
	out, err := f.frame(f.text.Flush())
	if err != nil {
		return out, err
	}
	if f.mode == FrameLine {
		out += Terminate(f.lines.Take())
	}
	return out, nil
}

func (f *Framer) frame(text string) (string, error) {
	if f.mode != FrameLine {
		return Terminate(text), nil
	}

	lines, err := f.lines.Push(text)
	if len(lines) == 0 {
		return "", err
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), err
}
