package ndjson

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextDecoder incrementally decodes UTF-8 bytes into text.
//
// A multi-byte character split across two chunks is held back until the rest
// of its bytes arrive, so no chunk boundary ever produces a replacement
// character for valid input. Ill-formed bytes decode to U+FFFD.
type TextDecoder struct {
	t       transform.Transformer
	pending []byte
}

// NewTextDecoder returns a TextDecoder with no buffered bytes.
func NewTextDecoder() *TextDecoder {
	return &TextDecoder{t: unicode.UTF8.NewDecoder()}
}

// Decode returns the text for every complete character available after
// appending chunk to any bytes held back from the previous call.
func (d *TextDecoder) Decode(chunk []byte) string {
	return d.decode(chunk, false)
}

// Flush decodes whatever is still held back, as at the end of a stream.
// The decoder is reset and can be reused afterwards.
func (d *TextDecoder) Flush() string {
	s := d.decode(nil, true)
	d.t.Reset()
	return s
}

// Pending reports the number of bytes held back waiting for a character to
// complete.
func (d *TextDecoder) Pending() int {
	return len(d.pending)
}

func (d *TextDecoder) decode(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}
	if len(src) == 0 {
		return ""
	}

	var out strings.Builder
	// An ill-formed byte expands to the 3-byte replacement character.
	dst := make([]byte, 3*len(src)+utf8.UTFMax)

	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return out.String()
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return out.String()
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		default:
			out.WriteString(strings.ToValidUTF8(string(src), "�"))
			return out.String()
		}
	}
}
