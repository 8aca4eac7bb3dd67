package ndjson

import (
	"errors"
	"io"
)

const defaultReadSize = 32 * 1024

type decoderState int

const (
	awaitingChunk decoderState = iota
	streamClosed
)

// Decoder reads Events from an NDJSON byte stream.
//
// Lines may be split across reads at any byte offset, including inside a
// multi-byte character or between "\r" and "\n". A Decoder is not safe for
// concurrent use.
type Decoder struct {
	r     io.Reader
	buf   []byte
	text  *TextDecoder
	lines *LineBuffer

	queue []Event
	state decoderState
	err   error
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxLineBytes bounds the size of an unterminated line. Once exceeded,
// Next returns ErrLineTooLong. Zero means unlimited.
func WithMaxLineBytes(n int) DecoderOption {
	return func(d *Decoder) {
		d.lines = NewLineBuffer(n)
	}
}

// WithReadSize sets the size of each read from the underlying reader.
func WithReadSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.buf = make([]byte, n)
		}
	}
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:     r,
		text:  NewTextDecoder(),
		lines: NewLineBuffer(0),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.buf == nil {
		d.buf = make([]byte, defaultReadSize)
	}
	return d
}

// Next returns the next Event in arrival order.
//
// At a clean end of stream the remaining tail, if non-blank, is returned as a
// final Event and every later call returns io.EOF. A read error is returned
// once every Event completed before it has been delivered; the unterminated
// tail is discarded in that case.
func (d *Decoder) Next() (Event, error) {
	for len(d.queue) == 0 {
		if d.state == streamClosed {
			return Event{}, d.err
		}
		d.step()
	}

	ev := d.queue[0]
	d.queue = d.queue[1:]
	return ev, nil
}

// step performs one read and moves every line it completes onto the queue.
func (d *Decoder) step() {
	n, err := d.r.Read(d.buf)
	if n > 0 {
		if perr := d.push(d.text.Decode(d.buf[:n])); perr != nil {
			d.close(perr)
			return
		}
	}

	switch {
	case err == nil:
		return
	case errors.Is(err, io.EOF):
		if perr := d.push(d.text.Flush()); perr != nil {
			d.close(perr)
			return
		}
		d.enqueue(d.lines.Take())
		d.close(io.EOF)
	default:
		d.close(err)
	}
}

func (d *Decoder) push(text string) error {
	if text == "" {
		return nil
	}

	lines, err := d.lines.Push(text)
	for _, line := range lines {
		d.enqueue(line)
	}
	return err
}

func (d *Decoder) enqueue(line string) {
	if ev, ok := ParseLine(line); ok {
		d.queue = append(d.queue, ev)
	}
}

func (d *Decoder) close(err error) {
	d.state = streamClosed
	d.err = err
}
