package relay

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/papercomputeco/streamrelay/pkg/ndjson"
	"github.com/papercomputeco/streamrelay/pkg/sse"
)

// readBufferSize is the upstream read size; one read is one chunk.
const readBufferSize = 32 * 1024

// frameWriter is the single-use downstream side of a stream. Once a write
// fails or the stream is closed, every later write is refused.
type frameWriter struct {
	pw     *io.PipeWriter
	done   atomic.Bool
	frames int64
	bytes  int64
}

func newFrameWriter(pw *io.PipeWriter) *frameWriter {
	return &frameWriter{pw: pw}
}

// WriteFrame forwards wire text holding zero or more complete frames.
func (w *frameWriter) WriteFrame(text string) error {
	if text == "" {
		return nil
	}
	if w.done.Load() {
		return errDownstreamClosed
	}

	n, err := io.WriteString(w.pw, text)
	w.bytes += int64(n)
	if err != nil {
		w.done.Store(true)
		return errDownstreamClosed
	}

	w.frames += int64(strings.Count(text, "\n"))
	return nil
}

// Close ends the stream. A non-nil err aborts the chunked response instead of
// terminating it cleanly, so the client can tell the stream was cut short.
func (w *frameWriter) Close(err error) {
	w.done.Store(true)
	w.pw.CloseWithError(err)
}

// pump copies the upstream body to the client and journals the outcome.
func (r *Relay) pump(httpResp *http.Response, fw *frameWriter, ex *exchange) {
	defer httpResp.Body.Close()

	var err error
	switch r.config.UpstreamFormat {
	case FormatSSE:
		err = r.pumpSSE(httpResp.Body, fw)
	default:
		err = r.pumpNDJSON(httpResp.Body, fw)
	}

	switch {
	case err == nil:
		r.logger.Debug("stream completed", "frames", fw.frames, "bytes", fw.bytes)
	case errors.Is(err, errDownstreamClosed):
		r.logger.Debug("client disconnected mid-stream", "frames", fw.frames)
	default:
		r.logger.Error("stream ended early", "frames", fw.frames, "error", err)
	}

	// Journal before closing so the entry is queued by the time the client
	// sees the end of the stream.
	ex.outcome.Frames = fw.frames
	ex.outcome.Bytes = fw.bytes
	ex.record(httpResp.StatusCode, err)

	fw.Close(err)
}

// pumpNDJSON forwards every upstream chunk as line-terminated frames.
func (r *Relay) pumpNDJSON(body io.Reader, fw *frameWriter) error {
	framer := ndjson.NewFramer(r.config.FrameMode, r.config.MaxLineBytes)
	buf := make([]byte, readBufferSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			out, err := framer.Frame(buf[:n])
			if werr := fw.WriteFrame(out); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}
		}

		if errors.Is(readErr, io.EOF) {
			out, err := framer.Close()
			if werr := fw.WriteFrame(out); werr != nil {
				return werr
			}
			return err
		}
		if readErr != nil {
			return &TransportError{Err: readErr}
		}
	}
}

// pumpSSE unwraps server-sent events, forwarding each event's data as one
// frame.
func (r *Relay) pumpSSE(body io.Reader, fw *frameWriter) error {
	reader := sse.NewReader(body, r.config.MaxLineBytes)

	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &TransportError{Err: err}
		}

		line, ok := ev.Line()
		if !ok {
			continue
		}
		if err := fw.WriteFrame(line + "\n"); err != nil {
			return err
		}
	}
}
