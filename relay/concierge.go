package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"iter"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/streamrelay/pkg/concierge"
	"github.com/papercomputeco/streamrelay/pkg/ndjson"
)

// textFrame is the body of a concierge answer and of each streamed delta.
type textFrame struct {
	Text string `json:"text"`
}

// handleConcierge answers a prompt with the configured Generator.
func (r *Relay) handleConcierge(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		c.Set(fiber.HeaderAllow, fiber.MethodPost)
		return errMethodNotAllowed
	}

	ex := r.begin(c, r.config.ConciergePath)

	if r.config.Concierge == nil {
		return ex.fail(&ConfigurationError{Missing: []string{"Gemini API key"}})
	}

	var req concierge.Request
	if body := bytes.TrimSpace(c.Body()); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return ex.fail(&RequestError{Reason: err.Error()})
		}
	}
	ex.outcome.Streaming = req.Stream

	prompt := req.Prompt()
	if req.Stream {
		return r.conciergeStream(c, ex, prompt)
	}

	ctx, cancel := r.exchangeContext(c.Context())
	defer cancel()

	text, err := r.config.Concierge.Generate(ctx, prompt)
	if err != nil {
		return ex.fail(&GenerationError{Err: err})
	}

	ex.outcome.Bytes = int64(len(text))
	ex.record(fiber.StatusOK, nil)
	return c.Status(fiber.StatusOK).JSON(textFrame{Text: text})
}

// conciergeStream pulls the first delta before committing the response, so a
// generation that fails immediately still gets a status-coded error.
func (r *Relay) conciergeStream(c *fiber.Ctx, ex *exchange, prompt string) error {
	ctx, disarm, cancel := r.handshakeContext()

	next, stop := iter.Pull2(r.config.Concierge.GenerateStream(ctx, prompt))
	first, err, ok := next()
	disarm()
	if err != nil {
		stop()
		cancel()
		return ex.fail(&GenerationError{Err: err})
	}

	r.headerHandler.SetStreamHeaders(c)
	c.Status(fiber.StatusOK)

	pr, pw := io.Pipe()
	fw := newFrameWriter(pw)

	go func() {
		defer cancel()
		defer stop()

		var streamErr error
		text := first
		for ok {
			frame, merr := json.Marshal(textFrame{Text: text})
			if merr != nil {
				streamErr = merr
				break
			}
			if werr := fw.WriteFrame(ndjson.Terminate(string(frame))); werr != nil {
				streamErr = werr
				break
			}

			text, err, ok = next()
			if err != nil {
				streamErr = &GenerationError{Err: err}
				break
			}
		}

		if streamErr != nil {
			r.logger.Warn("concierge stream ended early", "frames", fw.frames, "error", streamErr)
		}
		ex.outcome.Frames = fw.frames
		ex.outcome.Bytes = fw.bytes
		ex.record(fiber.StatusOK, streamErr)

		fw.Close(streamErr)
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}
