package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// maxErrorBodyBytes bounds how much of an upstream error body is read.
const maxErrorBodyBytes = 64 * 1024

// handleRelay forwards a POSTed JSON object upstream, buffered or streamed
// according to its "stream" field.
func (r *Relay) handleRelay(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		c.Set(fiber.HeaderAllow, fiber.MethodPost)
		return errMethodNotAllowed
	}

	ex := r.begin(c, r.config.Path)

	if err := r.checkUpstream(); err != nil {
		return ex.fail(err)
	}

	payload, streaming, err := decodeRelayRequest(c.Body())
	if err != nil {
		return ex.fail(err)
	}
	ex.outcome.Streaming = streaming

	body, err := encodeRelayRequest(payload, streaming)
	if err != nil {
		return ex.fail(err)
	}

	if streaming {
		return r.relayStream(c, ex, body)
	}
	return r.relayBuffered(c, ex, body)
}

// decodeRelayRequest parses the client body as a JSON object. An empty body is
// an empty object. The returned flag is the optional "stream" field.
func decodeRelayRequest(body []byte) (map[string]json.RawMessage, bool, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return map[string]json.RawMessage{}, false, nil
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return nil, false, &RequestError{Reason: "body must be a JSON object"}
	}

	var streaming bool
	if raw, ok := payload["stream"]; ok {
		if err := json.Unmarshal(raw, &streaming); err != nil {
			return nil, false, &RequestError{Reason: "stream must be a boolean"}
		}
	}

	return payload, streaming, nil
}

// encodeRelayRequest re-encodes payload with "stream" forced to streaming. The
// caller's map is left untouched.
func encodeRelayRequest(payload map[string]json.RawMessage, streaming bool) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}

	out["stream"] = json.RawMessage("false")
	if streaming {
		out["stream"] = json.RawMessage("true")
	}

	return json.Marshal(out)
}

func (r *Relay) newUpstreamRequest(ctx context.Context, c *fiber.Ctx, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	r.headerHandler.SetUpstreamRequestHeaders(c, req)
	return req, nil
}

// relayBuffered is the non-streaming path: one upstream call, one response.
func (r *Relay) relayBuffered(c *fiber.Ctx, ex *exchange, body []byte) error {
	ctx, cancel := r.exchangeContext(c.Context())
	defer cancel()

	httpReq, err := r.newUpstreamRequest(ctx, c, body)
	if err != nil {
		return ex.fail(&ConfigurationError{Missing: []string{"valid upstream URL"}})
	}

	r.logger.Debug("forwarding request to upstream", "url", r.config.UpstreamURL)

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return ex.fail(&TransportError{Err: err})
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return ex.fail(&TransportError{Err: err})
	}

	if !isSuccess(httpResp.StatusCode) {
		errBody := truncate(respBody, maxErrorBodyBytes)
		r.logger.Warn("upstream returned error", "status", httpResp.StatusCode, "body", errBody)
		return ex.fail(&UpstreamError{StatusCode: httpResp.StatusCode, Body: errBody})
	}

	if !json.Valid(respBody) {
		return ex.fail(&InvalidResponseError{StatusCode: httpResp.StatusCode})
	}

	r.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	ex.outcome.Bytes = int64(len(respBody))
	ex.record(httpResp.StatusCode, nil)

	return c.Status(httpResp.StatusCode).Send(respBody)
}

// relayStream is the streaming path. Nothing is written to the client until
// the upstream has answered with a 2xx status and a body; after that the
// response is committed and failures can only end the stream early.
func (r *Relay) relayStream(c *fiber.Ctx, ex *exchange, body []byte) error {
	// fasthttp recycles the request context once the handler returns, while
	// the upstream body is still being read by the pump goroutine.
	ctx, disarm, cancel := r.handshakeContext()

	httpReq, err := r.newUpstreamRequest(ctx, c, body)
	if err != nil {
		cancel()
		return ex.fail(&ConfigurationError{Missing: []string{"valid upstream URL"}})
	}

	r.logger.Debug("forwarding streaming request to upstream", "url", r.config.UpstreamURL)

	httpResp, err := r.httpClient.Do(httpReq)
	disarm()
	if err != nil {
		cancel()
		return ex.fail(&TransportError{Err: err})
	}

	if !isSuccess(httpResp.StatusCode) {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		httpResp.Body.Close()
		cancel()
		r.logger.Warn("upstream returned error", "status", httpResp.StatusCode, "body", string(respBody))
		return ex.fail(&UpstreamError{StatusCode: httpResp.StatusCode, Body: string(respBody)})
	}

	if httpResp.Body == nil || httpResp.Body == http.NoBody || httpResp.ContentLength == 0 {
		if httpResp.Body != nil {
			httpResp.Body.Close()
		}
		cancel()
		return ex.fail(&StreamBodyUnavailableError{StatusCode: httpResp.StatusCode})
	}

	r.headerHandler.SetClientResponseHeaders(c, httpResp)
	r.headerHandler.SetStreamHeaders(c)
	c.Status(httpResp.StatusCode)

	// pw.Write blocks until fasthttp has consumed the frame and flushed it to
	// the connection, so the pump is paced by the client.
	pr, pw := io.Pipe()
	fw := newFrameWriter(pw)
	go func() {
		defer cancel()
		r.pump(httpResp, fw, ex)
	}()

	// Unknown size (-1) selects chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// exchangeContext bounds a whole upstream exchange by the configured timeout.
func (r *Relay) exchangeContext(parent context.Context) (context.Context, context.CancelFunc) {
	if r.config.Timeout > 0 {
		return context.WithTimeout(parent, r.config.Timeout)
	}
	return context.WithCancel(parent)
}

// handshakeContext returns a context that is cancelled once the configured
// timeout passes, unless disarm is called first. A committed stream disarms
// it so long generations are not cut off. cancel must always be called.
func (r *Relay) handshakeContext() (ctx context.Context, disarm func(), cancel context.CancelFunc) {
	ctx, cancel = context.WithCancel(context.Background())
	if r.config.Timeout <= 0 {
		return ctx, func() {}, cancel
	}

	deadline := time.AfterFunc(r.config.Timeout, cancel)
	return ctx, func() { deadline.Stop() }, cancel
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
