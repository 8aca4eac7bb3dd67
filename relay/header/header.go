// Package header filters headers on the two legs of a relayed exchange:
//
//	Client <--> Relay <--> Upstream provider
//
// Each leg negotiates its own connection, encoding and credentials, so only
// end-to-end headers cross the relay.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between relay connections.
type Handler struct {
	apiKey string
}

// NewHandler returns a Handler that authenticates upstream calls with apiKey.
func NewHandler(apiKey string) *Handler {
	return &Handler{apiKey: apiKey}
}

// skipRequest lists client request headers never forwarded upstream.
var skipRequest = map[string]struct{}{
	"Connection":        {},
	"Keep-Alive":        {},
	"Proxy-Connection":  {},
	"Transfer-Encoding": {},
	"Upgrade":           {},
	"Te":                {},

	// Rewritten by http.Transport from the upstream URL.
	"Host": {},

	// http.Transport negotiates gzip itself and decompresses transparently.
	"Accept-Encoding": {},

	// The body is re-encoded after the stream flag is forced.
	"Content-Length": {},
	"Content-Type":   {},

	// Upstream credentials belong to the relay, never to the caller.
	"Authorization": {},
	"Cookie":        {},

	// Request IDs are relay-assigned.
	"X-Request-Id": {},
}

// skipResponse lists upstream response headers never copied downstream.
var skipResponse = map[string]struct{}{
	"Connection":        {},
	"Keep-Alive":        {},
	"Transfer-Encoding": {},

	// The body was already decompressed by http.Transport.
	"Content-Encoding": {},

	// fasthttp computes the length of the body it actually writes.
	"Content-Length": {},

	// Framing headers are owned by the relay.
	"Content-Type":  {},
	"Cache-Control": {},
	"Set-Cookie":    {},
}

// SetUpstreamRequestHeaders copies forwardable client headers onto req and
// stamps the JSON content type and bearer credential.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})

	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
}

// SetClientResponseHeaders copies forwardable upstream response headers onto
// the client response.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[http.CanonicalHeaderKey(k)]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// SetStreamHeaders marks the client response as a line-delimited JSON stream.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set("X-Accel-Buffering", "no")
}
