// Package client calls a relay and decodes its NDJSON stream into events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"

	"github.com/papercomputeco/streamrelay/pkg/logger"
	"github.com/papercomputeco/streamrelay/pkg/ndjson"
)

const (
	// DefaultPath is the relay route.
	DefaultPath = "/api/relay"

	// ConciergePath is the concierge route.
	ConciergePath = "/api/genai"

	maxErrorBodyBytes = 64 * 1024
)

// ErrNoStreamBody is returned when a successful response carries no body to
// decode.
var ErrNoStreamBody = errors.New("relay response has no stream body")

// StatusError is a non-2xx relay response. Body is the best-effort response
// text.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("relay returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("relay returned status %d: %s", e.StatusCode, e.Body)
}

// Sink receives decoded events in arrival order. A non-nil error stops the
// stream and is returned from Stream.
type Sink func(ndjson.Event) error

// Client talks to one relay route.
type Client struct {
	baseURL      string
	path         string
	httpClient   *http.Client
	logger       *slog.Logger
	maxLineBytes int
}

// Option configures a Client.
type Option func(*Client)

// WithPath sets the route requests are sent to. Defaults to DefaultPath.
func WithPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.path = path
		}
	}
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxLineBytes bounds a single stream line. Zero means unlimited.
func WithMaxLineBytes(n int) Option {
	return func(c *Client) {
		c.maxLineBytes = n
	}
}

// New returns a Client for the relay at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       DefaultPath,
		httpClient: http.DefaultClient,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.baseURL + c.path
}

// Stream sends payload with "stream" forced to true and calls sink for every
// decoded event. onDone, when set, runs once after the last event of a
// cleanly ended stream. Stream never calls sink concurrently.
//
// The response body is released on every return path, including cancellation
// of ctx and a sink error.
func (c *Client) Stream(ctx context.Context, payload map[string]any, sink Sink, onDone func()) error {
	resp, err := c.post(ctx, payload, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if resp.Body == http.NoBody || resp.ContentLength == 0 {
		return ErrNoStreamBody
	}

	dec := ndjson.NewDecoder(resp.Body, ndjson.WithMaxLineBytes(c.maxLineBytes))

	var events int
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			c.logger.Debug("relay stream completed", "events", events)
			if onDone != nil {
				onDone()
			}
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("reading relay stream after %d events: %w", events, err)
		}

		if err := sink(ev); err != nil {
			return err
		}
		events++
	}
}

// Generate sends payload with "stream" forced to false and returns the
// decoded JSON object.
func (c *Client) Generate(ctx context.Context, payload map[string]any) (map[string]any, error) {
	resp, err := c.post(ctx, payload, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding relay response: %w", err)
	}
	return out, nil
}

// post copies payload before forcing the stream flag so the caller's map is
// never modified.
func (c *Client) post(ctx context.Context, payload map[string]any, streaming bool) (*http.Response, error) {
	body := maps.Clone(payload)
	if body == nil {
		body = map[string]any{}
	}
	body["stream"] = streaming

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("creating relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "application/x-ndjson")
	}

	c.logger.Debug("sending relay request", "url", req.URL.String(), "stream", streaming)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
}
