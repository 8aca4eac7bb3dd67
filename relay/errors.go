package relay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Envelope is the JSON body of every error response.
type Envelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

var (
	errMethodNotAllowed = fiber.NewError(fiber.StatusMethodNotAllowed, "Method not allowed")
	errJournalDisabled  = fiber.NewError(fiber.StatusNotFound, "Journal disabled")
	errInvalidLimit     = fiber.NewError(fiber.StatusBadRequest, "Invalid limit")

	// errDownstreamClosed ends a stream whose client went away.
	errDownstreamClosed = errors.New("downstream connection closed")
)

// ConfigurationError reports missing relay configuration. It is raised before
// any upstream call is attempted.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "relay is not configured: missing " + strings.Join(e.Missing, ", ")
}

// RequestError reports a client request body the relay cannot forward.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return "invalid request body: " + e.Reason
}

// UpstreamError is a non-2xx upstream response. Body is the best-effort raw
// upstream error body.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// StreamBodyUnavailableError is a successful upstream status without a
// readable body to relay.
type StreamBodyUnavailableError struct {
	StatusCode int
}

func (e *StreamBodyUnavailableError) Error() string {
	return fmt.Sprintf("upstream returned status %d without a stream body", e.StatusCode)
}

// InvalidResponseError is a successful non-streaming upstream response whose
// body is not JSON.
type InvalidResponseError struct {
	StatusCode int
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("upstream returned status %d with a non-JSON body", e.StatusCode)
}

// TransportError is a network failure talking to the upstream.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "upstream transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GenerationError is a concierge model failure.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// classify maps err to the response status and envelope written for it.
func classify(err error) (int, Envelope) {
	var (
		cfgErr       *ConfigurationError
		reqErr       *RequestError
		upstreamErr  *UpstreamError
		bodyErr      *StreamBodyUnavailableError
		responseErr  *InvalidResponseError
		transportErr *TransportError
		genErr       *GenerationError
		fiberErr     *fiber.Error
	)

	switch {
	case errors.As(err, &cfgErr):
		return fiber.StatusInternalServerError, Envelope{Error: "Relay is not configured", Message: cfgErr.Error()}
	case errors.As(err, &reqErr):
		return fiber.StatusBadRequest, Envelope{Error: "Invalid request body", Message: reqErr.Reason}
	case errors.As(err, &upstreamErr):
		return upstreamErr.StatusCode, Envelope{Error: "Upstream request failed", Details: upstreamErr.Body}
	case errors.As(err, &bodyErr):
		return fiber.StatusInternalServerError, Envelope{Error: "Upstream stream unavailable", Message: bodyErr.Error()}
	case errors.As(err, &responseErr):
		return fiber.StatusBadGateway, Envelope{Error: "Invalid upstream response", Message: responseErr.Error()}
	case errors.As(err, &transportErr):
		return fiber.StatusBadGateway, Envelope{Error: "Upstream unreachable", Message: transportErr.Err.Error()}
	case errors.As(err, &genErr):
		return fiber.StatusInternalServerError, Envelope{Error: "AI generation failed"}
	case errors.As(err, &fiberErr):
		return fiberErr.Code, Envelope{Error: fiberErr.Message}
	default:
		return fiber.StatusInternalServerError, Envelope{Error: "Internal server error"}
	}
}
