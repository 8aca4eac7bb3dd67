// Package journal describes the record the relay keeps of each exchange it
// served. Journaling is opt-in: without a configured store the relay has no
// side effects beyond the response it writes.
package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies an Entry for display.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeAI      Type = "ai"
	TypeSystem  Type = "system"
)

// Entry records one relay exchange.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Type       Type      `json:"type"`
	Message    string    `json:"message"`
	Route      string    `json:"route"`
	RequestID  string    `json:"request_id,omitempty"`
	Streaming  bool      `json:"streaming"`
	Status     int       `json:"status"`
	Frames     int64     `json:"frames"`
	Bytes      int64     `json:"bytes"`
	DurationMs int64     `json:"duration_ms"`
}

// Outcome is what a handler observed about a finished exchange.
type Outcome struct {
	Route     string
	RequestID string
	Streaming bool
	Status    int
	Frames    int64
	Bytes     int64
	Started   time.Time

	// Err is the failure that ended the exchange, if any.
	Err error

	// Config marks Err as a configuration problem rather than a request or
	// upstream failure.
	Config bool
}

// NewEntry builds an Entry for o, stamped with a fresh ID and the current time.
func NewEntry(o Outcome) *Entry {
	now := time.Now().UTC()

	e := &Entry{
		ID:         uuid.NewString(),
		Timestamp:  now,
		Route:      o.Route,
		RequestID:  o.RequestID,
		Streaming:  o.Streaming,
		Status:     o.Status,
		Frames:     o.Frames,
		Bytes:      o.Bytes,
		DurationMs: now.Sub(o.Started).Milliseconds(),
	}

	mode := "request"
	if o.Streaming {
		mode = "stream"
	}

	switch {
	case o.Config:
		e.Type = TypeSystem
		e.Message = fmt.Sprintf("%s %s rejected: %v", o.Route, mode, o.Err)
	case o.Err != nil:
		e.Type = TypeWarning
		e.Message = fmt.Sprintf("%s %s failed with status %d: %v", o.Route, mode, o.Status, o.Err)
	case o.Streaming:
		e.Type = TypeAI
		e.Message = fmt.Sprintf("%s stream completed: %d frames, %d bytes", o.Route, o.Frames, o.Bytes)
	default:
		e.Type = TypeSuccess
		e.Message = fmt.Sprintf("%s request completed with status %d", o.Route, o.Status)
	}

	return e
}
