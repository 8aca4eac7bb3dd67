package relay

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/streamrelay/pkg/concierge"
	"github.com/papercomputeco/streamrelay/pkg/eventstream"
	"github.com/papercomputeco/streamrelay/pkg/ndjson"
	"github.com/papercomputeco/streamrelay/pkg/storage"
)

const (
	DefaultPath          = "/api/relay"
	DefaultConciergePath = "/api/genai"
	DefaultJournalPath   = "/api/journal"
	DefaultTimeout       = 5 * time.Minute

	// DefaultLineMaxBytes bounds a held-back line in ndjson.FrameLine mode.
	DefaultLineMaxBytes = 1024 * 1024
)

// Format is the wire format of the upstream streaming response.
type Format string

const (
	// FormatNDJSON relays upstream bytes, normalizing frame terminators.
	FormatNDJSON Format = "ndjson"

	// FormatSSE unwraps server-sent events, one frame per event.
	FormatSSE Format = "sse"
)

// ParseFormat parses an upstream format name. The empty string selects
// FormatNDJSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatNDJSON:
		return FormatNDJSON, nil
	case FormatSSE:
		return FormatSSE, nil
	default:
		return "", fmt.Errorf("unknown upstream format %q: must be %q or %q", s, FormatNDJSON, FormatSSE)
	}
}

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Path is the relay route. Defaults to DefaultPath.
	Path string

	// UpstreamURL is the full provider endpoint requests are forwarded to.
	UpstreamURL string

	// APIKey is the bearer credential sent upstream.
	APIKey string

	UpstreamFormat Format
	FrameMode      ndjson.FrameMode

	// MaxLineBytes bounds a single upstream line in FrameLine mode and in
	// FormatSSE. Zero selects the default.
	MaxLineBytes int

	// Timeout caps a buffered exchange and, for streams, the wait for the
	// upstream's response headers or first concierge delta. A committed
	// stream runs until the upstream ends it. Zero selects DefaultTimeout;
	// negative disables the limit.
	Timeout time.Duration

	// Transport overrides the upstream HTTP transport.
	Transport http.RoundTripper

	// Concierge answers ConciergePath requests. Nil makes that route report
	// a configuration error.
	Concierge     concierge.Generator
	ConciergePath string

	// Journal enables exchange journaling and the JournalPath listing.
	Journal     storage.Driver
	JournalPath string

	// Publisher receives an event per journaled entry. Ignored without a
	// Journal.
	Publisher eventstream.Publisher
}

// withDefaults validates c and fills unset fields.
func (c Config) withDefaults() (Config, error) {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.ConciergePath == "" {
		c.ConciergePath = DefaultConciergePath
	}
	if c.JournalPath == "" {
		c.JournalPath = DefaultJournalPath
	}
	for _, p := range []string{c.Path, c.ConciergePath, c.JournalPath} {
		if !strings.HasPrefix(p, "/") {
			return c, fmt.Errorf("route %q must start with /", p)
		}
	}

	format, err := ParseFormat(string(c.UpstreamFormat))
	if err != nil {
		return c, err
	}
	c.UpstreamFormat = format

	mode, err := ndjson.ParseFrameMode(string(c.FrameMode))
	if err != nil {
		return c, err
	}
	c.FrameMode = mode

	if c.MaxLineBytes < 0 {
		return c, fmt.Errorf("max line bytes must not be negative, got %d", c.MaxLineBytes)
	}
	if c.MaxLineBytes == 0 && c.FrameMode == ndjson.FrameLine {
		c.MaxLineBytes = DefaultLineMaxBytes
	}

	switch {
	case c.Timeout == 0:
		c.Timeout = DefaultTimeout
	case c.Timeout < 0:
		c.Timeout = 0
	}

	return c, nil
}
