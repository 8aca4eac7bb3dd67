package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/streamrelay/pkg/ndjson"
)

// Config is the persistent relay configuration stored as config.toml in the
// .relay/ directory. Credentials are never part of it; see the Env* constants.
type Config struct {
	Version     int               `toml:"version"`
	Relay       RelayConfig       `toml:"relay"`
	Concierge   ConciergeConfig   `toml:"concierge"`
	Journal     JournalConfig     `toml:"journal"`
	EventStream EventStreamConfig `toml:"event_stream"`
	Client      ClientConfig      `toml:"client"`
	Log         LogConfig         `toml:"log"`
}

// RelayConfig holds settings for `relay serve`.
type RelayConfig struct {
	Listen         string `toml:"listen,omitempty"`
	Upstream       string `toml:"upstream,omitempty"`
	Path           string `toml:"path,omitempty"`
	UpstreamFormat string `toml:"upstream_format,omitempty"`
	FrameMode      string `toml:"frame_mode,omitempty"`
	MaxLineBytes   int    `toml:"max_line_bytes,omitempty"`
	Timeout        string `toml:"timeout,omitempty"`
}

// ConciergeConfig holds settings for the Gemini concierge route.
type ConciergeConfig struct {
	Model string `toml:"model,omitempty"`
}

// JournalConfig selects where relay journal entries are stored. An empty or
// "none" provider disables the journal.
type JournalConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	Capacity    int    `toml:"capacity,omitempty"`
}

// EventStreamConfig selects where journal events are published.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// ClientConfig holds settings for commands that talk to a running relay
// (e.g. relay chat, relay journal). RelayTarget is a full URL.
type ClientConfig struct {
	RelayTarget string `toml:"relay_target,omitempty"`
	Path        string `toml:"path,omitempty"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `toml:"level,omitempty"`
	Format string `toml:"format,omitempty"`
}

// configKeyInfo maps a dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func oneOf(key, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("invalid value for %s: %q (allowed: %s)", key, v, strings.Join(allowed, ", "))
}

func nonNegativeInt(key, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid value for %s: must not be negative", key)
	}
	return n, nil
}

func intString(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// configKeys is the authoritative set of supported config keys. Keys follow
// the TOML section layout.
var configKeys = map[string]configKeyInfo{
	"relay.listen": {
		get: func(c *Config) string { return c.Relay.Listen },
		set: func(c *Config, v string) error { c.Relay.Listen = v; return nil },
	},
	"relay.upstream": {
		get: func(c *Config) string { return c.Relay.Upstream },
		set: func(c *Config, v string) error { c.Relay.Upstream = v; return nil },
	},
	"relay.path": {
		get: func(c *Config) string { return c.Relay.Path },
		set: func(c *Config, v string) error {
			if !strings.HasPrefix(v, "/") {
				return fmt.Errorf("invalid value for relay.path: %q must start with /", v)
			}
			c.Relay.Path = v
			return nil
		},
	},
	"relay.upstream_format": {
		get: func(c *Config) string { return c.Relay.UpstreamFormat },
		set: func(c *Config, v string) error {
			if err := oneOf("relay.upstream_format", v, "ndjson", "sse"); err != nil {
				return err
			}
			c.Relay.UpstreamFormat = v
			return nil
		},
	},
	"relay.frame_mode": {
		get: func(c *Config) string { return c.Relay.FrameMode },
		set: func(c *Config, v string) error {
			mode, err := ndjson.ParseFrameMode(v)
			if err != nil {
				return fmt.Errorf("invalid value for relay.frame_mode: %w", err)
			}
			c.Relay.FrameMode = string(mode)
			return nil
		},
	},
	"relay.max_line_bytes": {
		get: func(c *Config) string { return intString(c.Relay.MaxLineBytes) },
		set: func(c *Config, v string) error {
			n, err := nonNegativeInt("relay.max_line_bytes", v)
			if err != nil {
				return err
			}
			c.Relay.MaxLineBytes = n
			return nil
		},
	},
	"relay.timeout": {
		get: func(c *Config) string { return c.Relay.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for relay.timeout: %w", err)
			}
			c.Relay.Timeout = v
			return nil
		},
	},
	"concierge.model": {
		get: func(c *Config) string { return c.Concierge.Model },
		set: func(c *Config, v string) error { c.Concierge.Model = v; return nil },
	},
	"journal.provider": {
		get: func(c *Config) string { return c.Journal.Provider },
		set: func(c *Config, v string) error {
			if err := oneOf("journal.provider", v, "none", "memory", "sqlite", "postgres"); err != nil {
				return err
			}
			c.Journal.Provider = v
			return nil
		},
	},
	"journal.sqlite_path": {
		get: func(c *Config) string { return c.Journal.SQLitePath },
		set: func(c *Config, v string) error { c.Journal.SQLitePath = v; return nil },
	},
	"journal.postgres_dsn": {
		get: func(c *Config) string { return c.Journal.PostgresDSN },
		set: func(c *Config, v string) error { c.Journal.PostgresDSN = v; return nil },
	},
	"journal.capacity": {
		get: func(c *Config) string { return intString(c.Journal.Capacity) },
		set: func(c *Config, v string) error {
			n, err := nonNegativeInt("journal.capacity", v)
			if err != nil {
				return err
			}
			c.Journal.Capacity = n
			return nil
		},
	},
	"event_stream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			if err := oneOf("event_stream.provider", v, "nop", "kafka"); err != nil {
				return err
			}
			c.EventStream.Provider = v
			return nil
		},
	},
	"event_stream.brokers": {
		get: func(c *Config) string { return c.EventStream.Brokers },
		set: func(c *Config, v string) error { c.EventStream.Brokers = v; return nil },
	},
	"event_stream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"client.relay_target": {
		get: func(c *Config) string { return c.Client.RelayTarget },
		set: func(c *Config, v string) error { c.Client.RelayTarget = v; return nil },
	},
	"client.path": {
		get: func(c *Config) string { return c.Client.Path },
		set: func(c *Config, v string) error { c.Client.Path = v; return nil },
	},
	"log.level": {
		get: func(c *Config) string { return c.Log.Level },
		set: func(c *Config, v string) error {
			if err := oneOf("log.level", v, "debug", "info", "warn", "error"); err != nil {
				return err
			}
			c.Log.Level = v
			return nil
		},
	},
	"log.format": {
		get: func(c *Config) string { return c.Log.Format },
		set: func(c *Config, v string) error {
			if err := oneOf("log.format", v, "text", "json", "pretty"); err != nil {
				return err
			}
			c.Log.Format = v
			return nil
		},
	},
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"relay.listen",
	"relay.upstream",
	"relay.path",
	"relay.upstream_format",
	"relay.frame_mode",
	"relay.max_line_bytes",
	"relay.timeout",
	"concierge.model",
	"journal.provider",
	"journal.sqlite_path",
	"journal.postgres_dsn",
	"journal.capacity",
	"event_stream.provider",
	"event_stream.brokers",
	"event_stream.topic",
	"client.relay_target",
	"client.path",
	"log.level",
	"log.format",
}
