package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/streamrelay/pkg/dotdir"
)

// Environment variables holding credentials. They are read through viper but
// never written to config.toml.
const (
	EnvUpstreamAPIKey = "RELAY_UPSTREAM_API_KEY"
	EnvGenAIAPIKey    = "GENAI_API_KEY"

	// KeyUpstreamAPIKey and KeyGenAIAPIKey are the viper keys the credential
	// variables are bound to.
	KeyUpstreamAPIKey = "relay.api_key"
	KeyGenAIAPIKey    = "concierge.api_key"
)

// InitViper returns a viper instance with, from highest to lowest precedence:
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. RELAY_-prefixed environment variables (RELAY_RELAY_UPSTREAM, ...)
//  3. config.toml values
//  4. NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv(KeyUpstreamAPIKey, EnvUpstreamAPIKey); err != nil {
		return nil, fmt.Errorf("binding %s: %w", EnvUpstreamAPIKey, err)
	}
	if err := v.BindEnv(KeyGenAIAPIKey, EnvGenAIAPIKey); err != nil {
		return nil, fmt.Errorf("binding %s: %w", EnvGenAIAPIKey, err)
	}

	return v, nil
}

// setViperDefaults registers NewDefaultConfig() under dotted keys.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("relay.listen", d.Relay.Listen)
	v.SetDefault("relay.upstream", d.Relay.Upstream)
	v.SetDefault("relay.path", d.Relay.Path)
	v.SetDefault("relay.upstream_format", d.Relay.UpstreamFormat)
	v.SetDefault("relay.frame_mode", d.Relay.FrameMode)
	v.SetDefault("relay.max_line_bytes", d.Relay.MaxLineBytes)
	v.SetDefault("relay.timeout", d.Relay.Timeout)

	v.SetDefault("concierge.model", d.Concierge.Model)

	v.SetDefault("journal.provider", d.Journal.Provider)
	v.SetDefault("journal.sqlite_path", d.Journal.SQLitePath)
	v.SetDefault("journal.postgres_dsn", d.Journal.PostgresDSN)
	v.SetDefault("journal.capacity", d.Journal.Capacity)

	v.SetDefault("event_stream.provider", d.EventStream.Provider)
	v.SetDefault("event_stream.brokers", d.EventStream.Brokers)
	v.SetDefault("event_stream.topic", d.EventStream.Topic)

	v.SetDefault("client.relay_target", d.Client.RelayTarget)
	v.SetDefault("client.path", d.Client.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// FromViper materializes the resolved settings of v into a Config.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Relay: RelayConfig{
			Listen:         v.GetString("relay.listen"),
			Upstream:       v.GetString("relay.upstream"),
			Path:           v.GetString("relay.path"),
			UpstreamFormat: v.GetString("relay.upstream_format"),
			FrameMode:      v.GetString("relay.frame_mode"),
			MaxLineBytes:   v.GetInt("relay.max_line_bytes"),
			Timeout:        v.GetString("relay.timeout"),
		},
		Concierge: ConciergeConfig{
			Model: v.GetString("concierge.model"),
		},
		Journal: JournalConfig{
			Provider:    v.GetString("journal.provider"),
			SQLitePath:  v.GetString("journal.sqlite_path"),
			PostgresDSN: v.GetString("journal.postgres_dsn"),
			Capacity:    v.GetInt("journal.capacity"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("event_stream.provider"),
			Brokers:  v.GetString("event_stream.brokers"),
			Topic:    v.GetString("event_stream.topic"),
		},
		Client: ClientConfig{
			RelayTarget: v.GetString("client.relay_target"),
			Path:        v.GetString("client.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
}
