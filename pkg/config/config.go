package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/streamrelay/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Configer reads and writes config.toml inside a resolved .relay/ directory.
type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewConfiger resolves the .relay/ directory, honoring override when set.
func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{ddm: dotdir.NewManager()}

	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path
	return cfger, nil
}

// ValidConfigKeys returns every supported key in TOML section order.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}
	return result
}

// IsValidConfigKey reports whether key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// GetTarget returns the path of config.toml, or "" when unresolved.
func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig reads config.toml. A missing file yields NewDefaultConfig();
// fields absent from the file take their default values.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	setIfEmpty(&cfg.Relay.Listen, d.Relay.Listen)
	setIfEmpty(&cfg.Relay.Upstream, d.Relay.Upstream)
	setIfEmpty(&cfg.Relay.Path, d.Relay.Path)
	setIfEmpty(&cfg.Relay.UpstreamFormat, d.Relay.UpstreamFormat)
	setIfEmpty(&cfg.Relay.FrameMode, d.Relay.FrameMode)
	setIfEmpty(&cfg.Relay.Timeout, d.Relay.Timeout)
	if cfg.Relay.MaxLineBytes == 0 {
		cfg.Relay.MaxLineBytes = d.Relay.MaxLineBytes
	}

	setIfEmpty(&cfg.Concierge.Model, d.Concierge.Model)

	setIfEmpty(&cfg.Journal.Provider, d.Journal.Provider)
	if cfg.Journal.Capacity == 0 {
		cfg.Journal.Capacity = d.Journal.Capacity
	}

	setIfEmpty(&cfg.EventStream.Provider, d.EventStream.Provider)
	setIfEmpty(&cfg.EventStream.Topic, d.EventStream.Topic)

	setIfEmpty(&cfg.Client.RelayTarget, d.Client.RelayTarget)
	setIfEmpty(&cfg.Client.Path, d.Client.Path)

	setIfEmpty(&cfg.Log.Level, d.Log.Level)
	setIfEmpty(&cfg.Log.Format, d.Log.Format)
}

func setIfEmpty(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

// SaveConfig writes cfg to config.toml.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue validates and stores value under key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue returns the string form of key's current value.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns defaults tuned for a known upstream. Supported
// presets: "ollama" (NDJSON chat stream) and "openai" (SSE chat completions,
// re-framed one event per line).
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "ollama":
		return cfg, nil

	case "openai":
		cfg.Relay.Upstream = "https://api.openai.com/v1/chat/completions"
		cfg.Relay.UpstreamFormat = "sse"
		cfg.Relay.FrameMode = "line"
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
}

// ValidPresetNames returns the recognized preset names.
func ValidPresetNames() []string {
	return []string{"ollama", "openai"}
}

// ParseConfigTOML decodes raw TOML, rejecting unsupported versions.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

// ParseTimeout parses a relay.timeout value. Empty selects the default.
func ParseTimeout(s string) (time.Duration, error) {
	if s == "" {
		s = defaultTimeout
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing relay timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("relay timeout %q must not be negative", s)
	}
	return d, nil
}
