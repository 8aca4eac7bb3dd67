package config

const (
	defaultListen         = ":8080"
	defaultUpstream       = "http://localhost:11434/api/chat"
	defaultPath           = "/api/relay"
	defaultUpstreamFormat = "ndjson"
	defaultFrameMode      = "chunk"
	defaultMaxLineBytes   = 1024 * 1024
	defaultTimeout        = "5m"

	defaultConciergeModel = "gemini-3-flash-preview"

	defaultJournalProvider = "none"
	defaultJournalCapacity = 100

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "relay.journal"

	defaultClientRelayTarget = "http://localhost:8080"

	defaultLogLevel  = "info"
	defaultLogFormat = "pretty"
)

// NewDefaultConfig returns a Config populated with every default value.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Relay: RelayConfig{
			Listen:         defaultListen,
			Upstream:       defaultUpstream,
			Path:           defaultPath,
			UpstreamFormat: defaultUpstreamFormat,
			FrameMode:      defaultFrameMode,
			MaxLineBytes:   defaultMaxLineBytes,
			Timeout:        defaultTimeout,
		},
		Concierge: ConciergeConfig{
			Model: defaultConciergeModel,
		},
		Journal: JournalConfig{
			Provider: defaultJournalProvider,
			Capacity: defaultJournalCapacity,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Client: ClientConfig{
			RelayTarget: defaultClientRelayTarget,
			Path:        defaultPath,
		},
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
