package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag describes a CLI flag once so every command that exposes it agrees on
// name, shorthand, viper key and help text.
type Flag struct {
	Name        string
	Shorthand   string
	ViperKey    string
	Description string
}

// FlagSet maps registry keys to flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen          = "listen"
	FlagUpstream        = "upstream"
	FlagPath            = "path"
	FlagUpstreamFormat  = "upstream-format"
	FlagFrameMode       = "frame-mode"
	FlagMaxLineBytes    = "max-line-bytes"
	FlagTimeout         = "timeout"
	FlagConciergeModel  = "concierge-model"
	FlagJournal         = "journal"
	FlagSQLite          = "sqlite"
	FlagPostgres        = "postgres"
	FlagJournalCapacity = "journal-capacity"
	FlagEventStream     = "event-stream"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"
	FlagRelayTarget     = "relay-target"
	FlagClientPath      = "client-path"
	FlagLogLevel        = "log-level"
	FlagLogFormat       = "log-format"
)

// RelayFlags is the registry shared by relay commands.
var RelayFlags = FlagSet{
	FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "relay.listen", Description: "Address for the relay to listen on"},
	FlagUpstream:        {Name: "upstream", Shorthand: "u", ViperKey: "relay.upstream", Description: "Upstream streaming endpoint URL"},
	FlagPath:            {Name: "path", ViperKey: "relay.path", Description: "Route the relay serves"},
	FlagUpstreamFormat:  {Name: "upstream-format", ViperKey: "relay.upstream_format", Description: "Upstream body format: ndjson or sse"},
	FlagFrameMode:       {Name: "frame-mode", ViperKey: "relay.frame_mode", Description: "Downstream framing: chunk or line"},
	FlagMaxLineBytes:    {Name: "max-line-bytes", ViperKey: "relay.max_line_bytes", Description: "Largest line held back in line framing mode"},
	FlagTimeout:         {Name: "timeout", ViperKey: "relay.timeout", Description: "Upstream timeout for buffered requests and stream handshakes"},
	FlagConciergeModel:  {Name: "concierge-model", ViperKey: "concierge.model", Description: "Gemini model for the concierge route"},
	FlagJournal:         {Name: "journal", ViperKey: "journal.provider", Description: "Journal store: none, memory, sqlite or postgres"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "journal.sqlite_path", Description: "Path to the SQLite journal database"},
	FlagPostgres:        {Name: "postgres", ViperKey: "journal.postgres_dsn", Description: "PostgreSQL journal connection string"},
	FlagJournalCapacity: {Name: "journal-capacity", ViperKey: "journal.capacity", Description: "Entries kept by the in-memory journal"},
	FlagEventStream:     {Name: "event-stream", ViperKey: "event_stream.provider", Description: "Journal event publisher: nop or kafka"},
	FlagKafkaBrokers:    {Name: "kafka-brokers", ViperKey: "event_stream.brokers", Description: "Comma-separated Kafka brokers"},
	FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "event_stream.topic", Description: "Kafka topic for journal events"},
	FlagRelayTarget:     {Name: "relay-target", Shorthand: "r", ViperKey: "client.relay_target", Description: "Relay base URL"},
	FlagClientPath:      {Name: "client-path", ViperKey: "client.path", Description: "Relay route used by the client"},
	FlagLogLevel:        {Name: "log-level", ViperKey: "log.level", Description: "Log level: debug, info, warn or error"},
	FlagLogFormat:       {Name: "log-format", ViperKey: "log.format", Description: "Log format: text, json or pretty"},
}

// AddStringFlag registers the string flag key from fs on cmd, defaulting to
// the configured default for its viper key.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers the int flag key from fs on cmd.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags connects already-registered flags to v. Call it after
// InitViper so flags take precedence over env, file and defaults.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
