package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/papercomputeco/streamrelay/pkg/concierge"
	"github.com/papercomputeco/streamrelay/pkg/config"
	"github.com/papercomputeco/streamrelay/pkg/eventstream"
	"github.com/papercomputeco/streamrelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/streamrelay/pkg/eventstream/nop"
	"github.com/papercomputeco/streamrelay/pkg/logger"
	"github.com/papercomputeco/streamrelay/pkg/ndjson"
	"github.com/papercomputeco/streamrelay/pkg/storage"
	"github.com/papercomputeco/streamrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/streamrelay/pkg/storage/postgres"
	"github.com/papercomputeco/streamrelay/pkg/storage/sqlite"
	"github.com/papercomputeco/streamrelay/relay"
)

// dependencies are the resources the relay borrows and serve owns.
type dependencies struct {
	journal   storage.Driver
	publisher eventstream.Publisher
	concierge concierge.Generator
}

// Close releases the publisher and the journal store.
func (d *dependencies) Close() error {
	var errs []error
	if d.publisher != nil {
		errs = append(errs, d.publisher.Close())
	}
	if d.journal != nil {
		errs = append(errs, d.journal.Close())
	}
	return errors.Join(errs...)
}

func openDependencies(ctx context.Context, cfg *config.Config, conciergeKey string, log *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	journal, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		return nil, err
	}
	deps.journal = journal

	if journal != nil {
		publisher, err := openPublisher(cfg.EventStream)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.publisher = publisher
	}

	if conciergeKey == "" {
		log.Info("concierge route disabled", "reason", config.EnvGenAIAPIKey+" not set")
		return deps, nil
	}

	gemini, err := concierge.NewGemini(ctx, conciergeKey, cfg.Concierge.Model)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("creating concierge: %w", err)
	}
	deps.concierge = gemini
	log.Info("concierge route enabled", "model", gemini.Model())

	return deps, nil
}

// openJournal returns nil when journaling is disabled.
func openJournal(ctx context.Context, cfg config.JournalConfig) (storage.Driver, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil

	case "memory":
		return inmemory.NewDriver(cfg.Capacity), nil

	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, errors.New("sqlite journal requires --sqlite or journal.sqlite_path")
		}
		drv, err := sqlite.NewDriver(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite journal: %w", err)
		}
		return drv, nil

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres journal requires --postgres or journal.postgres_dsn")
		}
		drv, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres journal: %w", err)
		}
		return drv, nil

	default:
		return nil, fmt.Errorf("unknown journal provider %q", cfg.Provider)
	}
}

func openPublisher(cfg config.EventStreamConfig) (eventstream.Publisher, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: kafka.ParseBrokers(cfg.Brokers),
			Topic:   cfg.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown event stream provider %q", cfg.Provider)
	}
}

func relayConfig(cfg *config.Config, apiKey string, deps *dependencies) (relay.Config, error) {
	format, err := relay.ParseFormat(cfg.Relay.UpstreamFormat)
	if err != nil {
		return relay.Config{}, err
	}

	mode, err := ndjson.ParseFrameMode(cfg.Relay.FrameMode)
	if err != nil {
		return relay.Config{}, err
	}

	timeout, err := config.ParseTimeout(cfg.Relay.Timeout)
	if err != nil {
		return relay.Config{}, err
	}

	rc := relay.Config{
		ListenAddr:     cfg.Relay.Listen,
		Path:           cfg.Relay.Path,
		UpstreamURL:    cfg.Relay.Upstream,
		APIKey:         apiKey,
		UpstreamFormat: format,
		FrameMode:      mode,
		MaxLineBytes:   cfg.Relay.MaxLineBytes,
		Timeout:        timeout,
	}

	if deps != nil {
		rc.Journal = deps.journal
		rc.Publisher = deps.publisher
		if deps.concierge != nil {
			rc.Concierge = deps.concierge
		}
	}

	return rc, nil
}

// newLogger builds the serve logger from log settings. With logFile set,
// records are also appended to that file as JSON.
func newLogger(cfg config.LogConfig, debug bool, logFile string) (*slog.Logger, func(), error) {
	level := cfg.Level
	if debug {
		level = "debug"
	}

	term := logger.New(
		logger.WithLevel(level),
		logger.WithPretty(cfg.Format == "pretty"),
		logger.WithJSON(cfg.Format == "json"),
		logger.WithWriter(os.Stderr),
	)

	if logFile == "" {
		return term, func() {}, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithLevel(level),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)

	return logger.Multi(term, file), func() { _ = f.Close() }, nil
}
