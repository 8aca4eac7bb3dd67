// Package servecmder provides the serve command that runs the relay server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamrelay/pkg/config"
	"github.com/papercomputeco/streamrelay/relay"
)

type serveCommander struct {
	flags   serveFlags
	logFile string
	debug   bool

	cfg          *config.Config
	upstreamKey  string
	conciergeKey string

	logger *slog.Logger
}

// serveFlags are the flag targets. Their resolved values are read back from
// viper so config.toml and RELAY_* variables apply when a flag is not set.
type serveFlags struct {
	listen, upstream, path, upstreamFormat, frameMode, timeout string
	conciergeModel                                              string
	journal, sqlite, postgres                                   string
	eventStream, kafkaBrokers, kafkaTopic                       string
	logLevel, logFormat                                         string
	maxLineBytes, journalCapacity                               int
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagUpstream,
	config.FlagPath,
	config.FlagUpstreamFormat,
	config.FlagFrameMode,
	config.FlagMaxLineBytes,
	config.FlagTimeout,
	config.FlagConciergeModel,
	config.FlagJournal,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagJournalCapacity,
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagLogLevel,
	config.FlagLogFormat,
}

const serveLongDesc string = `Run the streaming relay.

The relay accepts JSON requests on its route, forwards them to the upstream
provider with the server-held credential and streams the upstream response
back as newline-delimited JSON frames.

The upstream credential is read from RELAY_UPSTREAM_API_KEY. When
GENAI_API_KEY is set the Gemini concierge route is enabled as well.

Settings resolve from flags, then RELAY_* environment variables
(e.g. RELAY_RELAY_UPSTREAM), then config.toml, then defaults.

Examples:
  relay serve
  relay serve --upstream http://localhost:11434/api/chat --frame-mode line
  relay serve --journal sqlite --sqlite ./relay.db --log-file relay.log`

const serveShortDesc string = "Run the streaming relay"

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.loadConfig(cmd, configDir)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagListen, &f.listen)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagUpstream, &f.upstream)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagPath, &f.path)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagUpstreamFormat, &f.upstreamFormat)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagFrameMode, &f.frameMode)
	config.AddIntFlag(cmd, config.RelayFlags, config.FlagMaxLineBytes, &f.maxLineBytes)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagTimeout, &f.timeout)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagConciergeModel, &f.conciergeModel)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagJournal, &f.journal)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagSQLite, &f.sqlite)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagPostgres, &f.postgres)
	config.AddIntFlag(cmd, config.RelayFlags, config.FlagJournalCapacity, &f.journalCapacity)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagEventStream, &f.eventStream)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagKafkaBrokers, &f.kafkaBrokers)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagKafkaTopic, &f.kafkaTopic)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagLogLevel, &f.logLevel)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagLogFormat, &f.logFormat)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) loadConfig(cmd *cobra.Command, configDir string) error {
	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.RelayFlags, serveFlagKeys)

	c.cfg = config.FromViper(v)
	c.upstreamKey = v.GetString(config.KeyUpstreamAPIKey)
	c.conciergeKey = v.GetString(config.KeyGenAIAPIKey)
	return nil
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, closeLog, err := newLogger(c.cfg.Log, c.debug, c.logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	deps, err := openDependencies(ctx, c.cfg, c.conciergeKey, c.logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	relayConfig, err := relayConfig(c.cfg, c.upstreamKey, deps)
	if err != nil {
		return err
	}

	r, err := relay.New(relayConfig, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	if c.upstreamKey == "" {
		c.logger.Warn("no upstream credential set; relay requests will fail until "+config.EnvUpstreamAPIKey+" is provided")
	}

	errChan := make(chan error, 1)
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return nil
	}
}
