// Package configcmder provides the config command for managing persistent
// relay configuration stored in the .relay/ directory.
package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
	"github.com/papercomputeco/streamrelay/pkg/config"
)

const configLongDesc string = `Manage persistent relay configuration.

Configuration is stored as config.toml in the .relay/ directory and provides
default values for command flags. CLI flags and RELAY_* environment
variables always take precedence over config file values. Credentials are
never stored here; set RELAY_UPSTREAM_API_KEY and GENAI_API_KEY instead.

Keys use dotted notation matching the TOML section structure:
  relay.listen, relay.upstream, relay.path, relay.upstream_format,
  relay.frame_mode, relay.max_line_bytes, relay.timeout,
  concierge.model,
  journal.provider, journal.sqlite_path, journal.postgres_dsn, journal.capacity,
  event_stream.provider, event_stream.brokers, event_stream.topic,
  client.relay_target, client.path,
  log.level, log.format

Use subcommands to manage configuration values:
  relay config init [--preset name]  Write a fresh config.toml
  relay config set <key> <value>     Set a configuration value
  relay config get <key>             Get a configuration value
  relay config list                  List all configuration values

Examples:
  relay config init --preset openai
  relay config set relay.frame_mode line
  relay config get relay.upstream
  relay config list`

const configShortDesc string = "Manage persistent relay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
