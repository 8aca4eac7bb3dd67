// Package relaycmder
package relaycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/streamrelay/cmd/relay/chat"
	configcmder "github.com/papercomputeco/streamrelay/cmd/relay/config"
	journalcmder "github.com/papercomputeco/streamrelay/cmd/relay/journal"
	servecmder "github.com/papercomputeco/streamrelay/cmd/relay/serve"
	versioncmder "github.com/papercomputeco/streamrelay/cmd/version"
)

const relayLongDesc string = `relay streams LLM responses to clients as newline-delimited JSON
without exposing the provider credential.

Run the server and talk to it using:
  relay serve      Run the relay
  relay chat       Chat through a running relay
  relay journal    List what a running relay recorded
  relay config     Manage persistent configuration`

const relayShortDesc string = "relay - streaming NDJSON relay"

func NewRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        relayShortDesc,
		Long:         relayLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .relay/ configuration directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(journalcmder.NewJournalCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
