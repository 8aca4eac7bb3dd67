package configcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
	"github.com/papercomputeco/streamrelay/pkg/config"
)

const initLongDesc string = `Write a fresh config.toml.

Without --preset the file holds the default settings, which target a local
Ollama chat endpoint. An existing config.toml is only replaced with --force.

Presets:
  ollama   NDJSON chat stream from http://localhost:11434/api/chat
  openai   SSE chat completions, re-framed one event per line

Examples:
  relay config init
  relay config init --preset openai --force`

const initShortDesc string = "Write a fresh config.toml"

func newInitCmd() *cobra.Command {
	var (
		preset string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runInit(cmd.OutOrStdout(), preset, force, configDir)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Preset to start from ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing config.toml")

	return cmd
}

func runInit(w io.Writer, preset string, force bool, configDir string) error {
	cfg := config.NewDefaultConfig()
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := cfger.GetTarget()
	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to replace it)", target)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Wrote %s\n", cliui.SuccessMark, cliui.DimStyle.Render(target))
	fmt.Fprintf(w, "  %s %s\n\n", cliui.KeyStyle.Render("Upstream:"), cliui.ValueStyle.Render(cfg.Relay.Upstream))
	return nil
}
