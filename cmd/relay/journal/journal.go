// Package journalcmder provides the journal command that lists the entries
// a running relay recorded.
package journalcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
	"github.com/papercomputeco/streamrelay/pkg/config"
	"github.com/papercomputeco/streamrelay/relay"
)

type journalCommander struct {
	relayTarget string
	limit       int
	jsonOut     bool

	out    io.Writer
	errOut io.Writer
}

const journalLongDesc string = `List the journal of a running relay, newest first.

The relay only keeps a journal when it was started with a journal store
(relay serve --journal memory|sqlite|postgres).

Examples:
  relay journal
  relay journal --limit 20
  relay journal --json --relay-target http://localhost:8080`

const journalShortDesc string = "List recent relay journal entries"

func NewJournalCmd() *cobra.Command {
	cmder := &journalCommander{}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: journalShortDesc,
		Long:  journalLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed(config.RelayFlags[config.FlagRelayTarget].Name) {
				cmder.relayTarget = cfg.Client.RelayTarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.RelayFlags, config.FlagRelayTarget, &cmder.relayTarget)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 50, "Maximum number of entries to list")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print entries as JSON")

	return cmd
}

func (c *journalCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var page *relay.JournalPage
	load := func() error {
		var err error
		page, err = c.fetch(ctx)
		return err
	}

	// Progress goes to stderr so --json output stays parseable.
	var err error
	if c.errOut != nil {
		err = cliui.Step(c.errOut, "Fetching journal from "+c.relayTarget, load)
	} else {
		err = load()
	}
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}

	fmt.Fprintln(c.out)
	if len(page.Entries) == 0 {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("No journal entries yet."))
		return nil
	}

	for _, e := range page.Entries {
		fmt.Fprintf(c.out, "  %s\n", cliui.FormatEntry(e))
	}
	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d entries", len(page.Entries))))
	return nil
}

func (c *journalCommander) fetch(ctx context.Context) (*relay.JournalPage, error) {
	u, err := url.Parse(strings.TrimRight(c.relayTarget, "/") + relay.DefaultJournalPath)
	if err != nil {
		return nil, fmt.Errorf("parsing relay target: %w", err)
	}
	u.RawQuery = url.Values{"limit": {strconv.Itoa(c.limit)}}.Encode()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting journal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope relay.Envelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
			return nil, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, envelope.Error)
		}
		return nil, fmt.Errorf("relay returned status %d", resp.StatusCode)
	}

	page := &relay.JournalPage{}
	if err := json.NewDecoder(resp.Body).Decode(page); err != nil {
		return nil, fmt.Errorf("decoding journal: %w", err)
	}
	return page, nil
}
