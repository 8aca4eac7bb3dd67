// Package chatcmder provides the chat command: an interactive conversation
// streamed through a running relay.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
	"github.com/papercomputeco/streamrelay/pkg/client"
	"github.com/papercomputeco/streamrelay/pkg/concierge"
	"github.com/papercomputeco/streamrelay/pkg/config"
	"github.com/papercomputeco/streamrelay/pkg/dotdir"
	"github.com/papercomputeco/streamrelay/pkg/logger"
	"github.com/papercomputeco/streamrelay/pkg/ndjson"
)

var (
	userPrompt      = cliui.PromptStyle.Render("you> ")
	assistantPrompt = cliui.StepStyle.Render("assistant> ")
)

type chatCommander struct {
	relayTarget string
	clientPath  string
	model       string
	fresh       bool
	markdown    bool
	configDir   string
	debug       bool

	in  io.Reader
	out io.Writer

	logger  *slog.Logger
	ddm     *dotdir.Manager
	session *dotdir.ChatSession
}

const chatLongDesc string = `Start an interactive chat session through a running relay.

By default messages go to the relay's Gemini concierge route and the
conversation is kept in .relay/chat.json so the next "relay chat" resumes
it. With --model, messages go to the relay route instead as an Ollama-style
chat request for that model.

Replies are printed as their frames arrive. Type /clear to start a new
conversation and /exit (or Ctrl+D) to quit.

Examples:
  relay chat
  relay chat --new
  relay chat --model llama3.2 --relay-target http://localhost:8080`

const chatShortDesc string = "Interactive chat streamed through the relay"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(cmder.configDir)
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
			if !cmd.Flags().Changed(config.RelayFlags[config.FlagClientPath].Name) {
				cmder.clientPath = cfg.Client.Path
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.RelayFlags, config.FlagRelayTarget, &cmder.relayTarget)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagClientPath, &cmder.clientPath)
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Send Ollama-style requests for this model to the relay route")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Discard the saved conversation and start fresh")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", true, "Render each finished reply as markdown")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	opts := []logger.Option{logger.WithPretty(true), logger.WithWriter(os.Stderr)}
	if c.debug {
		opts = append(opts, logger.WithDebug(true))
	} else {
		opts = append(opts, logger.WithLevel("warn"))
	}
	c.logger = logger.New(opts...)
	c.ddm = dotdir.NewManager()

	if err := c.loadSession(); err != nil {
		return err
	}

	cl := c.newClient()
	c.printHeader(cl.Endpoint())

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/clear":
			if err := c.ddm.ClearChatSession(c.configDir); err != nil {
				return err
			}
			c.session = newSession()
			fmt.Fprintf(c.out, "  %s New conversation\n\n", cliui.SuccessMark)
			continue
		}

		c.session.Messages = append(c.session.Messages, dotdir.ChatMessage{Role: concierge.RoleUser, Text: input})

		reply, err := c.turn(ctx, cl)
		if err != nil {
			fmt.Fprintf(c.out, "\n  %s %v\n\n", cliui.FailMark, err)
			// Drop the failed message so it can be retried.
			c.session.Messages = c.session.Messages[:len(c.session.Messages)-1]
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		c.session.Messages = append(c.session.Messages, dotdir.ChatMessage{Role: concierge.RoleModel, Text: reply})
		c.session.UpdatedAt = time.Now().UTC()
		if err := c.ddm.SaveChatSession(c.session, c.configDir); err != nil {
			c.logger.Warn("could not save chat session", "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

func (c *chatCommander) loadSession() error {
	if c.fresh {
		if err := c.ddm.ClearChatSession(c.configDir); err != nil {
			return err
		}
	}

	session, err := c.ddm.LoadChatSession(c.configDir)
	if err != nil {
		return err
	}
	if session == nil {
		session = newSession()
	}
	c.session = session
	return nil
}

func newSession() *dotdir.ChatSession {
	return &dotdir.ChatSession{ID: uuid.NewString(), UpdatedAt: time.Now().UTC()}
}

func (c *chatCommander) newClient() *client.Client {
	path := client.ConciergePath
	if c.model != "" {
		path = c.clientPath
	}
	return client.New(c.relayTarget, client.WithPath(path), client.WithLogger(c.logger))
}

func (c *chatCommander) printHeader(endpoint string) {
	fmt.Fprintln(c.out)
	if n := len(c.session.Messages); n > 0 {
		fmt.Fprintf(c.out, "  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", n)),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Relay:"), cliui.ValueStyle.Render(endpoint))
	if c.model != "" {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.ValueStyle.Render(c.model))
	}
	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /clear to start over, /exit or Ctrl+D to quit."))
}

// turn streams one reply, printing deltas as frames arrive, and returns the
// complete reply text.
func (c *chatCommander) turn(ctx context.Context, cl *client.Client) (string, error) {
	var reply strings.Builder

	fmt.Fprint(c.out, assistantPrompt)
	err := cl.Stream(ctx, c.payload(), func(ev ndjson.Event) error {
		text := deltaText(ev)
		if text == "" {
			c.logger.Debug("frame without text", "raw", ev.IsRaw())
			return nil
		}
		fmt.Fprint(c.out, text)
		reply.WriteString(text)
		return nil
	}, func() {
		c.logger.Debug("reply complete", "bytes", reply.Len())
	})
	fmt.Fprintln(c.out)

	if err != nil {
		var statusErr *client.StatusError
		if errors.As(err, &statusErr) {
			return "", fmt.Errorf("relay returned status %d: %s", statusErr.StatusCode, strings.TrimSpace(statusErr.Body))
		}
		return "", err
	}

	if c.markdown && reply.Len() > 0 {
		if rendered, err := cliui.RenderMarkdown(reply.String()); err == nil {
			fmt.Fprint(c.out, rendered)
		}
	}
	fmt.Fprintln(c.out)

	return reply.String(), nil
}

// payload builds the request body for the selected route.
func (c *chatCommander) payload() map[string]any {
	if c.model == "" {
		history := make([]map[string]any, 0, len(c.session.Messages))
		for _, m := range c.session.Messages {
			history = append(history, map[string]any{"role": m.Role, "text": m.Text})
		}
		return map[string]any{"history": history}
	}

	messages := make([]map[string]any, 0, len(c.session.Messages))
	for _, m := range c.session.Messages {
		role := m.Role
		if role == concierge.RoleModel {
			role = "assistant"
		}
		messages = append(messages, map[string]any{"role": role, "content": m.Text})
	}
	return map[string]any{"model": c.model, "messages": messages}
}
