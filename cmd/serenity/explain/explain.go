// Package explaincmder provides the explain command, which asks the explain
// agent about a piece of code.
package explaincmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/tui"
)

const explainLongDesc string = `Explain a piece of code.

Sends the code to the agent in agents.explain_command in a new chat. The
first run asks which agent explains code and remembers it. The explain agent
also becomes the active agent, so "serenity chat --resume" continues the
conversation.

Without a file the code is read from stdin.

Examples:
  serenity explain main.go
  serenity explain main.go --lines 10:42
  git diff | serenity explain`

const explainShortDesc string = "Explain a piece of code"

var explainFlags = []string{
	config.FlagBaseURL,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEvents,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagWordWrap,
}

type explainCommander struct {
	baseURL      string
	storage      string
	sqlitePath   string
	postgresDSN  string
	events       string
	kafkaBrokers string
	kafkaTopic   string
	wordWrap     uint

	lines string
}

func NewExplainCmd() *cobra.Command {
	cmder := &explainCommander{}

	cmd := &cobra.Command{
		Use:   "explain [file]",
		Short: explainShortDesc,
		Long:  explainLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := cmder.readCode(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			env, err := bootstrap.Load(cmd, explainFlags...)
			if err != nil {
				return err
			}
			return cmder.run(cmd, env, code)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEvents, &cmder.events)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddUintFlag(cmd, config.Flags, config.FlagWordWrap, &cmder.wordWrap)
	cmd.Flags().StringVarP(&cmder.lines, "lines", "n", "", "Only explain lines start:end (1-based, inclusive)")

	return cmd
}

func (c *explainCommander) readCode(stdin io.Reader, args []string) (string, error) {
	r, err := parseLines(c.lines)
	if err != nil {
		return "", err
	}

	var raw []byte
	if len(args) == 1 {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(stdin)
	}
	if err != nil {
		return "", fmt.Errorf("reading code: %w", err)
	}

	code, err := r.apply(string(raw))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(code) == "" {
		return "", errors.New("no code to explain")
	}
	return code, nil
}

func (c *explainCommander) run(cmd *cobra.Command, env *bootstrap.Env, code string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	interactive := bootstrap.Interactive(cmd)

	client, err := env.RequireSetup()
	if err != nil {
		return err
	}

	agent := env.Config.Agents.ExplainCommand
	if agent == "" {
		agents, err := bootstrap.ListAgents(ctx, client)
		if err != nil {
			return err
		}
		picked, err := bootstrap.ChooseAgent(cmd, agents, "", env.Config.ActiveAgent(), "Pick the agent that explains code")
		if err != nil {
			return fmt.Errorf("choosing explain agent: %w", err)
		}
		agent = picked.Code

		if err := env.Configer.SetConfigValue("agents.explain_command", agent); err != nil {
			return err
		}
		env.Config.Agents.ExplainCommand = agent
	}

	if err := env.ActivateAgent(agent, false); err != nil {
		return err
	}

	conv := assembler.Plain
	if interactive {
		if conv, err = env.TerminalConverter(); err != nil {
			return err
		}
	}

	rec, err := env.StartRecording(ctx, "cli")
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			env.Logger.Warn("closing replay log", "error", err)
		}
	}()

	session, err := chat.New(chat.Config{
		API:       client,
		AgentID:   agent,
		Converter: conv,
		Logger:    env.Logger.With("component", "chat"),
	})
	if err != nil {
		return err
	}
	rec.Attach(session)

	if err := session.Initialize(ctx, nil); err != nil {
		return err
	}

	reply := &replyCollector{}
	defer session.Subscribe(reply.listen)()

	prompt := chat.ExplainPrompt(code)
	if interactive {
		err = cliui.Step(out, "Asking "+agent, func() error {
			if err := session.Execute(ctx, prompt); err != nil {
				return err
			}
			return reply.err
		})
		if err == nil {
			fmt.Fprintf(out, "\n%s\n", reply.rendered)
		}
		return err
	}

	defer session.Subscribe(tui.NewLinePrinter(out).Listener())()
	if err := session.Execute(ctx, prompt); err != nil {
		return err
	}
	return reply.err
}

// replyCollector keeps the final reply of a turn, or the error that ended it.
type replyCollector struct {
	rendered string
	err      error
}

func (r *replyCollector) listen(n chat.Notification) {
	switch n.Kind {
	case chat.TurnUpdate:
		if n.IsComplete {
			r.rendered = n.Rendered
		}
	case chat.TurnError:
		if !n.EndsTurn() {
			return
		}
		r.err = errors.New(n.Message)
		if n.Err != nil {
			r.err = fmt.Errorf("%s: %w", n.Message, n.Err)
		}
	}
}
