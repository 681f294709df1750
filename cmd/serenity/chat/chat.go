// Package chatcmder provides the chat command: a conversation with the
// active agent in a full screen shell, or line by line with --plain.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/history"
	"github.com/papercomputeco/serenity/pkg/storage"
	"github.com/papercomputeco/serenity/pkg/tui"
)

const chatLongDesc string = `Start a conversation with the active agent.

In a terminal the chat runs full screen: type a message and press Enter,
Ctrl+N starts a new chat and Esc quits. With --plain, or when input or
output is not a terminal, messages are read line by line and replies are
printed as they stream. Type /new for a new chat and /exit to quit.

Every turn is kept in the replay log. --resume continues the last chat with
the same agent instead of opening a new one.

Examples:
  serenity chat
  serenity chat --resume
  serenity chat --agent writer
  echo "What is a goroutine?" | serenity chat --plain`

const chatShortDesc string = "Chat with the active agent"

// logFile receives log output while the full screen shell runs.
const logFile = "chat.log"

var chatFlags = []string{
	config.FlagBaseURL,
	config.FlagAgent,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEvents,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagWordWrap,
}

type chatCommander struct {
	baseURL      string
	agent        string
	storage      string
	sqlitePath   string
	postgresDSN  string
	events       string
	kafkaBrokers string
	kafkaTopic   string
	wordWrap     uint

	plain  bool
	resume bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap.Load(cmd, chatFlags...)
			if err != nil {
				return err
			}
			return cmder.run(cmd, env)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagAgent, &cmder.agent)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEvents, &cmder.events)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddUintFlag(cmd, config.Flags, config.FlagWordWrap, &cmder.wordWrap)
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Read and print plain lines instead of the full screen shell")
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Continue the last chat from the replay log")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command, env *bootstrap.Env) error {
	ctx := cmd.Context()
	fullScreen := !c.plain && bootstrap.Interactive(cmd)

	if fullScreen {
		closer, err := env.LogToFile(logFile)
		if err != nil {
			return err
		}
		defer closer.Close()
	}

	client, err := env.RequireSetup()
	if err != nil {
		return err
	}

	conv := assembler.Plain
	if fullScreen {
		if conv, err = env.TerminalConverter(); err != nil {
			return err
		}
	}

	shell := "cli"
	if fullScreen {
		shell = "tui"
	}
	rec, err := env.StartRecording(ctx, shell)
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			env.Logger.Warn("closing replay log", "error", err)
		}
	}()

	agent := env.Config.ActiveAgent()
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

	var restored []storage.Entry
	if c.resume {
		snap, err := history.Restore(ctx, rec.History)
		if err != nil {
			return err
		}
		switch {
		case snap.Empty():
			env.Logger.Info("nothing to resume, starting a new chat")
		case snap.AgentID != "" && snap.AgentID != agent:
			env.Logger.Info("last chat belongs to another agent, starting a new chat",
				"last_agent", snap.AgentID, "agent", agent)
		default:
			session.SetSessionID(snap.ChatID)
			restored = snap.Entries
		}
	}

	if fullScreen {
		return tui.Run(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout(), tui.Entries(restored, conv)...)
	}
	return runLines(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), session, restored)
}

// runLines is the line mode shell, reading one message per line from in.
func runLines(ctx context.Context, in io.Reader, out io.Writer, session *chat.Session, restored []storage.Entry) error {
	printer := tui.NewLinePrinter(out)
	unsubscribe := session.Subscribe(printer.Listener())
	defer unsubscribe()

	fmt.Fprintln(out)
	if len(restored) > 0 {
		fmt.Fprintf(out, "  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(session.SessionID()),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(restored))),
		)
	}
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Agent:"), cliui.NameStyle.Render(session.AgentID()))
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /new for a new chat, /exit or Ctrl+D to quit."))

	printRestored(out, restored)

	if session.SessionID() == "" {
		if err := session.Initialize(ctx, nil); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, tui.UserPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(out)
			return nil
		case "/new":
			if err := session.Restart(ctx); err != nil {
				fmt.Fprintf(out, "  %s %v\n\n", cliui.FailMark, err)
			}
			continue
		}

		if err := session.Execute(ctx, input); err != nil {
			fmt.Fprintf(out, "  %s %v\n\n", cliui.FailMark, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

func printRestored(out io.Writer, entries []storage.Entry) {
	for _, e := range entries {
		switch e.Role {
		case storage.RoleUser:
			fmt.Fprintf(out, "%s%s\n", tui.UserPrompt, e.Message)
		case storage.RoleError:
			fmt.Fprintf(out, "%s %s\n\n", cliui.FailMark, e.Message)
		default:
			fmt.Fprintf(out, "%s%s\n\n", tui.AgentPrompt, e.Message)
		}
	}
}
