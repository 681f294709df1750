// Package historycmder provides the history command for displaying or
// clearing the replay log of the last chat.
package historycmder

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/history"
	"github.com/papercomputeco/serenity/pkg/storage"
	"github.com/papercomputeco/serenity/pkg/utils"
)

const historyLongDesc string = `Show the last chat.

Reads the replay log in the .serenity/ directory and lists the messages of
the chat "serenity chat --resume" would continue. Messages are shortened to
one line unless --full is given.

Use --clear to forget the chat without changing agents.

Examples:
  serenity history
  serenity history --full
  serenity history --clear`

const historyShortDesc string = "Show the last chat"

const previewWidth = 72

type historyCommander struct {
	storage     string
	sqlitePath  string
	postgresDSN string

	clear bool
	full  bool
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap.Load(cmd, config.FlagStorageDriver, config.FlagSQLite, config.FlagPostgres)
			if err != nil {
				return err
			}
			return cmder.run(cmd, env)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	cmd.Flags().BoolVar(&cmder.clear, "clear", false, "Clear the replay log")
	cmd.Flags().BoolVar(&cmder.full, "full", false, "Print whole messages")
	cmd.MarkFlagsMutuallyExclusive("clear", "full")

	return cmd
}

func (c *historyCommander) run(cmd *cobra.Command, env *bootstrap.Env) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	driver, err := env.OpenHistory(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	if c.clear {
		if err := driver.Clear(ctx); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		fmt.Fprintf(out, "  %s History cleared\n", cliui.SuccessMark)
		return nil
	}

	snap, err := history.Restore(ctx, driver)
	if err != nil {
		return err
	}

	if snap.Empty() {
		fmt.Fprintf(out, "  %s No chat recorded. Next chat will start a new conversation.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	printSnapshot(out, snap, c.full)
	return nil
}

func printSnapshot(out io.Writer, snap *history.Snapshot, full bool) {
	fmt.Fprintf(out, "\n  %s  %s\n", cliui.KeyStyle.Render("Chat:    "), cliui.NameStyle.Render(snap.ChatID))
	fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Agent:   "), cliui.NameStyle.Render(snap.AgentID))
	fmt.Fprintf(out, "  %s  %s\n\n", cliui.KeyStyle.Render("Messages:"), cliui.NameStyle.Render(strconv.Itoa(len(snap.Entries))))

	for i, e := range snap.Entries {
		message := e.Message
		if !full {
			message = utils.Preview(message, previewWidth)
		}

		prefix := fmt.Sprintf("  %s %s ",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
			roleStyle(e.Role).Render("["+string(e.Role)+"]"),
		)
		text := renderLines(message, strings.Repeat(" ", lipgloss.Width(prefix)))
		if !e.Complete && e.Role == storage.RoleBot {
			text += " " + cliui.WarnStyle.Render("(interrupted)")
		}

		fmt.Fprintf(out, "%s%s\n", prefix, text)
	}

	fmt.Fprintln(out)
}

// renderLines styles each line of message on its own, so no line is padded to
// the widest one, and indents continuation lines under the first.
func renderLines(message, indent string) string {
	lines := strings.Split(message, "\n")
	for i, l := range lines {
		lines[i] = cliui.ValueStyle.Render(l)
	}
	return strings.Join(lines, "\n"+indent)
}

func roleStyle(role storage.Role) lipgloss.Style {
	switch role {
	case storage.RoleUser:
		return cliui.UserStyle
	case storage.RoleError:
		return cliui.ErrorStyle
	default:
		return cliui.KeyStyle
	}
}
