// Package newchatcmder provides the new-chat command, which returns to the
// default agent and forgets the current chat.
package newchatcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/config"
)

const newChatLongDesc string = `Start over with the default agent.

Sets agents.active back to agents.default and clears the replay log, so the
next "serenity chat" opens a new conversation. A running "serenity serve"
follows the agent change.

Examples:
  serenity new-chat`

const newChatShortDesc string = "Return to the default agent and clear the chat"

func NewNewChatCmd() *cobra.Command {
	var (
		storage     string
		sqlitePath  string
		postgresDSN string
	)

	cmd := &cobra.Command{
		Use:   "new-chat",
		Short: newChatShortDesc,
		Long:  newChatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap.Load(cmd, config.FlagStorageDriver, config.FlagSQLite, config.FlagPostgres)
			if err != nil {
				return err
			}
			return runNewChat(cmd, env)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &postgresDSN)

	return cmd
}

func runNewChat(cmd *cobra.Command, env *bootstrap.Env) error {
	agent := env.Config.Agents.Default
	if agent == "" {
		return bootstrap.ErrSetupIncomplete
	}

	if err := env.ActivateAgent(agent, false); err != nil {
		return err
	}

	driver, err := env.OpenHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer driver.Close()

	if err := driver.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n  %s New chat with %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(agent))
	return nil
}
