package agentscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/config"
)

const switchLongDesc string = `Switch the active agent.

Without an agent code an interactive picker is shown. The choice is stored
as agents.active; a running "serenity serve" follows it and starts a new
chat. "serenity new-chat" returns to the default agent.

Examples:
  serenity agents switch
  serenity agents switch writer`

const switchShortDesc string = "Switch the active agent"

func newSwitchCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "switch [code]",
		Short: switchShortDesc,
		Long:  switchLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := bootstrap.Load(cmd, config.FlagBaseURL)
			if err != nil {
				return err
			}

			var code string
			if len(args) == 1 {
				code = args[0]
			}
			return runSwitch(cmd, env, code)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &baseURL)

	return cmd
}

func runSwitch(cmd *cobra.Command, env *bootstrap.Env, code string) error {
	client, err := env.RequireSetup()
	if err != nil {
		return err
	}

	agents, err := bootstrap.ListAgents(cmd.Context(), client)
	if err != nil {
		return err
	}

	agent, err := bootstrap.ChooseAgent(cmd, agents, code, env.Config.ActiveAgent(), "Switch agent")
	if err != nil {
		return err
	}

	if err := env.ActivateAgent(agent.Code, false); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Active agent %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(agent.Code),
		cliui.DimStyle.Render(agent.Name),
	)
	return nil
}
