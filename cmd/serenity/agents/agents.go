// Package agentscmder provides the agents command for listing the agent
// directory and switching the active agent.
package agentscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/config"
)

const agentsLongDesc string = `List the agents available to your API key.

The active agent is marked. Use "serenity agents switch" to change it.

Examples:
  serenity agents
  serenity agents switch
  serenity agents switch writer`

const agentsShortDesc string = "List available agents"

const defaultWidth = 80

func NewAgentsCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "agents",
		Short: agentsShortDesc,
		Long:  agentsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap.Load(cmd, config.FlagBaseURL)
			if err != nil {
				return err
			}
			return runList(cmd, env)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &baseURL)

	cmd.AddCommand(newSwitchCmd())

	return cmd
}

func runList(cmd *cobra.Command, env *bootstrap.Env) error {
	client, err := env.RequireSetup()
	if err != nil {
		return err
	}

	agents, err := bootstrap.ListAgents(cmd.Context(), client)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(agents) == 0 {
		fmt.Fprintf(out, "\n  %s No agents available for this API key.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintln(out)
	cliui.AgentTable(out, agents, env.Config.ActiveAgent(), bootstrap.Width(out, defaultWidth))
	fmt.Fprintln(out)
	return nil
}
