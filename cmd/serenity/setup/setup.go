// Package setupcmder provides the setup command: store an API key and pick
// the default agent.
package setupcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/serenity"
)

const setupLongDesc string = `Set up serenity for chatting.

Prompts for the agent platform API key (unless one is already stored, see
--new-key), lists the agents the key can use and stores the chosen one as
both the default and the active agent.

Setup is complete once an API key and agents.default are both set. Commands
that talk to agents ask you to run setup until then.

Examples:
  serenity setup
  serenity setup --agent coder
  echo $KEY | serenity setup --new-key --agent coder`

const setupShortDesc string = "Store an API key and pick the default agent"

type setupCommander struct {
	baseURL string
	agent   string
	newKey  bool
}

func NewSetupCmd() *cobra.Command {
	cmder := &setupCommander{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: setupShortDesc,
		Long:  setupLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap.Load(cmd, config.FlagBaseURL)
			if err != nil {
				return err
			}
			return cmder.run(cmd, env)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	cmd.Flags().StringVarP(&cmder.agent, "agent", "a", "", "Agent code to use instead of the picker")
	cmd.Flags().BoolVar(&cmder.newKey, "new-key", false, "Prompt for a new API key even when one is stored")

	return cmd
}

func (c *setupCommander) run(cmd *cobra.Command, env *bootstrap.Env) error {
	out := cmd.OutOrStdout()
	baseURL := env.Config.API.BaseURL

	key, err := env.APIKey()
	if err != nil {
		return err
	}
	if key == "" || c.newKey {
		key, err = bootstrap.ReadAPIKey(cmd.InOrStdin(), out, baseURL)
		if err != nil {
			return err
		}
		if err := env.Credentials.SetKey(baseURL, key); err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s Stored API key for %s\n", cliui.SuccessMark, cliui.NameStyle.Render(baseURL))
	}

	client, err := env.Client()
	if err != nil {
		return err
	}

	var agents []serenity.Agent
	fetch := func() error {
		agents, err = bootstrap.ListAgents(cmd.Context(), client)
		return err
	}
	if bootstrap.Interactive(cmd) {
		err = cliui.Step(out, "Fetching agents", fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return err
	}

	agent, err := bootstrap.ChooseAgent(cmd, agents, c.agent, env.Config.Agents.Default, "Pick your default agent")
	if err != nil {
		return err
	}

	if err := env.ActivateAgent(agent.Code, true); err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Default agent %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(agent.Code),
		cliui.DimStyle.Render(agent.Name),
	)
	fmt.Fprintf(out, "  Run 'serenity chat' to start talking.\n\n")
	return nil
}
