// Package serenitycmder
package serenitycmder

import (
	"github.com/spf13/cobra"

	agentscmder "github.com/papercomputeco/serenity/cmd/serenity/agents"
	authcmder "github.com/papercomputeco/serenity/cmd/serenity/auth"
	chatcmder "github.com/papercomputeco/serenity/cmd/serenity/chat"
	configcmder "github.com/papercomputeco/serenity/cmd/serenity/config"
	explaincmder "github.com/papercomputeco/serenity/cmd/serenity/explain"
	historycmder "github.com/papercomputeco/serenity/cmd/serenity/history"
	initcmder "github.com/papercomputeco/serenity/cmd/serenity/init"
	newchatcmder "github.com/papercomputeco/serenity/cmd/serenity/newchat"
	runcmder "github.com/papercomputeco/serenity/cmd/serenity/run"
	servecmder "github.com/papercomputeco/serenity/cmd/serenity/serve"
	setupcmder "github.com/papercomputeco/serenity/cmd/serenity/setup"
	versioncmder "github.com/papercomputeco/serenity/cmd/serenity/version"
)

const serenityLongDesc string = `Serenity talks to Serenity Star agents from the terminal and the editor.

Get started:
  serenity setup       Store an API key and pick a default agent
  serenity chat        Chat with the active agent
  serenity serve       Run the bridge editor webviews talk to

Configuration and state live in ./.serenity/ when it exists (see
serenity init), ~/.serenity/ otherwise.`

const serenityShortDesc string = "Serenity - Serenity Star agents in your terminal"

func NewSerenityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serenity",
		Short:         serenityShortDesc,
		Long:          serenityLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .serenity/ directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(setupcmder.NewSetupCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(agentscmder.NewAgentsCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(newchatcmder.NewNewChatCmd())
	cmd.AddCommand(explaincmder.NewExplainCmd())
	cmd.AddCommand(runcmder.NewRunCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
