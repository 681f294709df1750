package servecmder

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/serve"
)

const statusLongDesc string = `Show the running editor bridge.

Reads the bridge state file in the .serenity/ directory. A state file left
behind by a bridge that no longer runs is reported as stopped.

Examples:
  serenity serve status
  serenity serve status --json`

const statusShortDesc string = "Show the running editor bridge"

func NewStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap.Load(cmd)
			if err != nil {
				return err
			}
			return runStatus(cmd, env, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the state as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, env *bootstrap.Env, asJSON bool) error {
	out := cmd.OutOrStdout()

	manager, err := serve.NewManager(env.Dir)
	if err != nil {
		return err
	}
	state, err := manager.LoadState()
	if err != nil {
		return fmt.Errorf("loading bridge state: %w", err)
	}
	if !state.Alive() {
		state = nil
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	if state == nil {
		fmt.Fprintf(out, "  %s No bridge running. Start one with serenity serve.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(out, "\n  %s  %s\n", cliui.KeyStyle.Render("Bridge:"), cliui.NameStyle.Render(state.URL))
	fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Agent: "), cliui.NameStyle.Render(state.Agent))
	fmt.Fprintf(out, "  %s  %d\n", cliui.KeyStyle.Render("PID:   "), state.PID)
	fmt.Fprintf(out, "  %s  %s\n\n", cliui.KeyStyle.Render("Uptime:"), state.Uptime(time.Now()).String())
	return nil
}
