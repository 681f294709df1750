// Package authcmder provides the auth command for storing agent platform API
// keys.
package authcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/credentials"
)

const authLongDesc string = `Store the API key for the agent platform.

Keys are stored per base URL in credentials.toml in the .serenity/ directory.
The key for api.base_url is used unless SERENITY_API_KEY is set, which always
wins.

Examples:
  serenity auth                                 Prompt for the API key
  serenity auth --base-url https://eu.example   Store a key for another host
  serenity auth --list                          List hosts with stored keys
  serenity auth --remove                        Remove the key for api.base_url
  echo $KEY | serenity auth                     Pipe the API key from stdin`

const authShortDesc string = "Store the agent platform API key"

type authCommander struct {
	baseURL string
	list    bool
	remove  bool
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap.Load(cmd, config.FlagBaseURL)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case cmder.list:
				return runList(out, env.Credentials)
			case cmder.remove:
				return runRemove(out, env)
			default:
				return runAuth(cmd.InOrStdin(), out, env)
			}
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	cmd.Flags().BoolVar(&cmder.list, "list", false, "List hosts with stored keys")
	cmd.Flags().BoolVar(&cmder.remove, "remove", false, "Remove the stored key for the base URL")

	return cmd
}

func runAuth(in io.Reader, out io.Writer, env *bootstrap.Env) error {
	baseURL := env.Config.API.BaseURL

	key, err := bootstrap.ReadAPIKey(in, out, baseURL)
	if err != nil {
		return err
	}

	if err := env.Credentials.SetKey(baseURL, key); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Stored key %s for %s\n\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render(credentials.Mask(key)),
		cliui.NameStyle.Render(baseURL),
	)
	return nil
}

func runList(out io.Writer, mgr *credentials.Manager) error {
	hosts, err := mgr.ListHosts()
	if err != nil {
		return err
	}

	if len(hosts) == 0 {
		fmt.Fprintf(out, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'serenity auth' to store an API key.\n\n")
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored credentials"))
	for _, host := range hosts {
		key, err := mgr.GetKey(host)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s  %s  %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(host),
			cliui.DimStyle.Render(credentials.Mask(key)),
		)
	}
	fmt.Fprintln(out)

	return nil
}

func runRemove(out io.Writer, env *bootstrap.Env) error {
	baseURL := env.Config.API.BaseURL
	if err := env.Credentials.RemoveKey(baseURL); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Removed key for %s.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(baseURL))
	return nil
}
