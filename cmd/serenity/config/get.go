package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/config"
)

const getLongDesc string = `Get one or more configuration values.

Reads each key from config.toml in the .serenity/ directory, falling back to
its default. With --raw only the values are printed, one per line and empty
for unset keys, for use in scripts.

Examples:
  serenity config get agents.active
  serenity config get storage.driver storage.sqlite_path
  serenity config get --raw api.base_url`

const getShortDesc string = "Get configuration values"

type getCommander struct {
	raw bool
}

func newGetCmd() *cobra.Command {
	c := &getCommander{}

	cmd := &cobra.Command{
		Use:   "get <key> [key...]",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return c.run(cmd.OutOrStdout(), args, configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	cmd.Flags().BoolVar(&c.raw, "raw", false, "Print bare values only")

	return cmd
}

func (c *getCommander) run(out io.Writer, keys []string, configDir string) error {
	for _, key := range keys {
		if !config.IsValidConfigKey(key) {
			return unknownKey(key)
		}
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	values := make([]string, len(keys))
	for i, key := range keys {
		if values[i], err = cfger.GetConfigValue(key); err != nil {
			return err
		}
	}

	if c.raw {
		for _, v := range values {
			fmt.Fprintln(out, v)
		}
		return nil
	}

	printTarget(out, cfger)
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}
	for i, key := range keys {
		shown := cliui.DimStyle.Render("<not set>")
		if values[i] != "" {
			shown = cliui.ValueStyle.Render(redact(key, values[i]))
		}
		fmt.Fprintf(out, "  %s  %s%s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", width, key)), shown, envNote(key))
	}
	fmt.Fprintln(out)

	return nil
}
