// Package configcmder provides the config command for managing persistent
// serenity configuration stored in the .serenity/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent serenity configuration.

Configuration is stored as config.toml in the .serenity/ directory and provides
default values for command flags. CLI flags and SERENITY_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.base_url,
  agents.default, agents.active, agents.explain_command,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  bridge.listen,
  events.provider, events.kafka_brokers, events.kafka_topic,
  render.word_wrap

Use subcommands to get, set, or list configuration values:
  serenity config set <key> <value>    Set a configuration value
  serenity config get <key>...         Get configuration values
  serenity config list                 List all configuration values

Examples:
  serenity config set agents.explain_command code-explainer
  serenity config set storage.driver postgres
  serenity config get agents.active
  serenity config list`

const configShortDesc string = "Manage persistent serenity configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
