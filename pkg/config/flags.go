package config

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag describes a command line flag backed by a config key. Commands name
// flags by registry key so --agent means the same thing on chat, serve and
// explain.
type Flag struct {
	Name      string
	Shorthand string

	// ViperKey is the dotted config key the flag overrides, e.g. "agents.active".
	ViperKey string

	Description string
}

// EnvVar is the environment variable that overrides f's config key, e.g.
// SERENITY_AGENTS_ACTIVE.
func (f Flag) EnvVar() string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.ViperKey, ".", "_"))
}

// usage is the help text, naming the environment override.
func (f Flag) usage() string {
	return f.Description + " [$" + f.EnvVar() + "]"
}

// FlagSet maps registry keys to flags.
type FlagSet map[string]Flag

// Registry keys for Flags.
const (
	FlagBaseURL       = "base-url"
	FlagAgent         = "agent"
	FlagBridgeListen  = "listen"
	FlagStorageDriver = "storage"
	FlagSQLite        = "sqlite"
	FlagPostgres      = "postgres"
	FlagEvents        = "events"
	FlagKafkaBrokers  = "kafka-brokers"
	FlagKafkaTopic    = "kafka-topic"
	FlagWordWrap      = "word-wrap"
)

// Flags is the registry shared by every serenity command.
var Flags = FlagSet{
	FlagBaseURL:       {Name: "base-url", ViperKey: "api.base_url", Description: "Agent platform base URL"},
	FlagAgent:         {Name: "agent", Shorthand: "a", ViperKey: "agents.active", Description: "Agent code to talk to"},
	FlagBridgeListen:  {Name: "listen", Shorthand: "l", ViperKey: "bridge.listen", Description: "Address for the editor bridge to listen on"},
	FlagStorageDriver: {Name: "storage", ViperKey: "storage.driver", Description: "Replay log driver (memory, sqlite, postgres)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite replay log (default: .serenity/history.sqlite)"},
	FlagPostgres:      {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL DSN for the replay log"},
	FlagEvents:        {Name: "events", ViperKey: "events.provider", Description: "Turn event provider (none, kafka)"},
	FlagKafkaBrokers:  {Name: "kafka-brokers", ViperKey: "events.kafka_brokers", Description: "Comma separated Kafka brokers"},
	FlagKafkaTopic:    {Name: "kafka-topic", ViperKey: "events.kafka_topic", Description: "Kafka topic for turn events"},
	FlagWordWrap:      {Name: "word-wrap", ViperKey: "render.word_wrap", Description: "Terminal word wrap width"},
}

// defaults holds the built-in values flags show in --help.
var defaults = sync.OnceValue(func() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
})

// AddStringFlag registers the string flag fs[key] on cmd, defaulting to the
// built-in value of its config key. Unknown keys register nothing.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	f, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().StringVarP(target, f.Name, f.Shorthand, defaults().GetString(f.ViperKey), f.usage())
}

// AddUintFlag is AddStringFlag for uint flags.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	f, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().UintVarP(target, f.Name, f.Shorthand, defaults().GetUint(f.ViperKey), f.usage())
}

// BindRegisteredFlags points the config keys of the given flags at their
// cobra flags, so a flag set on the command line wins over the environment
// and config.toml. Flags cmd does not define are skipped.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		f, ok := fs[key]
		if !ok {
			continue
		}
		if pf := cmd.Flags().Lookup(f.Name); pf != nil {
			_ = v.BindPFlag(f.ViperKey, pf)
		}
	}
}
