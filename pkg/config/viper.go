package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/serenity/pkg/dotdir"
)

// EnvPrefix prefixes every environment override, e.g. SERENITY_AGENTS_ACTIVE.
const EnvPrefix = "SERENITY"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the SERENITY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SERENITY_API_BASE_URL, SERENITY_BRIDGE_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper builds a Config from the layered values in v.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.base_url"), "/"),
		},
		Agents: AgentsConfig{
			Default:        v.GetString("agents.default"),
			Active:         v.GetString("agents.active"),
			ExplainCommand: v.GetString("agents.explain_command"),
		},
		Storage: StorageConfig{
			Driver:      v.GetString("storage.driver"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Bridge: BridgeConfig{
			Listen: v.GetString("bridge.listen"),
		},
		Events: EventsConfig{
			Provider:   v.GetString("events.provider"),
			KafkaTopic: v.GetString("events.kafka_topic"),
		},
		Render: RenderConfig{
			WordWrap: v.GetUint("render.word_wrap"),
		},
	}

	// Env and flag values arrive as a single comma separated string.
	for _, b := range v.GetStringSlice("events.kafka_brokers") {
		cfg.Events.KafkaBrokers = append(cfg.Events.KafkaBrokers, SplitList(b)...)
	}

	return cfg
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("api.base_url", d.API.BaseURL)

	// Agents have no defaults but are registered so AutomaticEnv sees them
	// in Get calls for nested keys.
	v.SetDefault("agents.default", d.Agents.Default)
	v.SetDefault("agents.active", d.Agents.Active)
	v.SetDefault("agents.explain_command", d.Agents.ExplainCommand)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	v.SetDefault("bridge.listen", d.Bridge.Listen)

	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)

	v.SetDefault("render.word_wrap", d.Render.WordWrap)
}
