package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Config represents the persistent serenity configuration stored as
// config.toml in the .serenity/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version int           `toml:"version"`
	API     APIConfig     `toml:"api"`
	Agents  AgentsConfig  `toml:"agents"`
	Storage StorageConfig `toml:"storage"`
	Bridge  BridgeConfig  `toml:"bridge"`
	Events  EventsConfig  `toml:"events"`
	Render  RenderConfig  `toml:"render"`
}

// APIConfig holds the agent platform endpoint.
type APIConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
}

// AgentsConfig holds the agent codes used by the chat and explain commands.
type AgentsConfig struct {
	// Default is the agent picked during setup. New chats return to it.
	Default string `toml:"default,omitempty"`

	// Active is the agent the current chat talks to.
	Active string `toml:"active,omitempty"`

	// ExplainCommand is the agent used by "serenity explain".
	ExplainCommand string `toml:"explain_command,omitempty"`
}

// StorageConfig holds replay log settings.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// BridgeConfig holds settings for the editor bridge started by "serenity serve".
type BridgeConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig holds turn event publishing settings.
type EventsConfig struct {
	Provider     string   `toml:"provider,omitempty"`
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

// RenderConfig holds terminal rendering settings.
type RenderConfig struct {
	WordWrap uint `toml:"word_wrap,omitempty"`
}

// ActiveAgent returns the agent the chat should talk to: the active agent,
// falling back to the default.
func (c *Config) ActiveAgent() string {
	if c.Agents.Active != "" {
		return c.Agents.Active
	}
	return c.Agents.Default
}

// SetupComplete reports whether an API key and a default agent are both set.
func (c *Config) SetupComplete(apiKey string) bool {
	return apiKey != "" && c.Agents.Default != ""
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// keyOrder lists every key of configKeys in config.toml section order.
var keyOrder = []string{
	"api.base_url",
	"agents.default",
	"agents.active",
	"agents.explain_command",
	"storage.driver",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"bridge.listen",
	"events.provider",
	"events.kafka_brokers",
	"events.kafka_topic",
	"render.word_wrap",
}

// configKeys maps each dotted key to its accessors.
var configKeys = map[string]configKeyInfo{
	"api.base_url": {
		get: func(c *Config) string { return c.API.BaseURL },
		set: func(c *Config, v string) error {
			c.API.BaseURL = strings.TrimRight(v, "/")
			return nil
		},
	},
	"agents.default": {
		get: func(c *Config) string { return c.Agents.Default },
		set: func(c *Config, v string) error { c.Agents.Default = v; return nil },
	},
	"agents.active": {
		get: func(c *Config) string { return c.Agents.Active },
		set: func(c *Config, v string) error { c.Agents.Active = v; return nil },
	},
	"agents.explain_command": {
		get: func(c *Config) string { return c.Agents.ExplainCommand },
		set: func(c *Config, v string) error { c.Agents.ExplainCommand = v; return nil },
	},
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			if !slices.Contains(StorageDrivers(), v) {
				return fmt.Errorf("invalid value for storage.driver: %q (available: %s)",
					v, strings.Join(StorageDrivers(), ", "))
			}
			c.Storage.Driver = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"bridge.listen": {
		get: func(c *Config) string { return c.Bridge.Listen },
		set: func(c *Config, v string) error { c.Bridge.Listen = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error {
			if !slices.Contains(EventProviders(), v) {
				return fmt.Errorf("invalid value for events.provider: %q (available: %s)",
					v, strings.Join(EventProviders(), ", "))
			}
			c.Events.Provider = v
			return nil
		},
	},
	"events.kafka_brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.KafkaBrokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.KafkaBrokers = SplitList(v)
			return nil
		},
	},
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
	"render.word_wrap": {
		get: func(c *Config) string {
			if c.Render.WordWrap == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Render.WordWrap), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for render.word_wrap: %w", err)
			}
			c.Render.WordWrap = uint(n)
			return nil
		},
	},
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
