package config_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			data := `version = 0

[api]
base_url = "https://staging.serenitystar.ai"

[agents]
default = "assistant"
active = "writer"
explain_command = "code-explainer"

[storage]
driver = "postgres"
sqlite_path = "/tmp/serenity.sqlite"
postgres_dsn = "postgres://localhost/serenity"

[bridge]
listen = ":9000"

[events]
provider = "kafka"
kafka_brokers = ["kafka-1:9092", "kafka-2:9092"]
kafka_topic = "turns"

[render]
word_wrap = 72
`
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.API.BaseURL).To(Equal("https://staging.serenitystar.ai"))
			Expect(cfg.Agents.Default).To(Equal("assistant"))
			Expect(cfg.Agents.Active).To(Equal("writer"))
			Expect(cfg.Agents.ExplainCommand).To(Equal("code-explainer"))
			Expect(cfg.Storage.Driver).To(Equal("postgres"))
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/serenity.sqlite"))
			Expect(cfg.Storage.PostgresDSN).To(Equal("postgres://localhost/serenity"))
			Expect(cfg.Bridge.Listen).To(Equal(":9000"))
			Expect(cfg.Events.Provider).To(Equal("kafka"))
			Expect(cfg.Events.KafkaBrokers).To(Equal([]string{"kafka-1:9092", "kafka-2:9092"}))
			Expect(cfg.Events.KafkaTopic).To(Equal("turns"))
			Expect(cfg.Render.WordWrap).To(Equal(uint(72)))
		})

		It("fills fields missing from the file with defaults", func() {
			data := `[agents]
default = "assistant"
`
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Agents.Default).To(Equal("assistant"))
			Expect(cfg.API.BaseURL).To(Equal(defaults.API.BaseURL))
			Expect(cfg.Storage.Driver).To(Equal(defaults.Storage.Driver))
			Expect(cfg.Bridge.Listen).To(Equal(defaults.Bridge.Listen))
			Expect(cfg.Render.WordWrap).To(Equal(defaults.Render.WordWrap))
		})

		It("returns error for malformed TOML", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not valid toml [[["), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(cfg).To(BeNil())
		})

		It("returns error for unsupported config version", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("version = 99\n"), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
			Expect(cfg).To(BeNil())
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk with owner-only permissions", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Agents.Default = "assistant"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("rejects nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})

		It("replaces the file without leaving temporary files behind", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SetConfigValue("agents.active", "coder")).To(Succeed())
			Expect(c.SetConfigValue("agents.active", "writer")).To(Succeed())

			entries, err := os.ReadDir(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			Expect(names).To(ConsistOf("config.toml"))
		})
	})

	Describe("Update", func() {
		It("writes agent roles in a single save", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Update(func(cfg *config.Config) error {
				cfg.Agents.Default = "assistant"
				cfg.Agents.Active = "assistant"
				return nil
			})).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Agents.Default).To(Equal("assistant"))
			Expect(cfg.ActiveAgent()).To(Equal("assistant"))
		})

		It("does not write when the update fails", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Update(func(*config.Config) error { return os.ErrInvalid })).To(MatchError(os.ErrInvalid))

			_, err = os.Stat(c.GetTarget())
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("round trips every valid key", func() {
			values := map[string]string{
				"api.base_url":           "https://eu.serenitystar.ai",
				"agents.default":         "assistant",
				"agents.active":          "writer",
				"agents.explain_command": "explainer",
				"storage.driver":         "memory",
				"storage.sqlite_path":    "/tmp/h.sqlite",
				"storage.postgres_dsn":   "postgres://db/serenity",
				"bridge.listen":          ":9999",
				"events.provider":        "kafka",
				"events.kafka_brokers":   "a:9092,b:9092",
				"events.kafka_topic":     "turns",
				"render.word_wrap":       "80",
			}
			Expect(values).To(HaveLen(len(config.ValidConfigKeys())))

			for key, value := range values {
				Expect(c.SetConfigValue(key, value)).To(Succeed(), key)
			}
			for key, value := range values {
				got, err := c.GetConfigValue(key)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(value), key)
			}
		})

		It("trims a trailing slash from the base URL", func() {
			Expect(c.SetConfigValue("api.base_url", "https://api.serenitystar.ai/")).To(Succeed())

			got, err := c.GetConfigValue("api.base_url")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("https://api.serenitystar.ai"))
		})

		It("splits broker lists and drops blanks", func() {
			Expect(c.SetConfigValue("events.kafka_brokers", " a:9092 , ,b:9092")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Events.KafkaBrokers).To(Equal([]string{"a:9092", "b:9092"}))
		})

		It("rejects unknown keys", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))

			_, err := c.GetConfigValue("proxy.upstream")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects unknown storage drivers", func() {
			Expect(c.SetConfigValue("storage.driver", "mysql")).To(MatchError(ContainSubstring("invalid value for storage.driver")))
		})

		It("rejects unknown event providers", func() {
			Expect(c.SetConfigValue("events.provider", "nats")).To(MatchError(ContainSubstring("invalid value for events.provider")))
		})

		It("rejects a non-numeric word wrap", func() {
			Expect(c.SetConfigValue("render.word_wrap", "wide")).To(MatchError(ContainSubstring("invalid value for render.word_wrap")))
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns keys in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys[0]).To(Equal("api.base_url"))
		Expect(keys[len(keys)-1]).To(Equal("render.word_wrap"))
		for _, k := range keys {
			Expect(config.IsValidConfigKey(k)).To(BeTrue())
		}
	})

	It("does not accept unknown keys", func() {
		Expect(config.IsValidConfigKey("embedding.model")).To(BeFalse())
	})
})

var _ = Describe("Config", func() {
	It("falls back to the default agent when none is active", func() {
		cfg := &config.Config{Agents: config.AgentsConfig{Default: "assistant"}}
		Expect(cfg.ActiveAgent()).To(Equal("assistant"))

		cfg.Agents.Active = "writer"
		Expect(cfg.ActiveAgent()).To(Equal("writer"))
	})

	It("requires both an API key and a default agent for setup", func() {
		cfg := config.NewDefaultConfig()
		Expect(cfg.SetupComplete("key")).To(BeFalse())

		cfg.Agents.Default = "assistant"
		Expect(cfg.SetupComplete("")).To(BeFalse())
		Expect(cfg.SetupComplete("key")).To(BeTrue())
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Agents.Default).To(BeEmpty())
	})

	It("rejects unsupported config version", func() {
		cfg, err := config.ParseConfigTOML([]byte("version = 2\n"))
		Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
		Expect(cfg).To(BeNil())
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("api.base_url")).To(Equal(defaults.API.BaseURL))
		Expect(v.GetString("storage.driver")).To(Equal(defaults.Storage.Driver))
		Expect(v.GetString("bridge.listen")).To(Equal(defaults.Bridge.Listen))
		Expect(v.GetUint("render.word_wrap")).To(Equal(defaults.Render.WordWrap))
	})

	It("reads config file values over defaults", func() {
		data := `[agents]
default = "assistant"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("agents.default")).To(Equal("assistant"))
	})

	It("env vars take precedence over config file values", func() {
		data := `[agents]
active = "assistant"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		GinkgoT().Setenv("SERENITY_AGENTS_ACTIVE", "writer")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("agents.active")).To(Equal("writer"))
	})

	It("builds a Config from the layered values", func() {
		GinkgoT().Setenv("SERENITY_EVENTS_KAFKA_BROKERS", "a:9092,b:9092")
		GinkgoT().Setenv("SERENITY_API_BASE_URL", "https://eu.serenitystar.ai/")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.API.BaseURL).To(Equal("https://eu.serenitystar.ai"))
		Expect(cfg.Events.KafkaBrokers).To(Equal([]string{"a:9092", "b:9092"}))
		Expect(cfg.Events.KafkaTopic).To(Equal(config.NewDefaultConfig().Events.KafkaTopic))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagBridgeListen, &listen)

		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagBridgeListen})
		Expect(v.GetString("bridge.listen")).To(Equal(":7777"))
	})

	It("uses the default when the flag is not set", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagBridgeListen, &listen)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagBridgeListen})

		Expect(listen).To(Equal(config.NewDefaultConfig().Bridge.Listen))
		Expect(v.GetString("bridge.listen")).To(Equal(config.NewDefaultConfig().Bridge.Listen))
	})

	It("skips keys missing from the registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.FlagSet{}, []string{"nonexistent"})
	})

	It("AddStringFlag pulls name, shorthand, and description from FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var agent string
		config.AddStringFlag(cmd, config.Flags, config.FlagAgent, &agent)

		f := cmd.Flags().Lookup("agent")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("a"))
		Expect(f.Usage).To(Equal("Agent code to talk to [$SERENITY_AGENTS_ACTIVE]"))
	})

	It("names the environment override of each flag", func() {
		Expect(config.Flags[config.FlagKafkaBrokers].EnvVar()).To(Equal("SERENITY_EVENTS_KAFKA_BROKERS"))
		Expect(config.Flags[config.FlagBaseURL].EnvVar()).To(Equal("SERENITY_API_BASE_URL"))
	})

	It("AddUintFlag works for word-wrap", func() {
		cmd := &cobra.Command{Use: "test"}
		var wrap uint
		config.AddUintFlag(cmd, config.Flags, config.FlagWordWrap, &wrap)

		f := cmd.Flags().Lookup("word-wrap")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("100"))
	})
})

var _ = Describe("Watch", func() {
	It("delivers the reloaded config after a write", func() {
		tmpDir, err := os.MkdirTemp("", "watch-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		c, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		DeferCleanup(cancel)

		changes := make(chan *config.Config, 8)
		done := make(chan error, 1)
		go func() {
			done <- c.Watch(ctx, nil, func(cfg *config.Config) {
				select {
				case changes <- cfg:
				default:
				}
			})
		}()

		Eventually(func(g Gomega) {
			g.Expect(c.SetConfigValue("agents.active", "writer")).To(Succeed())
			var cfg *config.Config
			g.Eventually(changes, 200*time.Millisecond).Should(Receive(&cfg))
			g.Expect(cfg.Agents.Active).To(Equal("writer"))
		}, 5*time.Second, 50*time.Millisecond).Should(Succeed())

		cancel()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})
})
