// Package servecmder provides the serve command, which runs the editor bridge
// and its MCP endpoint.
package servecmder

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/serenity/bridge"
	"github.com/papercomputeco/serenity/bridge/mcp"
	"github.com/papercomputeco/serenity/cmd/serenity/bootstrap"
	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/history"
	"github.com/papercomputeco/serenity/pkg/serve"
)

const serveLongDesc string = `Run the editor bridge.

Serves the HTTP bridge editor webviews use to chat with the active agent, and
an MCP endpoint at /mcp. The bridge resumes the last chat when it belongs to
the active agent. It follows agent changes made by other serenity commands
while it runs.

Only one bridge runs per .serenity/ directory. Use "serenity serve status" to
find a running one.

Examples:
  serenity serve
  serenity serve --listen 127.0.0.1:9000
  serenity serve status`

const serveShortDesc string = "Run the editor bridge"

var serveFlags = []string{
	config.FlagBaseURL,
	config.FlagBridgeListen,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEvents,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

type ServeCommander struct {
	baseURL      string
	listen       string
	storage      string
	sqlitePath   string
	postgresDSN  string
	events       string
	kafkaBrokers string
	kafkaTopic   string
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap.Load(cmd, serveFlags...)
			if err != nil {
				return err
			}
			return cmder.run(cmd, env)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagBridgeListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEvents, &cmder.events)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	cmd.AddCommand(NewStatusCmd())

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command, env *bootstrap.Env) error {
	client, err := env.RequireSetup()
	if err != nil {
		return err
	}

	manager, err := serve.NewManager(env.Dir)
	if err != nil {
		return err
	}
	lock, err := manager.Lock()
	if errors.Is(err, serve.ErrAlreadyRunning) {
		if state, _ := manager.LoadState(); state.Alive() {
			return fmt.Errorf("%w at %s (pid %d)", err, state.URL, state.PID)
		}
	}
	if err != nil {
		return err
	}

	logFile, err := env.TeeToFile("bridge.log")
	if err != nil {
		_ = lock.Release()
		return err
	}
	defer logFile.Close()
	log := env.Logger

	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("releasing bridge lock", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec, err := env.StartRecording(ctx, "bridge")
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.Warn("closing replay log", "error", err)
		}
	}()

	var current atomic.Pointer[config.Config]
	current.Store(env.Config)
	agent := env.Config.ActiveAgent()

	// Webviews display replies as HTML.
	conv := assembler.NewHTMLConverter()
	session, err := chat.New(chat.Config{
		API:       client,
		AgentID:   agent,
		Converter: conv,
		Logger:    log.With("component", "chat"),
	})
	if err != nil {
		return err
	}
	rec.Attach(session)

	snap, err := history.Restore(ctx, rec.History)
	if err != nil {
		return err
	}
	switch {
	case !snap.Empty() && snap.AgentID == agent:
		log.Info("resuming chat", "chat_id", snap.ChatID, "messages", len(snap.Entries))
		session.SetSessionID(snap.ChatID)
	case ctx.Err() == nil:
		// The webview can retry with POST /v1/chat/new.
		if err := session.Initialize(ctx, nil); err != nil {
			log.Warn("opening conversation", "agent", agent, "error", err)
		}
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		API:          client,
		DefaultAgent: func() string { return current.Load().ActiveAgent() },
		Logger:       log.With("component", "mcp"),
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	listen := env.Config.Bridge.Listen
	server, err := bridge.NewServer(bridge.Config{
		ListenAddr:   listen,
		Session:      session,
		Agents:       client,
		History:      rec.History,
		Converter:    conv,
		Configer:     env.Configer,
		ExplainAgent: func() string { return current.Load().Agents.ExplainCommand },
		MCP:          mcpServer.Handler(),
		Logger:       log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	state := serve.State{
		PID:       os.Getpid(),
		Listen:    listen,
		URL:       "http://" + listen,
		Agent:     agent,
		StartedAt: time.Now().UTC(),
	}
	if err := manager.SaveState(&state); err != nil {
		return err
	}
	defer func() {
		if err := manager.ClearState(); err != nil {
			log.Warn("clearing bridge state", "error", err)
		}
	}()

	go func() {
		err := env.Configer.Watch(ctx, log, func(cfg *config.Config) {
			current.Store(cfg)
			next := cfg.ActiveAgent()
			if err := server.FollowAgent(ctx, next); err != nil {
				log.Warn("following agent change", "agent", next, "error", err)
				return
			}

			updated := state
			updated.Agent = session.AgentID()
			if err := manager.SaveState(&updated); err != nil {
				log.Warn("saving bridge state", "error", err)
			}
		})
		if err != nil {
			log.Warn("config watcher stopped", "error", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("bridge error: %w", err)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Bridge listening on %s (agent %s)\n", state.URL, agent)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down bridge")
		return server.Shutdown()
	}
}
