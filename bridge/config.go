// Package bridge provides the HTTP server editor webviews use to drive a chat
// session: sending messages, switching agents and chats, and following the
// conversation as an event stream.
package bridge

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/serenity"
	"github.com/papercomputeco/serenity/pkg/storage"
)

// AgentLister reads the agent directory. *serenity.Client implements it.
type AgentLister interface {
	ListAgents(ctx context.Context, opts serenity.ListAgentsOptions) ([]serenity.Agent, error)
}

// Config is the bridge server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:7878")
	ListenAddr string

	// Session is the conversation the bridge drives. Required.
	Session *chat.Session

	// Agents serves GET /v1/agents. Required.
	Agents AgentLister

	// History is the replay log returned by GET /v1/chat. Optional.
	History storage.Driver

	// Converter renders history entries for the webview. Defaults to
	// assembler.Plain.
	Converter assembler.Converter

	// Configer persists agent switches as agents.active. Optional.
	Configer *config.Configer

	// ExplainAgent returns the agent that explains code, empty to use the
	// current agent. Optional.
	ExplainAgent func() string

	// MCP is mounted at /mcp when set.
	MCP http.Handler

	Logger *slog.Logger
}
