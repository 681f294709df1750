// Package mcp provides an MCP (Model Context Protocol) server that lets MCP
// clients talk to Serenity agents.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/logger"
	"github.com/papercomputeco/serenity/pkg/serenity"
	"github.com/papercomputeco/serenity/pkg/utils"
)

// API is the agent API the tools use. *serenity.Client implements it.
type API interface {
	chat.API
	ListAgents(ctx context.Context, opts serenity.ListAgentsOptions) ([]serenity.Agent, error)
}

type Config struct {
	// API reaches the agents. Required.
	API API

	// DefaultAgent is used by ask_agent when the call names no agent. It is
	// read on every call so it can follow configuration changes.
	DefaultAgent func() string

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

type Server struct {
	config    Config
	logger    *slog.Logger
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the agent tools.
func NewServer(c Config) (*Server, error) {
	if c.API == nil {
		return nil, errors.New("api is required")
	}
	if c.DefaultAgent == nil {
		c.DefaultAgent = func() string { return "" }
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		config: c,
		logger: log,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "serenity",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        askAgentToolName,
		Description: askAgentDescription,
	}, s.handleAskAgent)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listAgentsToolName,
		Description: listAgentsDescription,
	}, s.handleListAgents)

	s.mcpServer = mcpServer

	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying server, for in-process transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
