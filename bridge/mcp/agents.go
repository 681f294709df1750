package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/serenity/pkg/serenity"
)

var (
	listAgentsToolName    = "list_agents"
	listAgentsDescription = "List the Serenity agents available to this API key, with their codes and names."
)

// ListAgentsInput takes no arguments.
type ListAgentsInput struct{}

// ListAgentsOutput represents the structured output of the list_agents tool.
type ListAgentsOutput struct {
	Agents []serenity.Agent `json:"agents"`
	Count  int              `json:"count"`
}

func (s *Server) handleListAgents(ctx context.Context, _ *mcp.CallToolRequest, _ ListAgentsInput) (*mcp.CallToolResult, ListAgentsOutput, error) {
	agents, err := s.config.API.ListAgents(ctx, serenity.DefaultListAgentsOptions)
	if err != nil {
		s.logger.Error("failed to list agents", "error", err)
		return toolError(fmt.Sprintf("Listing agents failed: %v", err)), ListAgentsOutput{}, nil
	}

	if agents == nil {
		agents = []serenity.Agent{}
	}

	output := ListAgentsOutput{Agents: agents, Count: len(agents)}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), ListAgentsOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
