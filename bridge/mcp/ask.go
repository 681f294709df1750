package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/serenity"
)

var (
	askAgentToolName    = "ask_agent"
	askAgentDescription = "Ask a Serenity agent a question. Opens a fresh conversation with the agent, sends the message and returns the complete markdown reply. Uses the active agent unless an agent code is given."
)

// AskAgentInput represents the input arguments for the ask_agent tool.
type AskAgentInput struct {
	Message string `json:"message" jsonschema:"the message to send to the agent"`
	Agent   string `json:"agent,omitempty" jsonschema:"agent code to ask (default: the active agent)"`
}

// AskAgentOutput represents the structured output of the ask_agent tool.
type AskAgentOutput struct {
	Agent  string           `json:"agent"`
	ChatID string           `json:"chat_id"`
	Reply  string           `json:"reply"`
	Result *serenity.Result `json:"result,omitempty"`
}

// turnCollector keeps the final reply and the first turn-ending error of a
// private session. Recoverable errors are kept as warnings.
type turnCollector struct {
	reply    string
	result   *serenity.Result
	err      error
	warnings []string
}

func (t *turnCollector) listen(n chat.Notification) {
	switch n.Kind {
	case chat.TurnUpdate:
		if n.IsComplete {
			t.reply = n.Raw
			t.result = n.Result
		}
	case chat.TurnError:
		switch {
		case !n.EndsTurn():
			t.warnings = append(t.warnings, n.Message)
		case t.err != nil:
		case n.Err != nil:
			t.err = fmt.Errorf("%s: %w", n.Message, n.Err)
		default:
			t.err = errors.New(n.Message)
		}
	}
}

// handleAskAgent runs one full turn on a private session.
func (s *Server) handleAskAgent(ctx context.Context, _ *mcp.CallToolRequest, input AskAgentInput) (*mcp.CallToolResult, AskAgentOutput, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return toolError("message is required"), AskAgentOutput{}, nil
	}

	agent := input.Agent
	if agent == "" {
		agent = s.config.DefaultAgent()
	}
	if agent == "" {
		return toolError("no agent given and no active agent configured"), AskAgentOutput{}, nil
	}

	s.logger.Debug("MCP ask_agent request", "agent", agent)

	session, err := chat.New(chat.Config{
		API:       s.config.API,
		AgentID:   agent,
		Converter: assembler.Plain,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, AskAgentOutput{}, err
	}

	collected := &turnCollector{}
	if err := session.Initialize(ctx, nil); err != nil {
		return toolError(fmt.Sprintf("Opening a conversation with %s failed: %v", agent, err)), AskAgentOutput{}, nil
	}

	// The greeting is not part of the answer.
	session.Subscribe(collected.listen)

	if err := session.Execute(ctx, message); err != nil {
		return toolError(fmt.Sprintf("Sending the message failed: %v", err)), AskAgentOutput{}, nil
	}
	if collected.err != nil {
		s.logger.Warn("MCP ask_agent turn failed", "agent", agent, "error", collected.err)
		return toolError(collected.err.Error()), AskAgentOutput{}, nil
	}
	if len(collected.warnings) > 0 {
		s.logger.Warn("MCP ask_agent turn recovered from errors", "agent", agent, "errors", collected.warnings)
	}

	output := AskAgentOutput{
		Agent:  agent,
		ChatID: session.SessionID(),
		Reply:  collected.reply,
		Result: collected.result,
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), AskAgentOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
