package bridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/serenity"
	"github.com/papercomputeco/serenity/pkg/storage"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatResponse describes the session and, for GET /v1/chat, its transcript.
type ChatResponse struct {
	Agent     string      `json:"agent"`
	ChatID    string      `json:"chatId"`
	State     string      `json:"state"`
	Streaming bool        `json:"streaming"`
	Entries   []EntryView `json:"entries,omitempty"`
}

// EntryView is one transcript line as the webview shows it.
type EntryView struct {
	Role      storage.Role `json:"role"`
	Message   string       `json:"message"`
	Rendered  string       `json:"rendered,omitempty"`
	Complete  bool         `json:"complete"`
	CreatedAt time.Time    `json:"createdAt"`
}

// MessageRequest is the body of POST /v1/chat/messages.
type MessageRequest struct {
	Message              string   `json:"message"`
	VolatileKnowledgeIDs []string `json:"volatileKnowledgeIds,omitempty"`
	FileIDs              []string `json:"fileIds,omitempty"`
}

// AgentRequest is the body of POST /v1/chat/agent.
type AgentRequest struct {
	Agent string `json:"agent"`
}

// ChatIDRequest is the body of PUT /v1/chat/id.
type ChatIDRequest struct {
	ChatID string `json:"chatId"`
}

// ExplainRequest is the body of POST /v1/explain.
type ExplainRequest struct {
	Code string `json:"code"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

func (s *Server) chatResponse() ChatResponse {
	return ChatResponse{
		Agent:     s.session.AgentID(),
		ChatID:    s.session.SessionID(),
		State:     s.session.State().String(),
		Streaming: s.Busy(),
	}
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListAgents returns the agent directory.
func (s *Server) handleListAgents(c *fiber.Ctx) error {
	agents, err := s.config.Agents.ListAgents(c.Context(), serenity.DefaultListAgentsOptions)
	if err != nil {
		s.logger.Error("listing agents failed", "error", err)
		return errorJSON(c, fiber.StatusBadGateway, "failed to list agents")
	}
	if agents == nil {
		agents = []serenity.Agent{}
	}
	return c.JSON(fiber.Map{
		"active": s.session.AgentID(),
		"agents": agents,
	})
}

// handleGetChat returns the session state and the transcript of its chat.
func (s *Server) handleGetChat(c *fiber.Ctx) error {
	resp := s.chatResponse()
	if s.config.History == nil || resp.ChatID == "" {
		return c.JSON(resp)
	}

	entries, err := s.config.History.Entries(c.Context(), resp.ChatID)
	if err != nil {
		s.logger.Error("reading history failed", "chat_id", resp.ChatID, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to read history")
	}

	resp.Entries = make([]EntryView, 0, len(entries))
	for _, e := range entries {
		view := EntryView{
			Role:      e.Role,
			Message:   e.Message,
			Complete:  e.Complete,
			CreatedAt: e.CreatedAt,
		}
		if e.Role == storage.RoleBot {
			if e.Message == "" {
				continue
			}
			rendered, err := s.config.Converter.Convert(e.Message)
			if err != nil {
				rendered = e.Message
			}
			view.Rendered = rendered
		}
		resp.Entries = append(resp.Entries, view)
	}

	return c.JSON(resp)
}

// handleSendMessage starts a turn and answers before it streams.
func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "message is required")
	}
	if s.session.SessionID() == "" {
		return errorJSON(c, fiber.StatusPreconditionFailed, "no conversation, start a new chat first")
	}

	started := s.startTurn(func(ctx context.Context) error {
		return s.session.Send(ctx, serenity.ExecuteRequest{
			Message:              req.Message,
			VolatileKnowledgeIDs: req.VolatileKnowledgeIDs,
			FileIDs:              req.FileIDs,
		})
	})
	if !started {
		return errorJSON(c, fiber.StatusConflict, ErrBusy.Error())
	}

	return c.Status(fiber.StatusAccepted).JSON(s.chatResponse())
}

// handleNewChat opens a new conversation with the current agent.
func (s *Server) handleNewChat(c *fiber.Ctx) error {
	err := s.exclusive(func() error {
		return s.session.Restart(c.Context())
	})
	switch {
	case errors.Is(err, ErrBusy):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case err != nil:
		return s.initFailed(c, err)
	}
	return c.JSON(s.chatResponse())
}

// handleSetAgent switches agents and records the choice as agents.active.
func (s *Server) handleSetAgent(c *fiber.Ctx) error {
	var req AgentRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	agent := strings.TrimSpace(req.Agent)
	if agent == "" {
		return errorJSON(c, fiber.StatusBadRequest, "agent is required")
	}

	err := s.FollowAgent(c.Context(), agent)
	switch {
	case errors.Is(err, ErrBusy):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case err != nil:
		return s.initFailed(c, err)
	}

	if s.config.Configer != nil {
		err := s.config.Configer.Update(func(cfg *config.Config) error {
			cfg.Agents.Active = agent
			return nil
		})
		if err != nil {
			s.logger.Warn("saving active agent failed", "agent", agent, "error", err)
		}
	}

	return c.JSON(s.chatResponse())
}

// handleSetChatID adopts an existing chat id.
func (s *Server) handleSetChatID(c *fiber.Ctx) error {
	var req ChatIDRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.ChatID) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "chatId is required")
	}

	s.session.SetSessionID(req.ChatID)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleExplain asks the explain agent about a code selection.
func (s *Server) handleExplain(c *fiber.Ctx) error {
	var req ExplainRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Code) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "code is required")
	}

	err := s.FollowAgent(c.Context(), s.config.ExplainAgent())
	switch {
	case errors.Is(err, ErrBusy):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case err != nil:
		return s.initFailed(c, err)
	}

	if s.session.SessionID() == "" {
		err := s.exclusive(func() error {
			return s.session.Initialize(c.Context(), nil)
		})
		switch {
		case errors.Is(err, ErrBusy):
			return errorJSON(c, fiber.StatusConflict, err.Error())
		case err != nil:
			return s.initFailed(c, err)
		}
	}

	prompt := chat.ExplainPrompt(req.Code)
	if !s.startTurn(func(ctx context.Context) error { return s.session.Execute(ctx, prompt) }) {
		return errorJSON(c, fiber.StatusConflict, ErrBusy.Error())
	}

	return c.Status(fiber.StatusAccepted).JSON(s.chatResponse())
}

func (s *Server) initFailed(c *fiber.Ctx, err error) error {
	s.logger.Error("opening conversation failed", "agent", s.session.AgentID(), "error", err)

	var precondition *chat.PreconditionError
	if errors.As(err, &precondition) {
		return errorJSON(c, fiber.StatusPreconditionFailed, err.Error())
	}
	return errorJSON(c, fiber.StatusBadGateway, chat.InitErrorMessage)
}
