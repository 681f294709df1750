package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/logger"
)

// ErrBusy is returned while a turn or a conversation restart is in progress.
var ErrBusy = errors.New("a turn is in progress")

// Server is the HTTP bridge between editor webviews and a chat session.
type Server struct {
	config  Config
	session *chat.Session
	logger  *slog.Logger
	app     *fiber.App

	// ctx outlives requests; turns and event streams end when it is canceled.
	ctx    context.Context
	cancel context.CancelFunc

	busy    atomic.Bool
	agentMu sync.Mutex
	turns   sync.WaitGroup
}

// NewServer creates the bridge and registers its routes.
func NewServer(c Config) (*Server, error) {
	if c.Session == nil {
		return nil, errors.New("session is required")
	}
	if c.Agents == nil {
		return nil, errors.New("agent lister is required")
	}
	if c.Converter == nil {
		c.Converter = assembler.Plain
	}
	if c.ExplainAgent == nil {
		c.ExplainAgent = func() string { return "" }
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:  c,
		session: c.Session,
		logger:  log,
		app:     app,
		ctx:     ctx,
		cancel:  cancel,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Get("/agents", s.handleListAgents)
	v1.Get("/chat", s.handleGetChat)
	v1.Post("/chat/messages", s.handleSendMessage)
	v1.Post("/chat/new", s.handleNewChat)
	v1.Post("/chat/agent", s.handleSetAgent)
	v1.Put("/chat/id", s.handleSetChatID)
	v1.Post("/explain", s.handleExplain)
	v1.Get("/events", s.handleEvents)

	if c.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(c.MCP))
	}

	return s, nil
}

// Run starts the bridge on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting bridge server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown stops event streams and running turns, then the HTTP server.
func (s *Server) Shutdown() error {
	s.cancel()
	err := s.app.Shutdown()
	s.turns.Wait()
	return err
}

// Busy reports whether a turn or restart is running.
func (s *Server) Busy() bool {
	return s.busy.Load() || s.session.State() == chat.StateStreaming
}

// FollowAgent makes agent the session's agent, opening a new conversation
// when it changes. It is a no-op for the current agent and returns ErrBusy
// while a turn streams.
func (s *Server) FollowAgent(ctx context.Context, agent string) error {
	s.agentMu.Lock()
	defer s.agentMu.Unlock()

	if agent == "" || agent == s.session.AgentID() {
		return nil
	}

	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)

	s.logger.Info("switching agent", "from", s.session.AgentID(), "to", agent)
	s.session.SetAgent(agent)
	if err := s.session.Restart(ctx); err != nil {
		return fmt.Errorf("opening conversation with %s: %w", agent, err)
	}
	return nil
}

// startTurn runs fn in the background unless another turn is running.
func (s *Server) startTurn(fn func(ctx context.Context) error) bool {
	if s.session.State() == chat.StateStreaming || !s.busy.CompareAndSwap(false, true) {
		return false
	}

	s.turns.Add(1)
	go func() {
		defer s.turns.Done()
		defer s.busy.Store(false)

		if err := fn(s.ctx); err != nil {
			s.logger.Warn("turn not sent", "error", err)
		}
	}()
	return true
}

// exclusive runs fn synchronously unless a turn is running.
func (s *Server) exclusive(fn func() error) error {
	if s.session.State() == chat.StateStreaming || !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)
	return fn()
}
