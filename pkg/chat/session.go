// Package chat drives conversations with a Serenity agent.
//
// A Session owns one chat id. Initialize creates the conversation, Execute
// streams one turn per user message, and every step is reported to
// subscribed listeners as a Notification. Failures inside a turn become a
// single TurnError notification; only precondition violations are returned
// to the caller.
//
// A session runs one turn at a time. Callers gate input while a turn is
// streaming; Execute does not guard against overlapping calls.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/logger"
	"github.com/papercomputeco/serenity/pkg/serenity"
)

// API is the part of the agent API a Session uses. *serenity.Client
// implements it.
type API interface {
	InitConversation(ctx context.Context, agentID string, req *serenity.InitConversationRequest) (*serenity.InitConversationResponse, error)
	Execute(ctx context.Context, agentID string, req serenity.ExecuteRequest) (*http.Response, error)
}

// Config is the explicit configuration of a Session.
type Config struct {
	// API sends requests. Required.
	API API

	// AgentID is the agent code conversations are opened with.
	AgentID string

	// Converter renders markdown for display. Nil leaves markdown as is.
	Converter assembler.Converter

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

// Session is one conversation with an agent.
type Session struct {
	api    API
	asm    *assembler.Assembler
	logger *slog.Logger

	mu        sync.RWMutex
	agentID   string
	sessionID string
	state     State

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
}

// New returns an uninitialized Session.
func New(c Config) (*Session, error) {
	if c.API == nil {
		return nil, errors.New("chat: api is required")
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Session{
		api:       c.API,
		asm:       assembler.New(c.Converter),
		logger:    log,
		agentID:   c.AgentID,
		listeners: map[int]Listener{},
	}, nil
}

// Subscribe registers l for every later notification and returns a function
// removing it.
func (s *Session) Subscribe(l Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SessionID returns the chat id, empty before initialization.
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// AgentID returns the agent code the session talks to.
func (s *Session) AgentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentID
}

// SetAgent changes the agent used by later requests. The current chat id
// belongs to the previous agent; call Restart to open a new conversation.
func (s *Session) SetAgent(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentID = agentID
}

// SetSessionID adopts an existing chat id, typically one restored from
// history. It is allowed in any state and emits nothing.
func (s *Session) SetSessionID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = id
	if s.state == StateUninitialized && id != "" {
		s.state = StateIdle
	}
}

// Reset forgets the chat id.
func (s *Session) Reset() {
	s.mu.Lock()
	s.sessionID = ""
	s.state = StateUninitialized
	s.mu.Unlock()

	s.emit(Notification{Kind: SessionIDChanged})
}

// Restart resets the session and opens a new conversation.
func (s *Session) Restart(ctx context.Context) error {
	s.Reset()
	return s.Initialize(ctx, nil)
}

// Initialize opens a conversation. On success the chat id is stored and
// announced with SessionIDChanged, followed by the agent's greeting as a
// complete turn. On failure a TurnError is emitted, the previous chat id and
// state are kept, and the error is returned so the caller may retry.
func (s *Session) Initialize(ctx context.Context, seed *serenity.InitConversationRequest) error {
	s.mu.Lock()
	agentID := s.agentID
	if agentID == "" {
		s.mu.Unlock()
		return &PreconditionError{Op: "initialize", Err: ErrNoAgent}
	}
	prev := s.state
	s.state = StateInitializing
	s.mu.Unlock()

	res, err := s.api.InitConversation(ctx, agentID, seed)
	if err != nil {
		s.logger.Error("initializing conversation", "agent", agentID, "error", err)

		s.setState(StateError)
		s.emit(Notification{Kind: TurnError, Message: InitErrorMessage, Err: err})
		s.setState(prev)
		return fmt.Errorf("initializing conversation: %w", err)
	}

	s.mu.Lock()
	s.sessionID = res.ChatID
	s.state = StateIdle
	s.mu.Unlock()

	s.logger.Debug("conversation started", "agent", agentID, "chat_id", res.ChatID)
	s.emit(Notification{Kind: SessionIDChanged})

	rendered, err := s.asm.Render(res.Content)
	if err != nil {
		s.logger.Warn("rendering greeting", "error", err)
		rendered = res.Content
	}
	s.emit(Notification{Kind: TurnStarted})
	s.emit(Notification{Kind: TurnUpdate, Rendered: rendered, Raw: res.Content, IsComplete: true})

	return nil
}

// Execute sends text as the next user message and streams the reply.
func (s *Session) Execute(ctx context.Context, text string) error {
	return s.Send(ctx, serenity.ExecuteRequest{Message: text})
}

// Send is Execute with attachments. req.ChatID is filled from the session.
//
// Without a chat id Send returns a PreconditionError and sends nothing. Every
// other failure is reported as one TurnError notification and Send returns
// nil once the session is idle again.
func (s *Session) Send(ctx context.Context, req serenity.ExecuteRequest) error {
	s.mu.Lock()
	chatID, agentID := s.sessionID, s.agentID
	switch {
	case chatID == "":
		s.mu.Unlock()
		return &PreconditionError{Op: "execute", Err: ErrNoSession}
	case agentID == "":
		s.mu.Unlock()
		return &PreconditionError{Op: "execute", Err: ErrNoAgent}
	}
	s.state = StateStreaming
	s.mu.Unlock()
	defer s.setState(StateIdle)

	req.ChatID = chatID
	s.emit(Notification{Kind: UserMessage, Message: req.Message})

	started := time.Now()
	resp, err := s.api.Execute(ctx, agentID, req)
	if err != nil {
		s.failTurn(SendErrorMessage, err)
		return nil
	}
	defer resp.Body.Close()

	if err := serenity.CheckResponse(resp); err != nil {
		s.failTurn(SendErrorMessage, err)
		return nil
	}

	if failure := newTurn(s).run(ctx, resp); failure != nil {
		s.failTurn(failure.message, failure.cause)
		return nil
	}

	s.logger.Debug("turn finished", "agent", agentID, "chat_id", chatID, "elapsed", time.Since(started))
	return nil
}

func (s *Session) failTurn(message string, err error) {
	s.logger.Warn("turn failed", "error", err)

	s.setState(StateError)
	s.emit(Notification{Kind: TurnError, Message: message, Err: err})
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st == StateIdle && s.sessionID == "" {
		st = StateUninitialized
	}
	s.state = st
}

// emit stamps n with the conversation identity and delivers it to every
// listener in registration order.
func (s *Session) emit(n Notification) {
	s.mu.RLock()
	n.AgentID = s.agentID
	n.SessionID = s.sessionID
	s.mu.RUnlock()
	n.At = time.Now()

	s.listenersMu.RLock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	listeners := make([]Listener, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(n)
	}
}
