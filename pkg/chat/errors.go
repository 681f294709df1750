package chat

import (
	"errors"
	"fmt"
)

const (
	// InitErrorMessage is shown when a conversation cannot be created.
	InitErrorMessage = "There was an error initializing the conversation."

	// SendErrorMessage is shown when a message cannot be delivered or its
	// response cannot be read.
	SendErrorMessage = "There was an error sending the message."

	// IncompleteTurnMessage is shown when a stream ends mid-turn.
	IncompleteTurnMessage = "The response ended before it was complete."
)

var (
	// ErrNoSession is the cause of a PreconditionError raised by Execute
	// before Initialize or SetSessionID.
	ErrNoSession = errors.New("chat id is not set, initialize the conversation first")

	// ErrNoAgent is the cause of a PreconditionError raised when the session
	// has no agent to talk to.
	ErrNoAgent = errors.New("no agent is configured")

	// ErrIncompleteTurn is reported when an event stream ends without a
	// "stop" or "error" frame.
	ErrIncompleteTurn = errors.New("event stream ended before the turn completed")
)

// PreconditionError is returned when a Session operation is called in a
// state that does not allow it. No request is sent.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// AgentError is an "error" frame sent by the agent during a turn.
type AgentError struct {
	Message string
}

func (e *AgentError) Error() string {
	return "agent error: " + e.Message
}
