package chat

import (
	"time"

	"github.com/papercomputeco/serenity/pkg/serenity"
)

// Kind names a lifecycle notification.
type Kind int

const (
	// TurnStarted opens a new assistant message.
	TurnStarted Kind = iota + 1

	// TurnUpdate replaces the content of the open assistant message.
	TurnUpdate

	// TurnError reports a failed turn or initialization.
	TurnError

	// SessionIDChanged carries a new chat id, empty after a reset.
	SessionIDChanged

	// UserMessage echoes a message the user sent.
	UserMessage
)

func (k Kind) String() string {
	switch k {
	case TurnStarted:
		return "turn-started"
	case TurnUpdate:
		return "turn-update"
	case TurnError:
		return "turn-error"
	case SessionIDChanged:
		return "session-id-changed"
	case UserMessage:
		return "user-message"
	default:
		return "unknown"
	}
}

// Notification is one lifecycle event of a Session. Fields beyond Kind are
// set depending on the kind.
type Notification struct {
	Kind Kind
	At   time.Time

	// AgentID and SessionID identify the conversation at emission time.
	AgentID   string
	SessionID string

	// Message is the user text of UserMessage and the display text of
	// TurnError.
	Message string

	// Rendered, Raw, IsComplete and Result describe a TurnUpdate.
	Rendered   string
	Raw        string
	IsComplete bool
	Result     *serenity.Result

	// Err is the cause of a TurnError.
	Err error

	// Recoverable marks a TurnError after which the same turn keeps
	// streaming, such as a malformed content frame. Any other TurnError ends
	// the turn.
	Recoverable bool
}

// EndsTurn reports whether n closes the current turn: a complete update or a
// TurnError that is not recoverable.
func (n Notification) EndsTurn() bool {
	switch n.Kind {
	case TurnUpdate:
		return n.IsComplete
	case TurnError:
		return !n.Recoverable
	default:
		return false
	}
}

// Listener receives notifications synchronously on the goroutine driving the
// session. Listeners must not block; hand slow work to a worker pool.
type Listener func(Notification)
