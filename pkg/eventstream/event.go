package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/serenity/pkg/serenity"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after an agent finishes a reply.
	EventTypeTurnCompleted = "serenity.turn.completed"

	// EventTypeTurnFailed is emitted when a turn ends in an error.
	EventTypeTurnFailed = "serenity.turn.failed"
)

// TurnEvent is a transport-neutral event payload for a finished turn.
type TurnEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Turn          TurnPayload `json:"turn"`
}

// EventSource identifies where the turn originated.
type EventSource struct {
	AgentID string `json:"agent_id"`
	ChatID  string `json:"chat_id"`
	Client  string `json:"client,omitempty"`

	// Project is the repository the shell ran in.
	Project string `json:"project,omitempty"`
}

// TurnPayload carries the conversation content of the turn.
type TurnPayload struct {
	UserMessage string           `json:"user_message,omitempty"`
	Content     string           `json:"content,omitempty"`
	Rendered    string           `json:"rendered,omitempty"`
	Result      *serenity.Result `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at,omitzero"`
	CompletedAt time.Time        `json:"completed_at"`
	DurationMs  int64            `json:"duration_ms,omitempty"`
}

// NewTurnEvent returns an event of the given type stamped with a fresh id and
// the current time.
func NewTurnEvent(eventType string, source EventSource, turn TurnPayload) *TurnEvent {
	return &TurnEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Turn:          turn,
	}
}
