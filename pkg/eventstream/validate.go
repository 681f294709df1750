package eventstream

import (
	"errors"
	"fmt"
)

var (
	// ErrNilTurnEvent is returned when a publisher is handed a nil event.
	ErrNilTurnEvent = errors.New("nil turn event")

	// ErrUnknownEventType is returned for events whose type no consumer knows.
	ErrUnknownEventType = errors.New("unknown turn event type")
)

// Validate reports whether e can be published. It is safe on a nil event.
func (e *TurnEvent) Validate() error {
	if e == nil {
		return ErrNilTurnEvent
	}
	switch e.EventType {
	case EventTypeTurnCompleted, EventTypeTurnFailed:
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownEventType, e.EventType)
	}
}
