// Package sse decodes text/event-stream responses into named frames.
//
// The framing follows what the Serenity agent API emits rather than the full
// WHATWG grammar: frames end at a doubled line terminator, "event:" and
// "data:" values are trimmed, the last "data:" line of a frame wins and every
// other line is ignored. Lines may end in "\n" or "\r\n"; the decoder uses
// "\r\n" whenever the pending buffer contains one.
package sse

// DefaultEvent is the event name of a frame that carries no "event:" line.
const DefaultEvent = "message"

// EventName is the closed set of frame names consumed by a chat turn.
type EventName int

const (
	// EventUnknown is any name outside the set below. Dispatch drops it.
	EventUnknown EventName = iota
	EventMessage
	EventStart
	EventContent
	EventStop
	EventError
)

var eventNames = map[EventName]string{
	EventUnknown: "unknown",
	EventMessage: DefaultEvent,
	EventStart:   "start",
	EventContent: "content",
	EventStop:    "stop",
	EventError:   "error",
}

// ParseEventName maps a wire event name onto its EventName.
func ParseEventName(name string) EventName {
	switch name {
	case "", DefaultEvent:
		return EventMessage
	case "start":
		return EventStart
	case "content":
		return EventContent
	case "stop":
		return EventStop
	case "error":
		return EventError
	default:
		return EventUnknown
	}
}

func (n EventName) String() string {
	if s, ok := eventNames[n]; ok {
		return s
	}
	return eventNames[EventUnknown]
}

// Frame is one decoded unit of an event stream.
type Frame struct {
	// Event is the value of the "event:" line, DefaultEvent when absent.
	Event string

	// Data is the trimmed value of the last "data:" line.
	Data string
}

// Name returns the frame's event name as an EventName.
func (f Frame) Name() EventName {
	return ParseEventName(f.Event)
}
