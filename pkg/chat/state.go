package chat

// State is the lifecycle position of a Session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateIdle
	StateStreaming
	// StateError is held while a failure is being reported. The session then
	// returns to StateIdle, or StateUninitialized without a chat id.
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
