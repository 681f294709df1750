package sse

// Handler receives decoded frames, one method per EventName. Implementations
// must handle every name, so adding a name to the set is a compile error
// until every consumer is updated.
type Handler interface {
	OnStart(Frame)
	OnContent(Frame)
	OnStop(Frame)
	OnError(Frame)
	OnMessage(Frame)
}

// Dispatch routes f to the matching Handler method. It reports false for
// frames whose name is outside the known set.
func Dispatch(h Handler, f Frame) bool {
	switch f.Name() {
	case EventStart:
		h.OnStart(f)
	case EventContent:
		h.OnContent(f)
	case EventStop:
		h.OnStop(f)
	case EventError:
		h.OnError(f)
	case EventMessage:
		h.OnMessage(f)
	default:
		return false
	}
	return true
}

// HandlerFuncs adapts plain functions to Handler. Nil fields ignore their
// frames.
type HandlerFuncs struct {
	Start   func(Frame)
	Content func(Frame)
	Stop    func(Frame)
	Error   func(Frame)
	Message func(Frame)
}

func (h HandlerFuncs) OnStart(f Frame)   { call(h.Start, f) }
func (h HandlerFuncs) OnContent(f Frame) { call(h.Content, f) }
func (h HandlerFuncs) OnStop(f Frame)    { call(h.Stop, f) }
func (h HandlerFuncs) OnError(f Frame)   { call(h.Error, f) }
func (h HandlerFuncs) OnMessage(f Frame) { call(h.Message, f) }

func call(fn func(Frame), f Frame) {
	if fn != nil {
		fn(f)
	}
}
