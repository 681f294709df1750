package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/serenity"
	"github.com/papercomputeco/serenity/pkg/sse"
)

const (
	// eventBuffer is the number of notifications held for a slow subscriber
	// before new ones are dropped.
	eventBuffer = 256

	keepAliveInterval = 15 * time.Second

	stateEvent = "state"
)

// NotificationView is the data of a notification frame on GET /v1/events.
type NotificationView struct {
	Kind       string           `json:"kind"`
	At         time.Time        `json:"at"`
	Agent      string           `json:"agent"`
	ChatID     string           `json:"chatId"`
	Message    string           `json:"message,omitempty"`
	Rendered   string           `json:"rendered,omitempty"`
	Raw        string           `json:"raw,omitempty"`
	IsComplete bool             `json:"isComplete,omitempty"`
	Result     *serenity.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func newNotificationView(n chat.Notification) NotificationView {
	v := NotificationView{
		Kind:       n.Kind.String(),
		At:         n.At,
		Agent:      n.AgentID,
		ChatID:     n.SessionID,
		Message:    n.Message,
		Rendered:   n.Rendered,
		Raw:        n.Raw,
		IsComplete: n.IsComplete,
		Result:     n.Result,
	}
	if n.Err != nil {
		v.Error = n.Err.Error()
	}
	return v
}

// handleEvents streams session notifications as an event stream. The first
// frame is a "state" event carrying the session state.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	events := make(chan chat.Notification, eventBuffer)
	unsubscribe := s.session.Subscribe(func(n chat.Notification) {
		select {
		case events <- n:
		default:
			s.logger.Warn("event subscriber lagging, notification dropped", "kind", n.Kind.String())
		}
	})

	// io.Pipe gives fasthttp a chunked body that is flushed per write.
	pr, pw := io.Pipe()
	go func() {
		defer unsubscribe()
		err := writeEvents(s.ctx, pw, s.chatResponse(), events, keepAliveInterval)
		pw.CloseWithError(err)
		s.logger.Debug("event stream closed", "reason", err)
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// writeEvents writes the initial state frame and then one frame per
// notification until ctx ends, events is closed or a write fails. Idle
// streams get a comment line every keepAlive so dead clients are noticed.
func writeEvents(ctx context.Context, w io.Writer, initial ChatResponse, events <-chan chat.Notification, keepAlive time.Duration) error {
	if err := writeFrame(w, stateEvent, initial); err != nil {
		return err
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return err
			}

		case n, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeFrame(w, n.Kind.String(), newNotificationView(n)); err != nil {
				return err
			}
		}
	}
}

func writeFrame(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", event, err)
	}
	return sse.Encode(w, sse.Frame{Event: event, Data: string(data)})
}
