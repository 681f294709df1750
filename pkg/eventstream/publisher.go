// Package eventstream describes the turn events serenity publishes and the
// Publisher interface implemented by the nop and kafka backends.
package eventstream

import "context"

// Publisher publishes turn events to an event stream backend.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnEvent) error
	Close() error
}
