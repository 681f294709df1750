// Package nop provides the publisher used when turn events are disabled.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/serenity/pkg/eventstream"
)

// Publisher discards turn events, counting how many it was handed.
type Publisher struct {
	published atomic.Int64
}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTurn validates input and otherwise does nothing.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	p.published.Add(1)
	return nil
}

// Published returns the number of events accepted so far.
func (p *Publisher) Published() int64 {
	return p.published.Load()
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
