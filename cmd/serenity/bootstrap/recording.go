package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/eventstream"
	"github.com/papercomputeco/serenity/pkg/eventstream/kafka"
	"github.com/papercomputeco/serenity/pkg/eventstream/nop"
	"github.com/papercomputeco/serenity/pkg/git"
	"github.com/papercomputeco/serenity/pkg/history"
	"github.com/papercomputeco/serenity/pkg/storage"
	"github.com/papercomputeco/serenity/pkg/worker"
)

// OpenHistory opens the configured replay log.
func (e *Env) OpenHistory(ctx context.Context) (storage.Driver, error) {
	return history.OpenDriver(ctx, e.Config.Storage, e.Dir, e.Logger)
}

// Publisher creates the configured turn event publisher.
func (e *Env) Publisher() (eventstream.Publisher, error) {
	switch e.Config.Events.Provider {
	case config.EventsNone, "":
		return nop.NewPublisher(), nil
	case config.EventsKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: e.Config.Events.KafkaBrokers,
			Topic:   e.Config.Events.KafkaTopic,
			Logger:  e.Logger.With("component", "kafka"),
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events provider %q", e.Config.Events.Provider)
	}
}

// Recording persists and publishes the turns of one chat shell.
type Recording struct {
	History   storage.Driver
	Publisher eventstream.Publisher
	Pool      *worker.Pool

	unsubscribe func()
}

// StartRecording opens the replay log and publisher and starts the worker
// pool. client names the shell in published events.
func (e *Env) StartRecording(ctx context.Context, client string) (*Recording, error) {
	driver, err := e.OpenHistory(ctx)
	if err != nil {
		return nil, err
	}

	pub, err := e.Publisher()
	if err != nil {
		_ = driver.Close()
		return nil, err
	}

	pool, err := worker.NewPool(&worker.Config{
		Recorder:  history.NewRecorder(driver),
		Publisher: pub,
		Client:    client,
		Project:   git.RepoName(),
		Logger:    e.Logger.With("component", "worker"),
	})
	if err != nil {
		_ = pub.Close()
		_ = driver.Close()
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	return &Recording{History: driver, Publisher: pub, Pool: pool}, nil
}

// Attach subscribes the pool to session. Close detaches it.
func (r *Recording) Attach(session *chat.Session) {
	r.unsubscribe = session.Subscribe(r.Pool.Listener())
}

// Close stops recording and drains queued notifications before closing the
// publisher and replay log.
func (r *Recording) Close() error {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.Pool.Close()
	return errors.Join(r.Publisher.Close(), r.History.Close())
}
