// Package worker provides an asynchronous worker pool that persists chat
// notifications through a history.Recorder and publishes finished turns to an
// eventstream.Publisher.
//
// The pool decouples storage and publishing from the goroutine driving the
// chat session so listeners never block a streaming turn.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/eventstream"
	"github.com/papercomputeco/serenity/pkg/history"
)

var (
	defaultNumWorkers   uint = 1
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Notification chat.Notification
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Recorder persists notifications to the replay log. Optional.
	Recorder *history.Recorder

	// Publisher receives an event per finished turn. Optional.
	Publisher eventstream.Publisher

	// Client names the shell that produced the turns (cli, tui, bridge) in
	// published events.
	Client string

	// Project names the repository the shell ran in, see git.RepoName.
	Project string

	// NumWorkers is the number of background workers in the pool. The replay
	// log is only kept in notification order with a single worker.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// turnState is what the pool remembers about the open turn of a chat.
type turnState struct {
	userMessage string
	startedAt   time.Time
}

// Pool processes notification jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu    sync.Mutex
	turns map[string]*turnState
	once  sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	log := c.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: log,
		turns:  make(map[string]*turnState),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"kind", job.Notification.Kind.String(),
			"chat_id", job.Notification.SessionID,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"kind", job.Notification.Kind.String(),
			"chat_id", job.Notification.SessionID,
		)
		return false
	}
}

// Listener returns a chat.Listener that enqueues every notification.
func (p *Pool) Listener() chat.Listener {
	return func(n chat.Notification) {
		p.Enqueue(Job{Notification: n})
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Unsubscribe the pool's listener before calling Close.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob records the notification and publishes an event when it ends a turn.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	n := job.Notification

	if p.config.Recorder != nil {
		if err := p.config.Recorder.Record(ctx, n); err != nil {
			p.logger.Error("recording notification failed",
				"kind", n.Kind.String(),
				"chat_id", n.SessionID,
				"error", err,
			)
		}
	}

	event := p.track(n)
	if event == nil || p.config.Publisher == nil {
		return
	}

	if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
		p.logger.Warn("publishing turn event failed",
			"event_type", event.EventType,
			"chat_id", n.SessionID,
			"error", err,
		)
		return
	}

	p.logger.Debug("turn event published",
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
}

// track folds n into the open turn of its chat and returns the event to
// publish when n finishes the turn.
func (p *Pool) track(n chat.Notification) *eventstream.TurnEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	turn := p.turns[n.SessionID]
	if turn == nil {
		turn = &turnState{}
		p.turns[n.SessionID] = turn
	}

	switch n.Kind {
	case chat.UserMessage:
		turn.userMessage = n.Message
		turn.startedAt = n.At
		return nil

	case chat.TurnStarted:
		if turn.startedAt.IsZero() {
			turn.startedAt = n.At
		}
		return nil

	case chat.SessionIDChanged:
		delete(p.turns, n.SessionID)
		return nil

	case chat.TurnUpdate:
		if !n.IsComplete {
			return nil
		}
		event := p.event(eventstream.EventTypeTurnCompleted, n, turn)
		event.Turn.Content = n.Raw
		event.Turn.Rendered = n.Rendered
		event.Turn.Result = n.Result
		delete(p.turns, n.SessionID)
		return event

	case chat.TurnError:
		if !n.EndsTurn() {
			// The same turn keeps streaming.
			return nil
		}
		event := p.event(eventstream.EventTypeTurnFailed, n, turn)
		event.Turn.Error = n.Message
		if n.Err != nil {
			event.Turn.Error = n.Err.Error()
		}
		delete(p.turns, n.SessionID)
		return event
	}

	return nil
}

func (p *Pool) event(eventType string, n chat.Notification, turn *turnState) *eventstream.TurnEvent {
	payload := eventstream.TurnPayload{
		UserMessage: turn.userMessage,
		StartedAt:   turn.startedAt,
		CompletedAt: n.At,
	}
	if !turn.startedAt.IsZero() && !n.At.IsZero() {
		payload.DurationMs = n.At.Sub(turn.startedAt).Milliseconds()
	}

	return eventstream.NewTurnEvent(eventType, eventstream.EventSource{
		AgentID: n.AgentID,
		ChatID:  n.SessionID,
		Client:  p.config.Client,
		Project: p.config.Project,
	}, payload)
}
