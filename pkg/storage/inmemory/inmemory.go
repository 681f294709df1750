// Package inmemory provides a map-backed storage driver. Its contents are lost
// when the process exits.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/serenity/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex for locking the entries and state
	mu sync.RWMutex

	// entries maps a chat id to its entries in Seq order
	entries map[string][]storage.Entry

	state map[string]string
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		entries: make(map[string][]storage.Entry),
		state:   make(map[string]string),
	}
}

func (d *Driver) Append(_ context.Context, entry *storage.Entry) error {
	if entry == nil {
		return errors.New("cannot store nil entry")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Seq = len(d.entries[entry.ChatID]) + 1

	d.entries[entry.ChatID] = append(d.entries[entry.ChatID], *entry)
	return nil
}

func (d *Driver) UpdateEntry(_ context.Context, chatID string, seq int, message string, complete bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.entries[chatID]
	if seq < 1 || seq > len(entries) {
		return storage.NotFoundError{Key: fmt.Sprintf("%s/%d", chatID, seq)}
	}

	e := &entries[seq-1]
	e.Message = message
	e.Complete = complete
	return nil
}

func (d *Driver) Entries(_ context.Context, chatID string) ([]storage.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return slices.Clone(d.entries[chatID]), nil
}

func (d *Driver) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	clear(d.entries)
	clear(d.state)
	return nil
}

func (d *Driver) SetState(_ context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state[key] = value
	return nil
}

func (d *Driver) State(_ context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok := d.state[key]
	if !ok {
		return "", storage.NotFoundError{Key: key}
	}
	return v, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
