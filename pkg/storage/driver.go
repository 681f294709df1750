// Package storage persists the chat replay log: the transcript of the current
// conversation plus a small key/value state (chat id, agent) so a chat can be
// resumed after the client restarts.
package storage

import (
	"context"
	"time"
)

// Role identifies who produced an Entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleBot   Role = "bot"
	RoleError Role = "error"
)

// State keys.
const (
	StateChatID = "chat_id"
	StateAgent  = "agent"
)

// Entry is one transcript line.
type Entry struct {
	ID     string
	ChatID string

	// Seq orders entries within a chat, starting at 1. Drivers assign it on Append.
	Seq int

	Role Role

	// Message is the markdown source for bot entries and plain text otherwise.
	Message string

	// Complete is false while a bot reply is still streaming.
	Complete bool

	CreatedAt time.Time
}

// Driver defines the interface for persisting the replay log in a storage backend.
type Driver interface {
	// Append stores a new entry at the end of its chat. The driver assigns
	// Seq, and ID and CreatedAt when they are empty.
	Append(ctx context.Context, entry *Entry) error

	// UpdateEntry replaces the message and completeness of the entry seq in
	// chatID. Returns NotFoundError when there is no such entry.
	UpdateEntry(ctx context.Context, chatID string, seq int, message string, complete bool) error

	// Entries returns the entries of chatID in Seq order.
	Entries(ctx context.Context, chatID string) ([]Entry, error)

	// Clear removes every entry and state value.
	Clear(ctx context.Context) error

	// SetState stores value under key, replacing any previous value.
	SetState(ctx context.Context, key, value string) error

	// State returns the value stored under key, or NotFoundError.
	State(ctx context.Context, key string) (string, error)

	// Close closes the store and releases any resources.
	Close() error
}
