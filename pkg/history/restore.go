package history

import (
	"context"
	"fmt"

	"github.com/papercomputeco/serenity/pkg/storage"
)

// Snapshot is the restorable state of the last conversation.
type Snapshot struct {
	ChatID  string
	AgentID string
	Entries []storage.Entry
}

// Empty reports whether there is nothing to resume, meaning the client
// should start a new chat.
func (s *Snapshot) Empty() bool {
	return s == nil || s.ChatID == ""
}

// Restore reads the last conversation from driver. A log with no chat id
// yields an empty Snapshot.
func Restore(ctx context.Context, driver storage.Driver) (*Snapshot, error) {
	chatID, err := state(ctx, driver, storage.StateChatID)
	if err != nil {
		return nil, err
	}
	if chatID == "" {
		return &Snapshot{}, nil
	}

	agentID, err := state(ctx, driver, storage.StateAgent)
	if err != nil {
		return nil, err
	}

	entries, err := driver.Entries(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	visible := entries[:0]
	for _, e := range entries {
		// A reply that failed before any content arrived leaves an empty
		// bot entry behind; the error entry after it carries the message.
		if e.Role == storage.RoleBot && e.Message == "" {
			continue
		}
		visible = append(visible, e)
	}

	return &Snapshot{ChatID: chatID, AgentID: agentID, Entries: visible}, nil
}

func state(ctx context.Context, driver storage.Driver, key string) (string, error) {
	v, err := driver.State(ctx, key)
	if storage.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}
