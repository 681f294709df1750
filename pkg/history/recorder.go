// Package history keeps the chat replay log in step with a chat session and
// restores it when a client starts again.
package history

import (
	"context"
	"fmt"

	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/storage"
)

// Recorder maps session notifications onto a storage.Driver. It is not safe
// for concurrent use; notifications must be recorded in emission order.
type Recorder struct {
	driver storage.Driver

	// reply is the seq of the bot entry still streaming, 0 between turns.
	reply int
}

func NewRecorder(driver storage.Driver) *Recorder {
	return &Recorder{driver: driver}
}

// Record applies one notification to the log.
func (r *Recorder) Record(ctx context.Context, n chat.Notification) error {
	switch n.Kind {
	case chat.UserMessage:
		_, err := r.append(ctx, n.SessionID, storage.RoleUser, n.Message, true)
		return err

	case chat.TurnStarted:
		seq, err := r.append(ctx, n.SessionID, storage.RoleBot, "", false)
		r.reply = seq
		return err

	case chat.TurnUpdate:
		if r.reply == 0 {
			return fmt.Errorf("updating reply: %w", storage.NotFoundError{Key: n.SessionID + "/reply"})
		}
		err := r.driver.UpdateEntry(ctx, n.SessionID, r.reply, n.Raw, n.IsComplete)
		if n.EndsTurn() {
			r.reply = 0
		}
		if err != nil {
			return fmt.Errorf("updating reply: %w", err)
		}
		return nil

	case chat.TurnError:
		if n.EndsTurn() {
			r.reply = 0
		}
		_, err := r.append(ctx, n.SessionID, storage.RoleError, n.Message, true)
		return err

	case chat.SessionIDChanged:
		r.reply = 0
		if n.SessionID == "" {
			if err := r.driver.Clear(ctx); err != nil {
				return fmt.Errorf("clearing history: %w", err)
			}
			return nil
		}
		if err := r.driver.SetState(ctx, storage.StateChatID, n.SessionID); err != nil {
			return fmt.Errorf("saving chat id: %w", err)
		}
		if err := r.driver.SetState(ctx, storage.StateAgent, n.AgentID); err != nil {
			return fmt.Errorf("saving agent: %w", err)
		}
		return nil
	}

	return nil
}

// append stores a new entry and returns its seq.
func (r *Recorder) append(ctx context.Context, chatID string, role storage.Role, message string, complete bool) (int, error) {
	entry := &storage.Entry{
		ChatID:   chatID,
		Role:     role,
		Message:  message,
		Complete: complete,
	}
	if err := r.driver.Append(ctx, entry); err != nil {
		return 0, fmt.Errorf("appending %s entry: %w", role, err)
	}
	return entry.Seq, nil
}
