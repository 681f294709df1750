package tui

import (
	"context"
	"fmt"
	"io"

	tea "charm.land/bubbletea/v2"

	"github.com/papercomputeco/serenity/pkg/chat"
)

// Subscriber is a session that reports notifications.
type Subscriber interface {
	Session
	Subscribe(l chat.Listener) func()
}

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Listener forwards session notifications to a program.
func Listener(p Sender) chat.Listener {
	return func(n chat.Notification) {
		p.Send(NotificationMsg(n))
	}
}

// Run shows the chat shell on in/out until the user quits.
func Run(ctx context.Context, session Subscriber, in io.Reader, out io.Writer, restored ...Entry) error {
	p := tea.NewProgram(NewModel(ctx, session, restored...),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)

	unsubscribe := session.Subscribe(Listener(p))
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running chat: %w", err)
	}
	return nil
}
