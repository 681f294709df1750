package tui

import (
	"context"
	"errors"
	"sync"

	tea "charm.land/bubbletea/v2"
	// Not dot-imported: ginkgo.Entry would collide with Entry.
	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/serenity"
	"github.com/papercomputeco/serenity/pkg/storage"
)

type fakeSession struct {
	mu       sync.Mutex
	chatID   string
	sent     []string
	inits    int
	restarts int
	err      error
}

func (f *fakeSession) Initialize(context.Context, *serenity.InitConversationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	if f.err == nil {
		f.chatID = "chat-1"
	}
	return f.err
}

func (f *fakeSession) Execute(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.err
}

func (f *fakeSession) Restart(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	return f.err
}

func (f *fakeSession) AgentID() string   { return "coder" }
func (f *fakeSession) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatID
}

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

var (
	enter   = tea.KeyPressMsg{Code: tea.KeyEnter}
	esc     = tea.KeyPressMsg{Code: tea.KeyEscape}
	newChat = tea.KeyPressMsg{Code: 'n', Mod: tea.ModCtrl}
)

// runCmd executes cmd and any batched commands, feeding turn results back
// into the model.
func runCmd(m Model, cmd tea.Cmd) Model {
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			m = runCmd(m, c)
		}
	case turnDoneMsg:
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func update(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func notify(kind chat.Kind, fn ...func(*chat.Notification)) NotificationMsg {
	n := chat.Notification{Kind: kind, AgentID: "coder", SessionID: "chat-1"}
	for _, f := range fn {
		f(&n)
	}
	return NotificationMsg(n)
}

var _ = ginkgo.Describe("Model", func() {
	var (
		session *fakeSession
		m       Model
	)

	ginkgo.BeforeEach(func() {
		session = &fakeSession{chatID: "chat-1"}
		m = NewModel(context.Background(), session)
		m = update(m, tea.WindowSizeMsg{Width: 80, Height: 30})
	})

	ginkgo.It("sends the input and disables it until the turn returns", func() {
		m.input.SetValue("hello there")

		next, cmd := m.Update(enter)
		m = next.(Model)
		Expect(m.Busy()).To(BeTrue())
		Expect(m.input.Value()).To(BeEmpty())

		m.input.SetValue("typed while busy")
		next, _ = m.Update(enter)
		m = next.(Model)
		Expect(m.Busy()).To(BeTrue())

		m = runCmd(m, cmd)
		Expect(session.sent).To(Equal([]string{"hello there"}))
		Expect(m.Busy()).To(BeFalse())
	})

	ginkgo.It("ignores blank input", func() {
		m.input.SetValue("   ")
		_, cmd := m.Update(enter)
		Expect(cmd).To(BeNil())
	})

	ginkgo.It("builds the transcript from notifications", func() {
		m = update(m,
			notify(chat.UserMessage, func(n *chat.Notification) { n.Message = "hi" }),
			notify(chat.TurnStarted),
			notify(chat.TurnUpdate, func(n *chat.Notification) { n.Rendered = "Hel" }),
			notify(chat.TurnUpdate, func(n *chat.Notification) {
				n.Rendered = "Hello"
				n.IsComplete = true
			}),
		)

		Expect(m.lines).To(HaveLen(2))
		Expect(m.lines[1].text).To(Equal("Hello"))
		Expect(m.lines[1].complete).To(BeTrue())
		Expect(m.streaming).To(BeFalse())
		Expect(m.Transcript()).To(ContainSubstring("you\nhi"))
		Expect(m.Transcript()).To(ContainSubstring("coder\nHello"))
	})

	ginkgo.It("marks the turn as streaming between start and completion", func() {
		m = update(m, notify(chat.TurnStarted))
		Expect(m.streaming).To(BeTrue())
		Expect(m.Transcript()).To(ContainSubstring("…"))
	})

	ginkgo.It("replaces an empty reply with the error", func() {
		m = update(m,
			notify(chat.TurnStarted),
			notify(chat.TurnError, func(n *chat.Notification) { n.Message = chat.SendErrorMessage }),
		)

		Expect(m.lines).To(HaveLen(1))
		Expect(m.lines[0].speaker).To(Equal(speakerError))
		Expect(m.Transcript()).To(ContainSubstring(chat.SendErrorMessage))
	})

	ginkgo.It("keeps the reply streaming after a recoverable error", func() {
		m = update(m,
			notify(chat.TurnStarted),
			notify(chat.TurnUpdate, func(n *chat.Notification) { n.Rendered = "Hel" }),
			notify(chat.TurnError, func(n *chat.Notification) {
				n.Message = "bad frame"
				n.Recoverable = true
			}),
		)
		Expect(m.streaming).To(BeTrue())

		m = update(m, notify(chat.TurnUpdate, func(n *chat.Notification) {
			n.Rendered = "Hello"
			n.IsComplete = true
		}))

		Expect(m.lines).To(HaveLen(2))
		Expect(m.lines[0].speaker).To(Equal(speakerError))
		Expect(m.lines[1].text).To(Equal("Hello"))
		Expect(m.lines[1].complete).To(BeTrue())
		Expect(m.streaming).To(BeFalse())
	})

	ginkgo.It("clears the transcript when the chat is reset", func() {
		m = update(m,
			notify(chat.UserMessage, func(n *chat.Notification) { n.Message = "hi" }),
			notify(chat.SessionIDChanged, func(n *chat.Notification) { n.SessionID = "" }),
		)
		Expect(m.lines).To(BeEmpty())
	})

	ginkgo.It("starts a new chat on ctrl+n", func() {
		next, cmd := m.Update(newChat)
		m = next.(Model)
		Expect(m.Busy()).To(BeTrue())

		m = runCmd(m, cmd)
		Expect(session.restarts).To(Equal(1))
		Expect(m.Busy()).To(BeFalse())
	})

	ginkgo.It("shows request errors in the status line", func() {
		session.err = errors.New("no conversation")
		m.input.SetValue("hello")
		_, cmd := m.Update(enter)
		m = runCmd(m, cmd)

		Expect(m.status).To(Equal("no conversation"))
		Expect(m.View().Content).To(ContainSubstring("no conversation"))
	})

	ginkgo.It("quits on esc", func() {
		_, cmd := m.Update(esc)
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(Equal(tea.Quit()))
	})

	ginkgo.It("shows restored entries", func() {
		restored := Entries([]storage.Entry{
			{Role: storage.RoleUser, Message: "earlier question"},
			{Role: storage.RoleBot, Message: "**earlier** answer"},
		}, assembler.Plain)

		m = NewModel(context.Background(), session, restored...)
		Expect(m.lines).To(HaveLen(2))
		Expect(m.Transcript()).To(ContainSubstring("earlier question"))
		Expect(m.Transcript()).To(ContainSubstring("**earlier** answer"))
	})
})

var _ = ginkgo.Describe("Model without a conversation", func() {
	ginkgo.It("opens one when the program starts", func() {
		session := &fakeSession{}
		m := NewModel(context.Background(), session)
		Expect(m.Busy()).To(BeTrue())
		Expect(m.View().Content).To(ContainSubstring("connecting"))

		m = runCmd(m, m.Init())
		Expect(session.inits).To(Equal(1))
		Expect(m.Busy()).To(BeFalse())
		Expect(session.SessionID()).To(Equal("chat-1"))
	})

	ginkgo.It("shows a failed connection in the status line", func() {
		session := &fakeSession{err: errors.New("no route")}
		m := NewModel(context.Background(), session)

		m = runCmd(m, m.Init())
		Expect(m.Busy()).To(BeFalse())
		Expect(m.View().Content).To(ContainSubstring("no route"))
	})

	ginkgo.It("does nothing on start with a restored chat", func() {
		m := NewModel(context.Background(), &fakeSession{chatID: "chat-9"})
		Expect(m.Init()).To(BeNil())
		Expect(m.Busy()).To(BeFalse())
	})
})

var _ = ginkgo.Describe("Listener", func() {
	ginkgo.It("forwards notifications to the program", func() {
		sender := &recordingSender{}
		Listener(sender)(chat.Notification{Kind: chat.TurnStarted})

		Expect(sender.msgs).To(HaveLen(1))
		Expect(sender.msgs[0]).To(BeAssignableToTypeOf(NotificationMsg{}))
	})
})
