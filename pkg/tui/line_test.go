package tui_test

import (
	"bytes"
	"errors"

	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/tui"
)

var _ = Describe("LinePrinter", func() {
	var (
		buf    *bytes.Buffer
		listen chat.Listener
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		listen = tui.NewLinePrinter(buf).Listener()
	})

	output := func() string { return ansi.Strip(buf.String()) }

	It("prints streamed text once", func() {
		listen(chat.Notification{Kind: chat.TurnStarted})
		listen(chat.Notification{Kind: chat.TurnUpdate, Rendered: "Hel", Raw: "Hel"})
		listen(chat.Notification{Kind: chat.TurnUpdate, Rendered: "Hello", Raw: "Hello"})
		listen(chat.Notification{Kind: chat.TurnUpdate, Rendered: "Hello", Raw: "Hello", IsComplete: true})

		Expect(output()).To(Equal("agent> Hello\n\n"))
	})

	It("prints the final value again when rendering rewrote the text", func() {
		listen(chat.Notification{Kind: chat.TurnStarted})
		listen(chat.Notification{Kind: chat.TurnUpdate, Rendered: "**hi", Raw: "**hi"})
		listen(chat.Notification{Kind: chat.TurnUpdate, Rendered: "HI", Raw: "**hi**", IsComplete: true})

		Expect(output()).To(Equal("agent> **hi\nHI\n\n"))
	})

	It("closes an open reply before printing an error", func() {
		listen(chat.Notification{Kind: chat.TurnStarted})
		listen(chat.Notification{Kind: chat.TurnUpdate, Rendered: "par", Raw: "par"})
		listen(chat.Notification{Kind: chat.TurnError, Message: chat.SendErrorMessage, Err: errors.New("boom")})

		Expect(output()).To(Equal("agent> par\n✗ " + chat.SendErrorMessage + "\n\n"))
	})

	It("keeps streaming after a recoverable error", func() {
		listen(chat.Notification{Kind: chat.TurnStarted})
		listen(chat.Notification{Kind: chat.TurnUpdate, Rendered: "Hel", Raw: "Hel"})
		listen(chat.Notification{Kind: chat.TurnError, Message: "bad frame", Recoverable: true})
		listen(chat.Notification{Kind: chat.TurnUpdate, Rendered: "Hello", Raw: "Hello", IsComplete: true})

		Expect(output()).To(Equal("agent> Hel\n✗ bad frame\nagent> Hello\n\n"))
	})

	It("ignores updates outside a turn", func() {
		listen(chat.Notification{Kind: chat.TurnUpdate, Rendered: "stray"})
		Expect(buf.Len()).To(BeZero())
	})

	It("announces a reset chat", func() {
		listen(chat.Notification{Kind: chat.SessionIDChanged, SessionID: "chat-1"})
		Expect(buf.Len()).To(BeZero())

		listen(chat.Notification{Kind: chat.SessionIDChanged})
		Expect(output()).To(Equal("New chat\n\n"))
	})
})
