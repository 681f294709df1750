package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/cliui"
)

// Prompts printed by the line mode shell.
var (
	UserPrompt  = cliui.UserStyle.Render("you> ")
	AgentPrompt = cliui.DimStyle.Render("agent> ")
)

// LinePrinter writes turns to w as plain lines for terminals without the full
// screen shell. Bot text is printed as it streams; when the rendered reply is
// not an extension of what was already printed, the final value is printed
// again in full.
type LinePrinter struct {
	w io.Writer

	mu      sync.Mutex
	printed string
	open    bool
}

func NewLinePrinter(w io.Writer) *LinePrinter {
	return &LinePrinter{w: w}
}

// Listener returns the chat.Listener feeding the printer.
func (p *LinePrinter) Listener() chat.Listener {
	return p.handle
}

func (p *LinePrinter) handle(n chat.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch n.Kind {
	case chat.TurnStarted:
		fmt.Fprint(p.w, AgentPrompt)
		p.printed = ""
		p.open = true

	case chat.TurnUpdate:
		if !p.open {
			return
		}
		if strings.HasPrefix(n.Rendered, p.printed) {
			fmt.Fprint(p.w, n.Rendered[len(p.printed):])
			p.printed = n.Rendered
		} else if n.IsComplete {
			fmt.Fprintf(p.w, "\n%s", n.Rendered)
			p.printed = n.Rendered
		}
		if n.IsComplete {
			fmt.Fprint(p.w, "\n\n")
			p.open = false
		}

	case chat.TurnError:
		if p.open {
			fmt.Fprintln(p.w)
		}
		if n.EndsTurn() || !p.open {
			p.open = false
			fmt.Fprintf(p.w, "%s %s\n\n", cliui.FailMark, n.Message)
			return
		}
		// The turn keeps streaming: the next update reprints the reply.
		fmt.Fprintf(p.w, "%s %s\n%s", cliui.FailMark, n.Message, AgentPrompt)
		p.printed = ""

	case chat.SessionIDChanged:
		if n.SessionID == "" {
			fmt.Fprintf(p.w, "%s\n\n", cliui.DimStyle.Render("New chat"))
		}
	}
}
