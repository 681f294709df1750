package cliui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/serenity/pkg/serenity"
)

const ellipsis = "…"

// Truncate shortens s to at most width cells, ANSI sequences excluded.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, ellipsis)
}

// pad right-pads s to width cells.
func pad(s string, width int) string {
	if n := ansi.StringWidth(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// AgentTable writes one row per agent: a marker for the active agent, the
// code and the display name. Names are truncated so each row fits in width.
func AgentTable(w io.Writer, agents []serenity.Agent, active string, width int) {
	codeWidth := len("CODE")
	for _, a := range agents {
		codeWidth = max(codeWidth, ansi.StringWidth(a.Code))
	}

	// marker + space + code + two spaces
	nameWidth := max(width-codeWidth-4, 8)

	fmt.Fprintf(w, "  %s  %s\n", HeaderStyle.Render(pad("CODE", codeWidth)), HeaderStyle.Render("NAME"))
	for _, a := range agents {
		marker := " "
		code := pad(a.Code, codeWidth)
		if a.Code == active {
			marker = SuccessMark
			code = NameStyle.Render(code)
		}
		fmt.Fprintf(w, "%s %s  %s\n", marker, code, Truncate(a.Name, nameWidth))
	}
}
