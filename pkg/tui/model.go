// Package tui is the terminal chat shell: a scrolling transcript above an
// input box, fed by chat session notifications.
package tui

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/serenity"
)

const (
	inputHeight = 3

	// chrome is the number of lines used by the header, input border and help.
	chrome = 2 + inputHeight + 2
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

// Session is the part of chat.Session the shell drives.
type Session interface {
	Initialize(ctx context.Context, seed *serenity.InitConversationRequest) error
	Execute(ctx context.Context, text string) error
	Restart(ctx context.Context) error
	AgentID() string
	SessionID() string
}

// NotificationMsg delivers a session notification to the program.
type NotificationMsg chat.Notification

// turnDoneMsg reports that a request started from the input has returned.
type turnDoneMsg struct {
	err error
}

type speaker int

const (
	speakerUser speaker = iota
	speakerBot
	speakerError
)

type line struct {
	speaker  speaker
	text     string
	complete bool
}

// Model is the chat program state.
type Model struct {
	ctx     context.Context
	session Session
	keys    keyMap

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	lines     []line
	content   string
	connect   bool
	busy      bool
	streaming bool
	status    string
	width     int
	height    int
}

// NewModel returns a chat model over session. Restored transcript lines are
// passed as Entries. A session without a chat id opens a conversation when
// the program starts.
func NewModel(ctx context.Context, session Session, restored ...Entry) Model {
	ta := textarea.New()
	ta.Placeholder = "Message the agent…"
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	m := Model{
		ctx:      ctx,
		session:  session,
		keys:     defaultKeyMap(),
		viewport: viewport.New(viewport.WithWidth(80), viewport.WithHeight(20)),
		input:    ta,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:    80,
		height:   20 + chrome,
	}
	if session.SessionID() == "" {
		m.connect = true
		m.busy = true
		m.status = "connecting"
		m.input.Blur()
	}
	for _, e := range restored {
		m.lines = append(m.lines, e.line())
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	if !m.connect {
		return nil
	}
	return tea.Batch(m.initialize(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refresh()

	case tea.KeyPressMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.NewChat):
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "starting a new chat"
			m.input.Blur()
			return m, tea.Batch(m.restart(), m.spinner.Tick)

		case key.Matches(msg, m.keys.Send):
			text := strings.TrimSpace(m.input.Value())
			if m.busy || text == "" {
				return m, nil
			}
			m.input.Reset()
			m.input.Blur()
			m.busy = true
			m.status = ""
			return m, tea.Batch(m.execute(text), m.spinner.Tick)

		case key.Matches(msg, m.keys.Up, m.keys.Down):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		// Input stays disabled while a turn is in flight.
		if !m.busy {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case NotificationMsg:
		m.apply(chat.Notification(msg))
		m.refresh()

	case turnDoneMsg:
		m.connect = false
		m.busy = false
		m.streaming = false
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		cmds = append(cmds, m.input.Focus())

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// apply folds one notification into the transcript.
func (m *Model) apply(n chat.Notification) {
	switch n.Kind {
	case chat.UserMessage:
		m.lines = append(m.lines, line{speaker: speakerUser, text: n.Message, complete: true})

	case chat.TurnStarted:
		m.streaming = true
		m.lines = append(m.lines, line{speaker: speakerBot})

	case chat.TurnUpdate:
		if last := len(m.lines) - 1; last >= 0 && m.lines[last].speaker == speakerBot && !m.lines[last].complete {
			m.lines[last].text = n.Rendered
			m.lines[last].complete = n.IsComplete
		} else {
			m.lines = append(m.lines, line{speaker: speakerBot, text: n.Rendered, complete: n.IsComplete})
		}
		if n.IsComplete {
			m.streaming = false
		}

	case chat.TurnError:
		errLine := line{speaker: speakerError, text: n.Message, complete: true}
		if last := len(m.lines) - 1; !n.EndsTurn() && m.streaming && last >= 0 && m.lines[last].speaker == speakerBot {
			// The reply keeps streaming below the error.
			reply := m.lines[last]
			m.lines = append(m.lines[:last], errLine, reply)
			return
		}
		m.streaming = false
		m.lines = m.dropEmptyReply()
		m.lines = append(m.lines, errLine)

	case chat.SessionIDChanged:
		if n.SessionID == "" {
			m.lines = nil
		}
	}
}

// dropEmptyReply removes a bot line that never received content.
func (m *Model) dropEmptyReply() []line {
	if last := len(m.lines) - 1; last >= 0 && m.lines[last].speaker == speakerBot && m.lines[last].text == "" {
		return m.lines[:last]
	}
	return m.lines
}

func (m Model) execute(text string) tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{err: m.session.Execute(m.ctx, text)}
	}
}

func (m Model) initialize() tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{err: m.session.Initialize(m.ctx, nil)}
	}
}

func (m Model) restart() tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{err: m.session.Restart(m.ctx)}
	}
}

func (m *Model) resize() {
	m.viewport.SetWidth(m.width)
	m.viewport.SetHeight(max(m.height-chrome, 1))
	m.input.SetWidth(max(m.width-2, 10))
}

// refresh re-renders the transcript into the viewport and keeps it pinned
// to the newest line.
func (m *Model) refresh() {
	var sb strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch l.speaker {
		case speakerUser:
			sb.WriteString(userStyle.Render("you") + "\n")
			sb.WriteString(ansi.Wordwrap(l.text, max(m.width-2, 10), "") + "\n")
		case speakerBot:
			sb.WriteString(headerStyle.Render(m.session.AgentID()) + "\n")
			if l.text == "" {
				sb.WriteString(mutedStyle.Render("…") + "\n")
			} else {
				sb.WriteString(strings.TrimRight(l.text, "\n") + "\n")
			}
		case speakerError:
			sb.WriteString(errorStyle.Render("✗ "+l.text) + "\n")
		}
	}

	m.content = sb.String()
	m.viewport.SetContent(m.content)
	m.viewport.GotoBottom()
}

func (m Model) View() tea.View {
	chatID := m.session.SessionID()
	if chatID == "" {
		chatID = "no conversation"
	}
	header := headerStyle.Render("serenity") + "  " +
		mutedStyle.Render(fmt.Sprintf("%s · %s", m.session.AgentID(), chatID))

	status := ""
	switch {
	case m.streaming:
		status = m.spinner.View() + " " + mutedStyle.Render("streaming")
	case m.busy:
		status = m.spinner.View() + " " + mutedStyle.Render(firstNonEmpty(m.status, "waiting"))
	case m.status != "":
		status = errorStyle.Render(m.status)
	}

	var v tea.View
	v.AltScreen = true
	v.WindowTitle = "serenity"
	v.Content = lipgloss.JoinVertical(lipgloss.Left,
		header+"  "+status,
		m.viewport.View(),
		inputStyle.Render(m.input.View()),
		mutedStyle.Render(m.keys.help()),
	)
	return v
}

// Transcript returns the plain text of the transcript, for tests and logs.
func (m Model) Transcript() string {
	return ansi.Strip(m.content)
}

// Busy reports whether a request started from the input is in flight.
func (m Model) Busy() bool {
	return m.busy
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
