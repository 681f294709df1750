package cliui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/papercomputeco/serenity/pkg/serenity"
)

// ErrPickCanceled is returned when the picker is dismissed without a choice.
var ErrPickCanceled = errors.New("no agent selected")

type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Cancel key.Binding
}

var pickerKeys = pickerKeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Cancel: key.NewBinding(key.WithKeys("esc", "ctrl+c", "q"), key.WithHelp("esc", "cancel")),
}

// PickerModel is a single-choice agent list.
type PickerModel struct {
	title    string
	agents   []serenity.Agent
	cursor   int
	width    int
	chosen   bool
	canceled bool
}

// NewPicker returns a picker positioned on the agent whose code is current.
func NewPicker(title string, agents []serenity.Agent, current string) PickerModel {
	m := PickerModel{title: title, agents: agents, width: 80}
	for i, a := range agents {
		if a.Code == current {
			m.cursor = i
			break
		}
	}
	return m
}

func (m PickerModel) Init() tea.Cmd {
	return nil
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyPressMsg:
		switch {
		case key.Matches(msg, pickerKeys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, pickerKeys.Down):
			if m.cursor < len(m.agents)-1 {
				m.cursor++
			}
		case key.Matches(msg, pickerKeys.Select):
			if len(m.agents) > 0 {
				m.chosen = true
				return m, tea.Quit
			}
		case key.Matches(msg, pickerKeys.Cancel):
			m.canceled = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m PickerModel) View() tea.View {
	var sb strings.Builder
	sb.WriteString("\n  " + HeaderStyle.Render(m.title) + "\n\n")

	if len(m.agents) == 0 {
		sb.WriteString("  " + DimStyle.Render("No agents available.") + "\n")
	}

	for i, a := range m.agents {
		line := fmt.Sprintf("%s  %s", a.Code, DimStyle.Render(a.Name))
		line = Truncate(line, m.width-4)
		if i == m.cursor {
			sb.WriteString("  " + NameStyle.Render("›") + " " + line + "\n")
		} else {
			sb.WriteString("    " + line + "\n")
		}
	}

	sb.WriteString("\n  " + DimStyle.Render("↑/↓ move • enter select • esc cancel") + "\n")

	var v tea.View
	v.Content = sb.String()
	return v
}

// Selected returns the chosen agent. ok is false when the picker was
// canceled or is still running.
func (m PickerModel) Selected() (serenity.Agent, bool) {
	if !m.chosen || m.canceled || len(m.agents) == 0 {
		return serenity.Agent{}, false
	}
	return m.agents[m.cursor], true
}

// PickAgent runs the picker on in/out and returns the chosen agent.
func PickAgent(ctx context.Context, in io.Reader, out io.Writer, title string, agents []serenity.Agent, current string) (serenity.Agent, error) {
	if len(agents) == 0 {
		return serenity.Agent{}, errors.New("no agents available for this API key")
	}

	p := tea.NewProgram(NewPicker(title, agents, current),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)

	final, err := p.Run()
	if err != nil {
		return serenity.Agent{}, fmt.Errorf("running agent picker: %w", err)
	}

	picked, ok := final.(PickerModel).Selected()
	if !ok {
		return serenity.Agent{}, ErrPickCanceled
	}

	return picked, nil
}
