package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/serenity/pkg/cliui"
	"github.com/papercomputeco/serenity/pkg/serenity"
)

var agents = []serenity.Agent{
	{Code: "assistant", Name: "General assistant"},
	{Code: "writer", Name: "Copy writer with a rather long display name"},
	{Code: "explainer", Name: "Code explainer"},
}

func press(m tea.Model, keys ...tea.KeyPressMsg) tea.Model {
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	return m
}

var (
	down  = tea.KeyPressMsg{Code: tea.KeyDown}
	up    = tea.KeyPressMsg{Code: tea.KeyUp}
	enter = tea.KeyPressMsg{Code: tea.KeyEnter}
	esc   = tea.KeyPressMsg{Code: tea.KeyEscape}
)

var _ = Describe("Step", func() {
	It("prints a success mark and passes the result through", func() {
		var buf bytes.Buffer
		Expect(cliui.Step(&buf, "Loading agents", func() error { return nil })).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("Loading agents"))
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
	})

	It("prints a failure mark and returns the error", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")
		Expect(cliui.Step(&buf, "Loading agents", func() error { return boom })).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})

	It("prints a single line without a spinner when not on a terminal", func() {
		var buf bytes.Buffer
		Expect(cliui.Step(&buf, "Saving key", func() error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})).To(Succeed())
		Expect(buf.String()).NotTo(ContainSubstring("\r"))
		Expect(strings.Count(buf.String(), "Saving key")).To(Equal(1))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds under a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds with one decimal otherwise", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Truncate", func() {
	It("leaves short strings alone", func() {
		Expect(cliui.Truncate("agent", 10)).To(Equal("agent"))
	})

	It("cuts long strings to the width with an ellipsis", func() {
		out := cliui.Truncate("a very long agent name", 10)
		Expect(ansi.StringWidth(out)).To(Equal(10))
		Expect(out).To(HaveSuffix("…"))
	})

	It("ignores escape sequences when measuring", func() {
		styled := "\x1b[1mbold\x1b[0m"
		Expect(ansi.Strip(cliui.Truncate(styled, 10))).To(Equal("bold"))
	})
})

var _ = Describe("AgentTable", func() {
	It("lists every agent and marks the active one", func() {
		var buf bytes.Buffer
		cliui.AgentTable(&buf, agents, "writer", 40)

		lines := strings.Split(strings.TrimRight(ansi.Strip(buf.String()), "\n"), "\n")
		Expect(lines).To(HaveLen(4))
		Expect(lines[0]).To(ContainSubstring("CODE"))
		Expect(lines[2]).To(HavePrefix("✓ writer"))
		for _, l := range lines {
			Expect(ansi.StringWidth(l)).To(BeNumerically("<=", 40))
		}
	})
})

var _ = Describe("PickerModel", func() {
	It("starts on the current agent", func() {
		m := press(cliui.NewPicker("Pick", agents, "explainer"), enter)
		picked, ok := m.(cliui.PickerModel).Selected()
		Expect(ok).To(BeTrue())
		Expect(picked.Code).To(Equal("explainer"))
	})

	It("moves with the arrow keys and stays within bounds", func() {
		m := press(cliui.NewPicker("Pick", agents, ""), up, down, down, down, down, up, enter)
		picked, ok := m.(cliui.PickerModel).Selected()
		Expect(ok).To(BeTrue())
		Expect(picked.Code).To(Equal("writer"))
	})

	It("reports nothing selected when canceled", func() {
		m := press(cliui.NewPicker("Pick", agents, ""), esc)
		_, ok := m.(cliui.PickerModel).Selected()
		Expect(ok).To(BeFalse())
	})

	It("quits on select", func() {
		_, cmd := cliui.NewPicker("Pick", agents, "").Update(enter)
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(BeAssignableToTypeOf(tea.QuitMsg{}))
	})

	It("renders the title and agent codes", func() {
		view := cliui.NewPicker("Pick an agent", agents, "").View()
		content := ansi.Strip(view.Content)
		Expect(content).To(ContainSubstring("Pick an agent"))
		Expect(content).To(ContainSubstring("assistant"))
		Expect(content).To(ContainSubstring("explainer"))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("renders headings without markup", func() {
		out, err := cliui.RenderMarkdown("# Hello", 40)
		Expect(err).NotTo(HaveOccurred())
		Expect(ansi.Strip(out)).To(ContainSubstring("Hello"))
	})
})
