package assembler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Converter turns markdown into a display format.
type Converter interface {
	Convert(markdown string) (string, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(markdown string) (string, error)

func (f ConverterFunc) Convert(markdown string) (string, error) {
	return f(markdown)
}

// Plain returns markdown unchanged.
var Plain Converter = ConverterFunc(func(markdown string) (string, error) {
	return markdown, nil
})

// HTMLConverter renders CommonMark plus tables to HTML for webview clients.
// Nested list items keep the indentation of their parent's content instead
// of requiring four spaces. Raw HTML in the source is omitted.
type HTMLConverter struct {
	md goldmark.Markdown
}

// NewHTMLConverter returns an HTMLConverter.
func NewHTMLConverter() *HTMLConverter {
	return &HTMLConverter{
		md: goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

func (c *HTMLConverter) Convert(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("converting markdown to html: %w", err)
	}
	return buf.String(), nil
}

// TerminalConverter renders markdown with ANSI styling for the terminal.
type TerminalConverter struct {
	r *glamour.TermRenderer
}

// NewTerminalConverter returns a TerminalConverter using a glamour standard
// style ("dark", "light", "notty", ...) wrapped at width columns.
func NewTerminalConverter(style string, width int) (*TerminalConverter, error) {
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("creating terminal renderer: %w", err)
	}
	return &TerminalConverter{r: r}, nil
}

func (c *TerminalConverter) Convert(markdown string) (string, error) {
	out, err := c.r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return strings.Trim(out, "\n"), nil
}
