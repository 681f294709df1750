package assembler

import (
	"fmt"

	"github.com/papercomputeco/serenity/pkg/serenity"
)

// Assembler renders turns with a Converter. It holds no per-turn state and is
// safe to share between sessions when its Converter is.
type Assembler struct {
	conv Converter
}

// New returns an Assembler rendering with conv. A nil conv leaves markdown
// unchanged.
func New(conv Converter) *Assembler {
	if conv == nil {
		conv = Plain
	}
	return &Assembler{conv: conv}
}

// Delta appends text to t. When the accumulated text has balanced fences it
// re-renders all of it and returns the partial update; otherwise the update
// is nil and the text keeps buffering.
func (a *Assembler) Delta(t Turn, text string) (Turn, *Update, error) {
	t.Raw += text
	if !FencesBalanced(t.Raw) {
		return t, nil, nil
	}

	rendered, err := a.conv.Convert(t.Raw)
	if err != nil {
		return t, nil, fmt.Errorf("rendering partial message: %w", err)
	}
	t.Rendered = rendered

	return t, &Update{Rendered: rendered, Raw: t.Raw}, nil
}

// Finalize renders t regardless of fence balance, merges result into its
// terminal fields and returns the complete update. t is spent afterwards.
func (a *Assembler) Finalize(t Turn, result *serenity.Result) (Update, error) {
	rendered, err := a.conv.Convert(t.Raw)
	if err != nil {
		return Update{}, fmt.Errorf("rendering message: %w", err)
	}

	return Update{
		Rendered:   rendered,
		Raw:        t.Raw,
		IsComplete: true,
		Result:     t.Result.Merge(result),
	}, nil
}

// Render converts a complete message outside of a streamed turn, such as a
// conversation greeting.
func (a *Assembler) Render(markdown string) (string, error) {
	return a.conv.Convert(markdown)
}
