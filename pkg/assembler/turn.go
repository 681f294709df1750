package assembler

import (
	"github.com/papercomputeco/serenity/pkg/serenity"
)

// Turn is the assistant message being assembled for one streamed turn. The
// zero value is an empty turn.
type Turn struct {
	// Raw is the markdown received so far.
	Raw string

	// Rendered is the last display value produced from Raw.
	Rendered string

	// Result holds terminal fields merged so far.
	Result *serenity.Result
}

// Empty reports whether no text has been received.
func (t Turn) Empty() bool {
	return t.Raw == ""
}

// Update is a display value ready to be shown.
type Update struct {
	// Rendered is the display form of the whole message so far.
	Rendered string

	// Raw is the markdown Rendered was produced from.
	Raw string

	// IsComplete is set on the final update of a turn.
	IsComplete bool

	// Result carries the terminal fields of a complete turn.
	Result *serenity.Result
}
