package sse

import (
	"errors"
	"io"
	"strings"
)

// ErrMultilineData is returned by Encode for payloads containing a newline,
// which the decoder would truncate to their last line.
var ErrMultilineData = errors.New("sse: frame data must be a single line")

// Encode writes f to w in the framing Decoder reads back.
func Encode(w io.Writer, f Frame) error {
	if strings.ContainsAny(f.Data, "\r\n") {
		return ErrMultilineData
	}

	var b strings.Builder
	if f.Event != "" && f.Event != DefaultEvent {
		b.WriteString("event: ")
		b.WriteString(f.Event)
		b.WriteString("\n")
	}
	b.WriteString("data: ")
	b.WriteString(f.Data)
	b.WriteString("\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}
