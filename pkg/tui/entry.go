package tui

import (
	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/storage"
)

// Entry is a restored transcript line. Text is display-ready.
type Entry struct {
	Role storage.Role
	Text string
}

func (e Entry) line() line {
	switch e.Role {
	case storage.RoleUser:
		return line{speaker: speakerUser, text: e.Text, complete: true}
	case storage.RoleError:
		return line{speaker: speakerError, text: e.Text, complete: true}
	default:
		return line{speaker: speakerBot, text: e.Text, complete: true}
	}
}

// Entries converts replay log entries for display, rendering bot markdown
// with conv.
func Entries(entries []storage.Entry, conv assembler.Converter) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		text := e.Message
		if e.Role == storage.RoleBot && conv != nil {
			if rendered, err := conv.Convert(e.Message); err == nil {
				text = rendered
			}
		}
		out = append(out, Entry{Role: e.Role, Text: text})
	}
	return out
}
