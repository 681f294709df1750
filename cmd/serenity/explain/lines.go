package explaincmder

import (
	"fmt"
	"strconv"
	"strings"
)

// lineRange is a 1-based inclusive line selection. Zero bounds are open.
type lineRange struct {
	start int
	end   int
}

// parseLines parses "a:b", "a:" or ":b".
func parseLines(arg string) (lineRange, error) {
	if arg == "" {
		return lineRange{}, nil
	}

	from, to, ok := strings.Cut(arg, ":")
	if !ok {
		return lineRange{}, fmt.Errorf("invalid line range %q, expected start:end", arg)
	}

	var r lineRange
	var err error
	if from != "" {
		if r.start, err = strconv.Atoi(from); err != nil || r.start < 1 {
			return lineRange{}, fmt.Errorf("invalid start line %q", from)
		}
	}
	if to != "" {
		if r.end, err = strconv.Atoi(to); err != nil || r.end < 1 {
			return lineRange{}, fmt.Errorf("invalid end line %q", to)
		}
	}
	if r.start > 0 && r.end > 0 && r.start > r.end {
		return lineRange{}, fmt.Errorf("line range %q ends before it starts", arg)
	}

	return r, nil
}

// apply returns the selected lines of text.
func (r lineRange) apply(text string) (string, error) {
	if r.start == 0 && r.end == 0 {
		return text, nil
	}

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	start, end := max(r.start, 1), r.end
	if end == 0 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return "", fmt.Errorf("start line %d is past the end (%d lines)", start, len(lines))
	}

	return strings.Join(lines[start-1:end], "\n"), nil
}
