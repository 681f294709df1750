package assembler

import "strings"

// FenceDelimiter opens and closes a fenced code block.
const FenceDelimiter = "```"

// CountFences counts non-overlapping fence delimiters anywhere in text.
func CountFences(text string) int {
	return strings.Count(text, FenceDelimiter)
}

// FencesBalanced reports whether every opened code fence has been closed.
// Text without fences is balanced.
func FencesBalanced(text string) bool {
	return CountFences(text)%2 == 0
}
