// Package assembler turns the text deltas of a streamed turn into display
// updates.
//
// The accumulated markdown is re-rendered in full on every delta, since a
// later delta can change how earlier text is read. While the text holds an
// odd number of ``` delimiters a code fence is open and no partial update is
// produced. Finalize always renders.
//
// A turn is a plain value: callers thread it through Delta and start the
// next turn from the zero Turn, so no state leaks between turns or sessions.
package assembler
