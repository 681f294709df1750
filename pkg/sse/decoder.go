package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

const readChunkSize = 4096

var (
	lf   = []byte("\n")
	crlf = []byte("\r\n")
)

// Decoder turns a byte stream into Frames. It buffers partial input across
// reads and only yields a frame once its terminating blank line has arrived.
// A Decoder is single use: create one per response body.
type Decoder struct {
	src   io.Reader
	buf   []byte
	chunk []byte

	pending []Frame
	eof     bool
}

// NewDecoder returns a Decoder reading from src. src may be nil when the
// decoder is only driven through Feed.
func NewDecoder(src io.Reader) *Decoder {
	return &Decoder{
		src:   src,
		chunk: make([]byte, readChunkSize),
	}
}

// Feed appends chunk to the buffer and returns every frame completed by it,
// in arrival order. Unterminated trailing data stays buffered.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		newline := lineEnding(d.buf)
		delim := append(append([]byte{}, newline...), newline...)

		end := bytes.Index(d.buf, delim)
		if end < 0 {
			break
		}

		frames = append(frames, parseFrame(string(d.buf[:end]), string(newline)))
		d.buf = d.buf[end+len(delim):]
	}

	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

// Buffered reports how many bytes are waiting for a frame delimiter.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next frame from the source reader. It blocks until a
// complete frame is available and returns nil, nil once the source is
// exhausted. Data left without a delimiter at EOF is discarded.
func (d *Decoder) Next() (*Frame, error) {
	if d.src == nil {
		return nil, errors.New("sse: decoder has no source reader")
	}

	for len(d.pending) == 0 {
		if d.eof {
			return nil, nil
		}

		n, err := d.src.Read(d.chunk)
		if n > 0 {
			d.pending = append(d.pending, d.Feed(d.chunk[:n])...)
		}
		if errors.Is(err, io.EOF) {
			d.eof = true
			d.buf = nil
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	f := d.pending[0]
	d.pending = d.pending[1:]
	return &f, nil
}

// lineEnding picks the terminator for the current extraction pass.
func lineEnding(buf []byte) []byte {
	if bytes.Contains(buf, crlf) {
		return crlf
	}
	return lf
}

func parseFrame(raw, newline string) Frame {
	f := Frame{Event: DefaultEvent}

	for _, line := range strings.Split(strings.TrimSpace(raw), newline) {
		switch {
		case strings.HasPrefix(line, "event:"):
			f.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			f.Data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	return f
}
