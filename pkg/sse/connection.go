package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync/atomic"
)

// ContentType is the media type of an event stream response.
const ContentType = "text/event-stream"

// IsEventStream reports whether a Content-Type header value declares an
// event stream. Media type parameters such as charset are ignored.
func IsEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == ContentType
}

// Connection consumes one streaming response. The read loop runs while the
// connection is active; Stop, a "stop" frame or an "error" frame clear the
// flag and the loop exits before its next read. An in-flight read is not
// aborted, and bytes buffered at that point are dropped.
type Connection struct {
	active atomic.Bool
}

// NewConnection returns an idle connection.
func NewConnection() *Connection {
	return &Connection{}
}

// Active reports whether the read loop is running.
func (c *Connection) Active() bool {
	return c.active.Load()
}

// Stop asks the read loop to exit at its next suspension point.
func (c *Connection) Stop() {
	c.active.Store(false)
}

// Run decodes resp.Body and dispatches every frame to h in arrival order.
//
// When the response is not an event stream Run returns streamed=false without
// touching the body, leaving the raw response to the caller. Read failures
// are returned once; Run never retries. Run does not close the body.
func (c *Connection) Run(ctx context.Context, resp *http.Response, h Handler) (bool, error) {
	if !IsEventStream(resp.Header.Get("Content-Type")) {
		return false, nil
	}

	c.active.Store(true)
	defer c.active.Store(false)

	dec := NewDecoder(nil)
	chunk := make([]byte, readChunkSize)

	for c.active.Load() {
		if err := ctx.Err(); err != nil {
			return true, err
		}

		n, err := resp.Body.Read(chunk)
		if n > 0 {
			for _, f := range dec.Feed(chunk[:n]) {
				Dispatch(h, f)
				if name := f.Name(); name == EventStop || name == EventError {
					c.Stop()
				}
			}
		}

		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			return true, fmt.Errorf("reading event stream: %w", err)
		}
	}

	return true, nil
}
