package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/serenity"
	"github.com/papercomputeco/serenity/pkg/sse"
)

// maxPlainBody caps a non-streamed execute response.
const maxPlainBody = 1 << 20

// turnFailure ends a turn with a TurnError after the stream is consumed.
type turnFailure struct {
	message string
	cause   error
}

// turn handles the frames of one execute response. It owns the pending
// message; nothing outside the turn sees it before an update is emitted.
type turn struct {
	s    *Session
	conn *sse.Connection

	pending  assembler.Turn
	finished bool
}

func newTurn(s *Session) *turn {
	return &turn{s: s, conn: sse.NewConnection()}
}

func (t *turn) run(ctx context.Context, resp *http.Response) *turnFailure {
	streamed, err := t.conn.Run(ctx, resp, t)
	if !streamed {
		return t.plain(resp.Body)
	}

	switch {
	case err != nil:
		t.pending = assembler.Turn{}
		return &turnFailure{message: SendErrorMessage, cause: &serenity.TransportError{Op: "reading event stream", Err: err}}
	case !t.finished:
		t.s.logger.Warn("event stream ended mid-turn", "buffered_text", len(t.pending.Raw))
		t.pending = assembler.Turn{}
		return &turnFailure{message: IncompleteTurnMessage, cause: ErrIncompleteTurn}
	}
	return nil
}

func (t *turn) OnStart(sse.Frame) {
	t.s.emit(Notification{Kind: TurnStarted})
}

func (t *turn) OnContent(f sse.Frame) {
	p, err := serenity.DecodeContent(f.Data)
	if err != nil {
		t.protocolError(err, true)
		return
	}

	pending, upd, err := t.s.asm.Delta(t.pending, p.Text)
	t.pending = pending
	if err != nil {
		t.protocolError(err, true)
		return
	}
	if upd == nil {
		return
	}

	t.s.emit(Notification{Kind: TurnUpdate, Rendered: upd.Rendered, Raw: upd.Raw})
}

func (t *turn) OnStop(f sse.Frame) {
	p, err := serenity.DecodeStop(f.Data)
	if err != nil {
		t.s.logger.Warn("finalizing turn without result", "error", err)
	}

	upd, err := t.s.asm.Finalize(t.pending, p.Result)
	t.pending = assembler.Turn{}
	t.finished = true
	if err != nil {
		t.protocolError(err, false)
		return
	}

	t.s.emit(Notification{
		Kind:       TurnUpdate,
		Rendered:   upd.Rendered,
		Raw:        upd.Raw,
		IsComplete: true,
		Result:     upd.Result,
	})
}

func (t *turn) OnError(f sse.Frame) {
	message := f.Data
	if p, err := serenity.DecodeError(f.Data); err == nil && p.Message != "" {
		message = p.Message
	}

	t.pending = assembler.Turn{}
	t.finished = true

	t.s.setState(StateError)
	t.s.emit(Notification{Kind: TurnError, Message: message, Err: &AgentError{Message: message}})
}

func (t *turn) OnMessage(f sse.Frame) {
	t.s.logger.Debug("ignoring untyped frame", "data", f.Data)
}

// protocolError reports a frame that could not be used. A recoverable error
// leaves the turn open for the frames that follow it.
func (t *turn) protocolError(err error, recoverable bool) {
	var protocol *serenity.ProtocolError
	if !errors.As(err, &protocol) {
		err = &serenity.ProtocolError{Err: err}
	}
	t.s.emit(Notification{Kind: TurnError, Message: err.Error(), Err: err, Recoverable: recoverable})
}

// plain completes a turn from a response that was not an event stream. The
// agent API answers some executions with a single JSON document holding the
// whole message.
func (t *turn) plain(body io.Reader) *turnFailure {
	raw, err := io.ReadAll(io.LimitReader(body, maxPlainBody))
	if err != nil {
		return &turnFailure{message: SendErrorMessage, cause: &serenity.TransportError{Op: "reading response", Err: err}}
	}

	var doc struct {
		Content *string `json:"content"`
		serenity.Result
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Content == nil {
		if err == nil {
			err = errors.New("response has no content")
		}
		return &turnFailure{message: SendErrorMessage, cause: &serenity.ProtocolError{Data: string(raw), Err: err}}
	}

	result := doc.Result
	upd, err := t.s.asm.Finalize(assembler.Turn{Raw: *doc.Content}, &result)
	if err != nil {
		return &turnFailure{message: SendErrorMessage, cause: err}
	}

	t.s.emit(Notification{Kind: TurnStarted})
	t.s.emit(Notification{
		Kind:       TurnUpdate,
		Rendered:   upd.Rendered,
		Raw:        upd.Raw,
		IsComplete: true,
		Result:     upd.Result,
	})
	return nil
}
