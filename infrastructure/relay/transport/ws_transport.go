package transport

import (
	"context"
	"io"

	"github.com/coder/websocket"
)

// WSTransport is an application/relay.Transport backed by
// github.com/coder/websocket. Unlike the stream-oriented net.Conn
// adapter elsewhere in this codebase, each ReadFrame/WriteFrame call
// corresponds to exactly one websocket message, matching the one-frame-
// per-RequestMessage/ResponseMessage contract the relay wire format
// assumes.
type WSTransport struct {
	conn *websocket.Conn
}

// NewWSTransport wraps an already-established websocket connection.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	return &WSTransport{conn: conn}
}

// ReadFrame blocks for one websocket message. Non-binary message types are
// discarded and the read retried, matching the "text/control frames other
// than close are ignored" wire contract.
func (t *WSTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			return nil, mapCloseErr(err)
		}
		if typ != websocket.MessageBinary {
			continue
		}
		return data, nil
	}
}

// WriteFrame writes one binary websocket message.
func (t *WSTransport) WriteFrame(ctx context.Context, frame []byte) error {
	if err := t.conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		return mapCloseErr(err)
	}
	return nil
}

func (t *WSTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}

func mapCloseErr(err error) error {
	if err == nil {
		return nil
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return io.EOF
	}
	return err
}
