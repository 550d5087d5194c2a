package syncext

import (
	"context"

	"nhooyr.io/websocket"
)

// ByteConn is the bidirectional byte transport spec.md §4.9 frames
// messages over ("e.g., WebSocket"). Session is written against this
// interface, not *websocket.Conn directly, so tests can drive the
// protocol over an in-memory pipe instead of a real socket.
type ByteConn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// wsConn adapts *websocket.Conn to ByteConn, framing every message as a
// single binary websocket message.
type wsConn struct {
	c *websocket.Conn
}

// NewWebSocketConn wraps an established websocket connection (client- or
// server-side) as a ByteConn.
func NewWebSocketConn(c *websocket.Conn) ByteConn {
	return wsConn{c: c}
}

func (w wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageBinary, data)
}

func (w wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
