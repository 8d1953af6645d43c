package conn

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is one established websocket connection.
type Conn interface {
	// Read returns the next text frame. Control frames (ping/pong) are
	// answered inside Read and never surface.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Transport dials connections. Production uses WSTransport; tests swap
// in fakes.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Batch frames on the all-market streams run well past the library's
// 32KiB default read limit.
const readLimit = 1 << 24

// WSTransport dials real websocket connections.
type WSTransport struct{}

func (WSTransport) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(readLimit)
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	for {
		msgType, data, err := w.c.Read(ctx)
		if err != nil {
			return nil, err
		}
		if msgType != websocket.MessageText {
			continue
		}
		return data, nil
	}
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "shutdown")
}
