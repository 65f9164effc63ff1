package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// defaultWriteTimeout bounds a single frame write when the caller's context
// carries no deadline, so one unresponsive peer cannot stall a broadcast.
const defaultWriteTimeout = 5 * time.Second

// wsConn adapts a gorilla websocket connection to the registry's Conn
// interface. Gorilla permits at most one concurrent writer, so every write
// goes through the mutex; reads stay on the handler goroutine and are not
// guarded here.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

// Send writes one text frame, honoring the context deadline if present.
func (c *wsConn) Send(ctx context.Context, payload []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame with the given status code and reason, then tears
// down the underlying socket. The close frame is best-effort; the socket is
// closed either way.
func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(defaultWriteTimeout))
	return c.conn.Close()
}
