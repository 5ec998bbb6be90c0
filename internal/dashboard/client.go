package dashboard

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client wraps a websocket connection. Sends are serialized by a mutex
// because both the hub loop and the client's own read handler write to the
// connection.
type Client struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	log          *slog.Logger
	writeTimeout time.Duration
	closed       bool
}

// NewClient constructs a client wrapper.
func NewClient(conn *websocket.Conn, logger *slog.Logger, writeTimeout time.Duration) *Client {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Client{conn: conn, log: logger, writeTimeout: writeTimeout}
}

// Send writes a text message under the write deadline. A failed or timed-out
// write closes the connection and reports the error so the hub can
// deregister the client.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if c.log != nil {
			c.log.Warn("websocket send failed", "error", err)
		}
		c.closed = true
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	_ = c.conn.Close()
}
