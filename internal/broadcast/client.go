package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client wraps one connected websocket with its own write lock, so writes
// to one connection are serialized without holding the Hub's lock. Hub.Publish
// writes to a channel's subscribers one after another, so a stalled write to
// one connection delays the subscribers after it.
type Client struct {
	ID   uuid.UUID
	conn *websocket.Conn
	mu   sync.Mutex
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.New(), conn: conn}
}

// WriteText sends a text frame, typically a JSON envelope.
func (c *Client) WriteText(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// WriteBinary sends a binary frame, typically an encoded wire.WsMessage.
func (c *Client) WriteBinary(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, payload)
}

// WritePing sends a heartbeat ping, taking the same write lock as the send
// path so it never interleaves with a text or binary frame.
func (c *Client) WritePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
