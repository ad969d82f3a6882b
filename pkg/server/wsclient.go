package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsClient is a push client over a WebSocket connection. Supplemental
// transport next to SSE; it receives the same broadcast payloads.
type wsClient struct {
	id   string
	conn *websocket.Conn

	mu           sync.Mutex
	lastActivity time.Time

	closeOnce sync.Once
}

func newWSClient(id string, conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:           id,
		conn:         conn,
		lastActivity: time.Now(),
	}
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	c.lastActivity = time.Now()
	return nil
}

func (c *wsClient) Heartbeat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
		return err
	}
	c.lastActivity = time.Now()
	return nil
}

func (c *wsClient) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

func (c *wsClient) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// touch records inbound activity (pongs, reads) against staleness.
func (c *wsClient) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}
