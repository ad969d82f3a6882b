package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// sseClient is a push client over a Server-Sent Events response. A single
// writer (the mutex) guarantees per-client emission order.
type sseClient struct {
	id      string
	w       http.ResponseWriter
	flusher http.Flusher

	mu           sync.Mutex
	lastActivity time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func newSSEClient(id string, w http.ResponseWriter, flusher http.Flusher) *sseClient {
	return &sseClient{
		id:           id,
		w:            w,
		flusher:      flusher,
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}
}

func (c *sseClient) ID() string { return c.id }

func (c *sseClient) Send(payload []byte) error {
	return c.write(fmt.Sprintf("data: %s\n\n", payload))
}

// Heartbeat writes a comment-style keepalive line.
func (c *sseClient) Heartbeat() error {
	return c.write(fmt.Sprintf(": heartbeat %d\n\n", time.Now().UnixMilli()))
}

// ack writes the comment-style connection acknowledgment emitted
// immediately on open.
func (c *sseClient) ack() error {
	return c.write(fmt.Sprintf(": connected %s\n\n", c.id))
}

func (c *sseClient) write(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return fmt.Errorf("client %s is closed", c.id)
	default:
	}

	if _, err := fmt.Fprint(c.w, frame); err != nil {
		return err
	}
	c.flusher.Flush()
	c.lastActivity = time.Now()
	return nil
}

// Close marks the client dead. It takes the write mutex so that once it
// returns, no write started before the close is still touching the
// response writer.
func (c *sseClient) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		c.mu.Unlock()
	})
}

func (c *sseClient) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Done is closed when the client has been shut down; the HTTP handler
// blocks on it to keep the response open.
func (c *sseClient) Done() <-chan struct{} {
	return c.done
}
