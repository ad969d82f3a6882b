package server

import (
	"sync"
	"time"
)

// PushClient is one long-lived subscriber on the push channel. Both the
// SSE and the WebSocket transports implement it; the broadcaster treats
// them uniformly.
type PushClient interface {
	ID() string
	// Send delivers one serialized notification. A failed send marks the
	// client broken; the caller removes it from the table.
	Send(payload []byte) error
	// Heartbeat emits a keepalive on the transport.
	Heartbeat() error
	// Close shuts the transport down. Safe to call more than once; the
	// underlying close happens exactly once.
	Close()
	LastActivity() time.Time
}

// ClientRegistry is the push-client table. It is mutated only by the
// server's own event handlers: connect, disconnect, write failure and
// the maintenance sweep.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]PushClient
}

// NewClientRegistry creates an empty client table.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]PushClient),
	}
}

// Add inserts a client.
func (r *ClientRegistry) Add(client PushClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ID()] = client
}

// Remove deletes a client by id.
func (r *ClientRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}

// All returns a snapshot of the current clients.
func (r *ClientRegistry) All() []PushClient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PushClient, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// EvictStale closes and removes every client whose last activity is
// older than staleAfter. Returns the evicted ids.
func (r *ClientRegistry) EvictStale(staleAfter time.Duration) []string {
	cutoff := time.Now().Add(-staleAfter)

	var stale []PushClient
	r.mu.RLock()
	for _, c := range r.clients {
		if c.LastActivity().Before(cutoff) {
			stale = append(stale, c)
		}
	}
	r.mu.RUnlock()

	evicted := make([]string, 0, len(stale))
	for _, c := range stale {
		c.Close()
		r.Remove(c.ID())
		evicted = append(evicted, c.ID())
	}
	return evicted
}
