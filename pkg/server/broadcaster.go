package server

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Notification is a server-initiated protocol message: a method and
// params, never an id.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Broadcaster fans notifications out to every connected push client.
// Each client is written independently: one broken subscriber is removed
// without affecting the rest, and no ordering is guaranteed across
// clients for the same event.
type Broadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
}

// NewBroadcaster creates a broadcaster over the given client table.
func NewBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Notify broadcasts one notification to all connected clients,
// fire-and-forget.
func (b *Broadcaster) Notify(method string, params interface{}) {
	payload, err := json.Marshal(Notification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		b.logger.Error().Err(err).Str("method", method).Msg("Failed to marshal notification")
		return
	}

	clients := b.clients.All()
	if len(clients) == 0 {
		return
	}

	sent := 0
	for _, client := range clients {
		if err := client.Send(payload); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID()).
				Str("method", method).
				Msg("Failed to notify client, removing")
			client.Close()
			b.clients.Remove(client.ID())
			continue
		}
		sent++
	}

	b.logger.Debug().
		Str("method", method).
		Int("sent", sent).
		Int("total", len(clients)).
		Msg("Notification broadcast complete")
}

// NotifyClient sends one notification to a single client, removing it on
// failure.
func (b *Broadcaster) NotifyClient(client PushClient, method string, params interface{}) {
	payload, err := json.Marshal(Notification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		b.logger.Error().Err(err).Str("method", method).Msg("Failed to marshal notification")
		return
	}

	if err := client.Send(payload); err != nil {
		b.logger.Warn().
			Err(err).
			Str("clientId", client.ID()).
			Str("method", method).
			Msg("Failed to notify client, removing")
		client.Close()
		b.clients.Remove(client.ID())
	}
}
