package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/mcpify/mcpify/pkg/executor"
)

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusOK, &rpcResponse{
			JSONRPC: "2.0",
			ID:      json.RawMessage("null"),
			Error:   &rpcError{Code: codeParseError, Message: "Parse error", Data: err.Error()},
		})
		return
	}
	if req.Method == "" {
		writeJSON(w, http.StatusOK, &rpcResponse{
			JSONRPC: "2.0",
			ID:      json.RawMessage("null"),
			Error:   &rpcError{Code: codeInvalidRequest, Message: "Invalid request: missing method field"},
		})
		return
	}

	s.logger.Debug().
		Str("method", req.Method).
		Msg("Dispatching protocol request")

	writeJSON(w, http.StatusOK, s.dispatch(&req))
}

// handleSSE opens the push channel: connection ack immediately, then the
// staged handshake, then the client stays subscribed until it
// disconnects, errors out or is evicted as stale.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id, _ := gonanoid.New()
	client := newSSEClient(id, w, flusher)

	if err := client.ack(); err != nil {
		s.logger.Error().Err(err).Str("clientId", id).Msg("Failed to ack SSE client")
		return
	}

	s.clients.Add(client)
	if s.metrics != nil {
		s.metrics.ClientConnected()
	}
	s.logger.Info().Str("clientId", id).Str("ip", r.RemoteAddr).Msg("Push client connected")

	// Staged handshake: consumers may not be ready for a burst the
	// instant the channel opens.
	go func() {
		select {
		case <-client.Done():
			return
		case <-time.After(s.handshakeDelay):
		}
		s.broadcaster.NotifyClient(client, "notifications/initialized", map[string]interface{}{})

		select {
		case <-client.Done():
			return
		case <-time.After(s.handshakeDelay):
		}
		s.broadcaster.NotifyClient(client, "notifications/tools_changed", map[string]interface{}{
			"tools": s.exec.Registry().List(),
		})
	}()

	select {
	case <-r.Context().Done():
	case <-client.Done():
	}

	client.Close()
	s.clients.Remove(id)
	if s.metrics != nil {
		s.metrics.ClientDisconnected()
	}
	s.logger.Info().Str("clientId", id).Msg("Push client disconnected")
}

// handleWS serves the supplemental WebSocket push transport. It carries
// the same handshake and broadcast payloads as SSE.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	id, _ := gonanoid.New()
	client := newWSClient(id, conn)
	conn.SetPongHandler(func(string) error {
		client.touch()
		return nil
	})

	s.clients.Add(client)
	if s.metrics != nil {
		s.metrics.ClientConnected()
	}
	s.logger.Info().Str("clientId", id).Str("ip", r.RemoteAddr).Msg("Push client connected")

	go func() {
		time.Sleep(s.handshakeDelay)
		s.broadcaster.NotifyClient(client, "notifications/initialized", map[string]interface{}{})
		time.Sleep(s.handshakeDelay)
		s.broadcaster.NotifyClient(client, "notifications/tools_changed", map[string]interface{}{
			"tools": s.exec.Registry().List(),
		})
	}()

	// Inbound messages are only read to track liveness; the push channel
	// is one-way.
	go func() {
		defer func() {
			client.Close()
			s.clients.Remove(id)
			if s.metrics != nil {
				s.metrics.ClientDisconnected()
			}
			s.logger.Info().Str("clientId", id).Msg("Push client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			client.touch()
		}
	}()
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": s.exec.Registry().List(),
	})
}

type executeRequest struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Arguments == nil {
		req.Arguments = map[string]interface{}{}
	}

	result, err := s.callTool(req.Name, req.Arguments)
	if err != nil {
		var notFound *executor.ToolNotFoundError
		if errors.As(err, &notFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ConfigDocument())
}

// handleHealth always succeeds, reporting the live tool names and the
// current push-client count.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]interface{}{
		"status":  "ok",
		"tools":   s.exec.Registry().Names(),
		"clients": s.clients.Count(),
	}
	if s.auditStore != nil {
		if count, err := s.auditStore.Count(); err == nil {
			payload["executions"] = count
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
