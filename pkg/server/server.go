// Package server exposes a reflected tool registry over a JSON-RPC
// method-dispatch endpoint, an SSE push channel, a WebSocket push
// channel and a small REST surface. It owns no domain logic: tool
// execution is delegated to the bound executor.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mcpify/mcpify/internal/audit"
	"github.com/mcpify/mcpify/internal/metrics"
	"github.com/mcpify/mcpify/pkg/executor"
	"github.com/mcpify/mcpify/pkg/tool"
)

const protocolVersion = "2024-11-05"

// State is the server lifecycle phase.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StateStopped
)

// ErrNotReady is returned by operations that require a bound executor.
var ErrNotReady = errors.New("server has no executor bound")

// ReloadFunc re-reflects the module and returns the replacement
// registry. Used by the hot-reload watcher.
type ReloadFunc func() (*tool.Registry, error)

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	Name              string
	Version           string
	Description       string
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
	SweepSchedule     string
	HandshakeDelay    time.Duration
	ModulePath        string
	Reload            ReloadFunc
	Audit             *audit.Store
	Metrics           *metrics.Metrics
	Logger            zerolog.Logger
}

// Server maps protocol requests onto the tool registry and fans
// execution results out to subscribed push clients.
type Server struct {
	host              string
	port              int
	name              string
	version           string
	description       string
	heartbeatInterval time.Duration
	staleAfter        time.Duration
	sweepSchedule     string
	handshakeDelay    time.Duration
	modulePath        string
	reload            ReloadFunc

	exec        *executor.Executor
	methods     map[string]methodHandler
	clients     *ClientRegistry
	broadcaster *Broadcaster
	auditStore  *audit.Store
	metrics     *metrics.Metrics

	httpServer *http.Server
	upgrader   websocket.Upgrader
	sweeper    *cron.Cron
	watcher    *ModuleWatcher
	tickCancel context.CancelFunc
	tickWG     sync.WaitGroup

	mu     sync.RWMutex
	state  State
	logger zerolog.Logger
}

// New creates a server in the Uninitialized state.
func New(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Name == "" {
		cfg.Name = "mcpify"
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 1m"
	}
	if cfg.HandshakeDelay <= 0 {
		cfg.HandshakeDelay = 100 * time.Millisecond
	}

	clients := NewClientRegistry()

	return &Server{
		host:              cfg.Host,
		port:              cfg.Port,
		name:              cfg.Name,
		version:           cfg.Version,
		description:       cfg.Description,
		heartbeatInterval: cfg.HeartbeatInterval,
		staleAfter:        cfg.StaleAfter,
		sweepSchedule:     cfg.SweepSchedule,
		handshakeDelay:    cfg.HandshakeDelay,
		modulePath:        cfg.ModulePath,
		reload:            cfg.Reload,
		clients:           clients,
		broadcaster:       NewBroadcaster(clients, cfg.Logger),
		auditStore:        cfg.Audit,
		metrics:           cfg.Metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		state:  StateUninitialized,
		logger: cfg.Logger,
	}, nil
}

// State returns the current lifecycle phase.
func (s *Server) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Bind attaches the executor and installs the dispatch table, moving
// the server to Ready.
func (s *Server) Bind(exec *executor.Executor) error {
	if exec == nil {
		return fmt.Errorf("executor is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return fmt.Errorf("bind requires an uninitialized server")
	}

	s.exec = exec
	s.installMethods()
	s.state = StateReady
	return nil
}

// Start binds the listener and starts the maintenance timers. Fails
// fast unless the server is Ready; a bind failure leaves it Ready so a
// corrected configuration can start it again.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		if state == StateUninitialized {
			return ErrNotReady
		}
		return fmt.Errorf("server cannot start from state %d", state)
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}

	s.logger.Info().
		Str("addr", addr).
		Int("tools", s.exec.Registry().Count()).
		Msg("Starting protocol server")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Protocol server error")
		}
	}()

	s.startHeartbeat()
	s.startSweeper()
	s.startWatcher()

	return nil
}

// Stop closes the listener, force-closes all push clients and cancels
// the maintenance timers.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	s.state = StateStopped
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping protocol server")

	if s.watcher != nil {
		_ = s.watcher.Stop()
	}
	s.stopHeartbeat()
	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	for _, client := range s.clients.All() {
		client.Close()
		s.clients.Remove(client.ID())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Protocol server stopped")
	return nil
}

// Clients returns the current push-client count.
func (s *Server) Clients() int {
	return s.clients.Count()
}

// BaseURL returns the address protocol clients should use.
func (s *Server) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.host, s.port)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Post("/jsonrpc", s.handleJSONRPC)
	r.Get("/sse", s.handleSSE)
	r.Get("/ws", s.handleWS)
	r.Get("/tools", s.handleTools)
	r.Post("/execute", s.handleExecute)
	r.Get("/config", s.handleConfig)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

// callTool runs one tool through the executor, records the invocation
// and fans the result out to push clients.
func (s *Server) callTool(name string, args map[string]interface{}) (executor.Result, error) {
	result, err := s.exec.Execute(context.Background(), name, args)
	if err != nil {
		return executor.Result{}, err
	}

	if s.metrics != nil {
		status := "success"
		if !result.Success {
			status = "error"
			if result.Error == "Execution timeout" {
				status = "timeout"
			}
		}
		s.metrics.RecordToolExecution(name, status, time.Duration(result.ExecutionTimeMs)*time.Millisecond)
	}

	s.broadcastToolResult(name, args, result)

	if s.auditStore != nil {
		go s.auditStore.Record(result, args)
	}

	return result, nil
}

func (s *Server) startHeartbeat() {
	ctx, cancel := context.WithCancel(context.Background())
	s.tickCancel = cancel
	s.tickWG.Add(1)

	go func() {
		defer s.tickWG.Done()

		ticker := time.NewTicker(s.heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, client := range s.clients.All() {
					if err := client.Heartbeat(); err != nil {
						s.logger.Warn().
							Err(err).
							Str("clientId", client.ID()).
							Msg("Heartbeat failed, removing client")
						client.Close()
						s.clients.Remove(client.ID())
					}
				}
			}
		}
	}()
}

func (s *Server) stopHeartbeat() {
	if s.tickCancel != nil {
		s.tickCancel()
		s.tickCancel = nil
	}
	s.tickWG.Wait()
}

func (s *Server) startSweeper() {
	s.sweeper = cron.New()
	_, err := s.sweeper.AddFunc(s.sweepSchedule, func() {
		evicted := s.clients.EvictStale(s.staleAfter)
		if len(evicted) > 0 {
			s.logger.Info().
				Strs("clients", evicted).
				Dur("staleAfter", s.staleAfter).
				Msg("Evicted stale push clients")
		}
	})
	if err != nil {
		s.logger.Error().Err(err).Str("schedule", s.sweepSchedule).Msg("Failed to schedule staleness sweep")
		return
	}
	s.sweeper.Start()
}

func (s *Server) startWatcher() {
	if s.reload == nil || s.modulePath == "" {
		return
	}

	watcher, err := NewModuleWatcher(s.modulePath, 200*time.Millisecond, func() {
		registry, err := s.reload()
		if err != nil {
			// A bad edit never tears down the running session.
			s.logger.Error().Err(err).Msg("Module reload failed, keeping previous session")
			if s.metrics != nil {
				s.metrics.RecordReload("failure")
			}
			return
		}
		s.exec.Swap(registry)
		if s.metrics != nil {
			s.metrics.RecordReload("success")
		}
		s.broadcaster.Notify("notifications/tools_changed", map[string]interface{}{
			"tools": registry.List(),
		})
		s.logger.Info().Int("tools", registry.Count()).Msg("Module reloaded")
	}, s.logger)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create module watcher")
		return
	}
	if err := watcher.Start(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to start module watcher")
		return
	}
	s.watcher = watcher
}
