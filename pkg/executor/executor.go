// Package executor invokes registered tools under a hard time budget and
// normalizes every outcome into a non-throwing result record.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcpify/mcpify/pkg/jsruntime"
	"github.com/mcpify/mcpify/pkg/tool"
)

// Result is the normalized outcome of one tool invocation. One instance
// is produced per invocation and never shared.
type Result struct {
	Success         bool        `json:"success"`
	Result          interface{} `json:"result,omitempty"`
	Error           string      `json:"error,omitempty"`
	ToolName        string      `json:"toolName"`
	ExecutionTimeMs int64       `json:"executionTimeMs"`
}

// ToolNotFoundError reports a request to execute an unregistered tool.
// It is a caller-contract violation, rejected before any timing starts.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// Executor runs tools from a registry against their shared execution
// context. It provides call-level argument isolation only: concurrent
// invocations interleave over whatever module-level state the loaded
// module holds, which is an accepted trade-off of the session model.
type Executor struct {
	mu       sync.RWMutex
	registry *tool.Registry
	timeout  time.Duration
	logger   zerolog.Logger
}

// New creates an executor over registry with the given per-invocation
// timeout.
func New(registry *tool.Registry, timeout time.Duration, logger zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
	}
}

// Registry returns the currently bound registry.
func (e *Executor) Registry() *tool.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry
}

// Timeout returns the configured execution timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Swap atomically replaces the bound registry. In-flight invocations
// keep running against the handlers they already resolved.
func (e *Executor) Swap(registry *tool.Registry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry = registry
	e.logger.Info().Int("tools", registry.Count()).Msg("Tool registry swapped")
}

// Execute looks up and runs a tool with a named argument bag. The only
// error it returns is *ToolNotFoundError; every runtime failure mode is
// encoded in the result's Success and Error fields.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}) (Result, error) {
	desc, ok := e.Registry().Get(name)
	if !ok {
		e.logger.Error().Str("tool", name).Msg("Tool not found")
		return Result{}, &ToolNotFoundError{Name: name}
	}

	start := time.Now()
	positional := desc.PositionalArgs(args)

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		value, err := desc.Handler(timeoutCtx, positional)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- value
		}
	}()

	select {
	case value := <-resultChan:
		elapsed := time.Since(start)
		e.logger.Debug().
			Str("tool", name).
			Dur("duration", elapsed).
			Msg("Tool execution completed")
		return Result{
			Success:         true,
			Result:          value,
			ToolName:        name,
			ExecutionTimeMs: elapsed.Milliseconds(),
		}, nil

	case err := <-errChan:
		elapsed := time.Since(start)
		message := err.Error()
		if errors.Is(err, jsruntime.ErrTimeout) {
			message = "Execution timeout"
		}
		e.logger.Error().
			Str("tool", name).
			Dur("duration", elapsed).
			Err(err).
			Msg("Tool execution failed")
		return Result{
			Success:         false,
			Error:           message,
			ToolName:        name,
			ExecutionTimeMs: elapsed.Milliseconds(),
		}, nil

	case <-timeoutCtx.Done():
		// The deadline stops the wait; the context interrupt unwinds the
		// handler shortly after so the session stays usable.
		elapsed := time.Since(start)
		e.logger.Error().
			Str("tool", name).
			Dur("duration", elapsed).
			Msg("Tool execution timeout")
		return Result{
			Success:         false,
			Error:           "Execution timeout",
			ToolName:        name,
			ExecutionTimeMs: elapsed.Milliseconds(),
		}, nil
	}
}
