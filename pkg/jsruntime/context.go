// Package jsruntime provides the isolated execution environment a loaded
// JavaScript module runs in. One Context is created per session; every
// reflected handler is only valid against the Context it came from.
package jsruntime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrTimeout is returned when an invocation is cut off by its deadline.
var ErrTimeout = errors.New("Execution timeout")

// ErrPending is returned when a callable produced a promise that cannot
// settle without external async sources (timers, I/O), which the context
// deliberately does not provide.
var ErrPending = errors.New("asynchronous result never settled")

// Context is an isolated JavaScript execution environment. It seeds a
// minimal set of host capabilities: console output bridged to the logger,
// a require function restricted to relative imports, and read-only
// environment metadata.
//
// The underlying runtime is not safe for concurrent use, so all entry
// points serialize on an internal mutex. Interleaving therefore happens
// only between invocations, never inside one; module-level state is
// shared by all invocations within the session.
type Context struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	id      string
	dir     string
	modules map[string]goja.Value
	dirs    []string
	logger  zerolog.Logger
}

// New creates a Context rooted at dir, the directory relative imports
// resolve against.
func New(dir string, logger zerolog.Logger) *Context {
	c := &Context{
		vm:      goja.New(),
		id:      uuid.NewString(),
		dir:     dir,
		modules: make(map[string]goja.Value),
		dirs:    []string{dir},
		logger:  logger,
	}
	c.seedConsole()
	c.seedEnv()
	c.vm.Set("require", c.require)
	return c
}

// ID returns the session identifier of this context.
func (c *Context) ID() string { return c.id }

// Dir returns the module root directory.
func (c *Context) Dir() string { return c.dir }

func (c *Context) seedConsole() {
	console := c.vm.NewObject()
	emit := func(level zerolog.Level) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			c.logger.WithLevel(level).Str("source", "module").Msg(strings.Join(parts, " "))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", emit(zerolog.InfoLevel))
	_ = console.Set("info", emit(zerolog.InfoLevel))
	_ = console.Set("warn", emit(zerolog.WarnLevel))
	_ = console.Set("error", emit(zerolog.ErrorLevel))
	_ = console.Set("debug", emit(zerolog.DebugLevel))
	c.vm.Set("console", console)
}

// seedEnv exposes read-only environment metadata. The object is frozen
// so module code cannot mutate or extend it.
func (c *Context) seedEnv() {
	env := c.vm.NewObject()
	for key, value := range map[string]string{
		"platform":  runtime.GOOS,
		"arch":      runtime.GOARCH,
		"moduleDir": c.dir,
		"host":      "mcpify",
	} {
		_ = env.DefineDataProperty(key, c.vm.ToValue(value), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	c.vm.Set("env", env)
	_, _ = c.vm.RunString("Object.freeze(env)")
}

// require resolves relative imports against the requiring module's own
// directory. Absolute paths and bare package specifiers are rejected.
func (c *Context) require(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		panic(c.vm.ToValue("require: missing module specifier"))
	}
	spec := call.Arguments[0].String()
	if !isRelative(spec) {
		panic(c.vm.ToValue(fmt.Sprintf("require: only relative imports are permitted, got %q", spec)))
	}

	base := c.dirs[len(c.dirs)-1]
	path := filepath.Clean(filepath.Join(base, spec))
	if filepath.Ext(path) == "" {
		path += ".js"
	}

	if cached, ok := c.modules[path]; ok {
		return cached
	}

	exports, err := c.loadFile(path)
	if err != nil {
		panic(c.vm.ToValue(fmt.Sprintf("require: %v", err)))
	}
	c.modules[path] = exports
	return exports
}

func isRelative(spec string) bool {
	return len(spec) >= 2 && (spec[:2] == "./" || (len(spec) >= 3 && spec[:3] == "../"))
}

// loadFile runs a module file in CommonJS style and returns its exports.
// The caller must hold the context mutex (or be within a held section, as
// nested requires are).
func (c *Context) loadFile(path string) (goja.Value, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}

	wrapped := "(function(module, exports, require) {\n" + string(code) + "\n})"
	prog, err := goja.Compile(path, wrapped, false)
	if err != nil {
		return nil, fmt.Errorf("parse module: %w", err)
	}

	wrapper, err := c.vm.RunProgram(prog)
	if err != nil {
		return nil, translateErr(err)
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, fmt.Errorf("module wrapper is not callable")
	}

	module := c.vm.NewObject()
	exports := c.vm.NewObject()
	_ = module.Set("exports", exports)

	c.dirs = append(c.dirs, filepath.Dir(path))
	_, err = fn(goja.Undefined(), module, exports, c.vm.Get("require"))
	c.dirs = c.dirs[:len(c.dirs)-1]
	if err != nil {
		return nil, translateErr(err)
	}

	return module.Get("exports"), nil
}

// Load runs the top-level module at path and returns its exported value.
// The load itself is a bounded execution: when ctx expires the runtime is
// interrupted and the partial load is discarded.
func (c *Context) Load(ctx context.Context, path string) (goja.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := c.watchInterrupt(ctx)
	defer stop()

	exports, err := c.loadFile(path)
	if err != nil {
		return nil, err
	}
	abs, absErr := filepath.Abs(path)
	if absErr == nil {
		c.modules[abs] = exports
	}
	return exports, nil
}

// Call invokes fn with the given positional arguments under the deadline
// carried by ctx. The result is the exported Go value; settled promises
// are unwrapped, pending ones fail with ErrPending.
func (c *Context) Call(ctx context.Context, fn goja.Callable, args []interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := c.watchInterrupt(ctx)
	defer stop()

	values := make([]goja.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			// Missing arguments become undefined so JS default
			// parameter values still apply.
			values[i] = goja.Undefined()
			continue
		}
		values[i] = c.vm.ToValue(arg)
	}

	res, err := fn(goja.Undefined(), values...)
	if err != nil {
		return nil, translateErr(err)
	}

	exported := res.Export()
	if promise, ok := exported.(*goja.Promise); ok {
		switch promise.State() {
		case goja.PromiseStateFulfilled:
			return promise.Result().Export(), nil
		case goja.PromiseStateRejected:
			return nil, errors.New(exceptionMessage(promise.Result()))
		default:
			return nil, ErrPending
		}
	}
	return exported, nil
}

// Inspect gives fn synchronous access to the underlying runtime. Used by
// reflection during the load phase; must not run concurrently with Call.
func (c *Context) Inspect(fn func(vm *goja.Runtime)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.vm)
}

// watchInterrupt arms an interrupt that fires when ctx is cancelled and
// returns a stop function that disarms it and clears any pending
// interrupt from the runtime. stop waits for the watcher goroutine to
// finish first: if ClearInterrupt could run before a concurrent
// Interrupt, the stale interrupt would poison the next invocation on
// this session.
func (c *Context) watchInterrupt(ctx context.Context) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		select {
		case <-ctx.Done():
			c.vm.Interrupt(ErrTimeout)
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-finished
		c.vm.ClearInterrupt()
	}
}

// translateErr maps goja error values onto the context's error taxonomy.
func translateErr(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrTimeout
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return errors.New(exceptionMessage(exception.Value()))
	}
	return err
}

// exceptionMessage extracts the message of a thrown JS value, preferring
// the Error object's message property over its full string form.
func exceptionMessage(v goja.Value) string {
	if v == nil {
		return "unknown error"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return v.String()
}

// Deadline is a convenience for building a bounded context from a
// millisecond budget.
func Deadline(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
