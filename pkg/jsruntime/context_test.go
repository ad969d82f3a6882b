package jsruntime

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, dir, name, code string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(code), 0644))
	return path
}

func loadModule(t *testing.T, code string) (*Context, goja.Value) {
	t.Helper()
	dir := t.TempDir()
	path := writeModule(t, dir, "mod.js", code)

	ctx := New(dir, zerolog.Nop())
	loadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exports, err := ctx.Load(loadCtx, path)
	require.NoError(t, err)
	return ctx, exports
}

func exportedFunc(t *testing.T, ctx *Context, exports goja.Value, key string) goja.Callable {
	t.Helper()
	var fn goja.Callable
	ctx.Inspect(func(vm *goja.Runtime) {
		member := exports.ToObject(vm).Get(key)
		callable, ok := goja.AssertFunction(member)
		require.True(t, ok, "export %s is not callable", key)
		fn = callable
	})
	return fn
}

func TestLoad_ExportsValue(t *testing.T) {
	_, exports := loadModule(t, `module.exports = { answer: 42 };`)
	assert.NotNil(t, exports)
}

func TestLoad_MissingFile(t *testing.T) {
	ctx := New(t.TempDir(), zerolog.Nop())
	_, err := ctx.Load(context.Background(), filepath.Join(t.TempDir(), "nope.js"))
	require.Error(t, err)
}

func TestLoad_SyntaxError(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "broken.js", `function (((`)

	ctx := New(dir, zerolog.Nop())
	_, err := ctx.Load(context.Background(), path)
	require.Error(t, err)
}

func TestLoad_TimeoutInterruptsRuntime(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "spin.js", `while (true) {}`)

	ctx := New(dir, zerolog.Nop())
	loadCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := ctx.Load(loadCtx, path)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestCall_ReturnsExportedValue(t *testing.T) {
	ctx, exports := loadModule(t, `module.exports = { double: (x) => x * 2 };`)
	fn := exportedFunc(t, ctx, exports, "double")

	result, err := ctx.Call(context.Background(), fn, []interface{}{21})
	require.NoError(t, err)
	assert.EqualValues(t, 42, result)
}

func TestCall_MissingArgsAreUndefined(t *testing.T) {
	ctx, exports := loadModule(t, `module.exports = { area: (radius = 1) => radius * radius };`)
	fn := exportedFunc(t, ctx, exports, "area")

	result, err := ctx.Call(context.Background(), fn, []interface{}{nil})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result)
}

func TestCall_ThrownErrorBecomesMessage(t *testing.T) {
	ctx, exports := loadModule(t, `module.exports = { boom: () => { throw new Error("kaboom"); } };`)
	fn := exportedFunc(t, ctx, exports, "boom")

	_, err := ctx.Call(context.Background(), fn, nil)
	require.Error(t, err)
	assert.Equal(t, "kaboom", err.Error())
}

func TestCall_TimeoutLeavesSessionUsable(t *testing.T) {
	ctx, exports := loadModule(t, `module.exports = {
  spin: () => { while (true) {} },
  ok: () => "still alive",
};`)
	spin := exportedFunc(t, ctx, exports, "spin")
	ok := exportedFunc(t, ctx, exports, "ok")

	callCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := ctx.Call(callCtx, spin, nil)
	require.ErrorIs(t, err, ErrTimeout)

	result, err := ctx.Call(context.Background(), ok, nil)
	require.NoError(t, err)
	assert.Equal(t, "still alive", result)
}

func TestCall_CancelledContextDoesNotPoisonSession(t *testing.T) {
	ctx, exports := loadModule(t, `module.exports = { ok: () => "fine" };`)
	fn := exportedFunc(t, ctx, exports, "ok")

	// The interrupt watcher races call completion when the context is
	// already done; whatever that call returns, the session must stay
	// clean for the next one. Loop to give the race room to show up.
	for i := 0; i < 100; i++ {
		callCtx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _ = ctx.Call(callCtx, fn, nil)

		result, err := ctx.Call(context.Background(), fn, nil)
		require.NoError(t, err, "iteration %d: stale interrupt leaked into a healthy call", i)
		require.Equal(t, "fine", result)
	}
}

func TestCall_SettledPromiseUnwrapped(t *testing.T) {
	ctx, exports := loadModule(t, `module.exports = { later: async () => "done" };`)
	fn := exportedFunc(t, ctx, exports, "later")

	result, err := ctx.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", result)
}

func TestCall_RejectedPromiseBecomesError(t *testing.T) {
	ctx, exports := loadModule(t, `module.exports = { nope: async () => { throw new Error("rejected"); } };`)
	fn := exportedFunc(t, ctx, exports, "nope")

	_, err := ctx.Call(context.Background(), fn, nil)
	require.Error(t, err)
	assert.Equal(t, "rejected", err.Error())
}

func TestCall_SharedModuleState(t *testing.T) {
	ctx, exports := loadModule(t, `let counter = 0;
module.exports = { bump: () => ++counter };`)
	fn := exportedFunc(t, ctx, exports, "bump")

	first, err := ctx.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	second, err := ctx.Call(context.Background(), fn, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 1, first)
	assert.EqualValues(t, 2, second)
}

func TestRequire_RelativeImportResolved(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "helper.js", `module.exports = { base: 10 };`)
	path := writeModule(t, dir, "main.js", `const helper = require('./helper.js');
module.exports = { plus: (x) => helper.base + x };`)

	ctx := New(dir, zerolog.Nop())
	exports, err := ctx.Load(context.Background(), path)
	require.NoError(t, err)

	fn := exportedFunc(t, ctx, exports, "plus")
	result, err := ctx.Call(context.Background(), fn, []interface{}{5})
	require.NoError(t, err)
	assert.EqualValues(t, 15, result)
}

func TestRequire_ExtensionOptional(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "helper.js", `module.exports = 7;`)
	path := writeModule(t, dir, "main.js", `module.exports = { value: () => require('./helper') };`)

	ctx := New(dir, zerolog.Nop())
	exports, err := ctx.Load(context.Background(), path)
	require.NoError(t, err)

	fn := exportedFunc(t, ctx, exports, "value")
	result, err := ctx.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 7, result)
}

func TestRequire_BareSpecifierRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "main.js", `const fs = require('fs');
module.exports = {};`)

	ctx := New(dir, zerolog.Nop())
	_, err := ctx.Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relative imports")
}

func TestEnv_IsReadOnly(t *testing.T) {
	ctx, exports := loadModule(t, `module.exports = {
  platform: () => env.platform,
  tamper: () => { env.platform = "hacked"; return env.platform; },
  extend: () => { env.extra = 1; return env.extra; },
};`)

	platform := exportedFunc(t, ctx, exports, "platform")
	tamper := exportedFunc(t, ctx, exports, "tamper")
	extend := exportedFunc(t, ctx, exports, "extend")

	original, err := ctx.Call(context.Background(), platform, nil)
	require.NoError(t, err)
	require.Equal(t, runtime.GOOS, original)

	after, err := ctx.Call(context.Background(), tamper, nil)
	require.NoError(t, err)
	assert.Equal(t, runtime.GOOS, after, "frozen properties cannot be reassigned")

	extra, err := ctx.Call(context.Background(), extend, nil)
	require.NoError(t, err)
	assert.Nil(t, extra, "frozen objects cannot grow new properties")
}

func TestContext_HasStableID(t *testing.T) {
	ctx := New(t.TempDir(), zerolog.Nop())
	assert.NotEmpty(t, ctx.ID())
	assert.Equal(t, ctx.ID(), ctx.ID())
}
