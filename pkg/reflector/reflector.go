// Package reflector loads a JavaScript module into an isolated execution
// context and discovers its exported callables as tools.
package reflector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"

	"github.com/mcpify/mcpify/pkg/introspect"
	"github.com/mcpify/mcpify/pkg/jsruntime"
	"github.com/mcpify/mcpify/pkg/tool"
)

// ReflectionError wraps any failure to locate, parse or load a module.
// Reflection is all-or-nothing for the load step: a ReflectionError means
// no registry and no context were produced.
type ReflectionError struct {
	Path string
	Err  error
}

func (e *ReflectionError) Error() string {
	return fmt.Sprintf("reflection failed for %s: %v", e.Path, e.Err)
}

func (e *ReflectionError) Unwrap() error { return e.Err }

// Reflect loads the module at path under the given timeout and walks its
// exported value graph. The returned registry and context belong
// together: every handler in the registry is a reference into that
// context.
func Reflect(path string, timeout time.Duration, logger zerolog.Logger) (*tool.Registry, *jsruntime.Context, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, &ReflectionError{Path: path, Err: err}
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, nil, &ReflectionError{Path: path, Err: err}
	}

	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, nil, &ReflectionError{Path: path, Err: err}
	}

	ectx := jsruntime.New(filepath.Dir(abs), logger)

	loadCtx, cancel := jsruntime.Deadline(context.Background(), timeout)
	defer cancel()

	exports, err := ectx.Load(loadCtx, abs)
	if err != nil {
		return nil, nil, &ReflectionError{Path: path, Err: err}
	}

	registry := tool.NewRegistry(logger)

	ectx.Inspect(func(vm *goja.Runtime) {
		walkExports(vm, ectx, registry, string(source), exports, logger)
	})

	logger.Info().
		Str("module", abs).
		Str("session", ectx.ID()).
		Int("tools", registry.Count()).
		Msg("Module reflected")

	return registry, ectx, nil
}

// walkExports registers the export itself when callable, otherwise
// recurses through plain aggregates one level at a time. Non-callable
// scalars and arrays are ignored.
func walkExports(vm *goja.Runtime, ectx *jsruntime.Context, registry *tool.Registry, source string, exports goja.Value, logger zerolog.Logger) {
	if fn, ok := goja.AssertFunction(exports); ok {
		registry.Register(describe(ectx, "default", "default", source, exports, fn))
		return
	}
	walkObject(vm, ectx, registry, source, exports, "")
}

func walkObject(vm *goja.Runtime, ectx *jsruntime.Context, registry *tool.Registry, source string, value goja.Value, prefix string) {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return
	}
	if !isPlainObject(value) {
		return
	}

	obj := value.ToObject(vm)
	for _, key := range obj.Keys() {
		member := obj.Get(key)
		if member == nil || goja.IsUndefined(member) || goja.IsNull(member) {
			continue
		}

		name := key
		if prefix != "" {
			name = prefix + "_" + key
		}

		if fn, ok := goja.AssertFunction(member); ok {
			registry.Register(describe(ectx, name, key, source, member, fn))
			continue
		}
		walkObject(vm, ectx, registry, source, member, name)
	}
}

// isPlainObject reports whether a value is a non-array, non-callable
// aggregate worth traversing.
func isPlainObject(v goja.Value) bool {
	t := v.ExportType()
	if t == nil {
		return false
	}
	return t.Kind() == reflect.Map
}

// describe runs signature inference over the callable's source text and
// builds a descriptor bound to the owning context. Inference failures
// degrade to a zero-parameter descriptor; they never abort reflection.
func describe(ectx *jsruntime.Context, name, key, moduleSource string, value goja.Value, fn goja.Callable) tool.Descriptor {
	fnSource := functionSource(value)

	inferred := introspect.ParseParameters(fnSource)
	params := make([]tool.Param, 0, len(inferred))
	for _, p := range inferred {
		params = append(params, tool.Param{Name: p.Name, Type: p.Type, HasDefault: p.HasDefault})
	}

	description := introspect.DocBefore(moduleSource, key)
	if description == "" {
		description = introspect.ExtractDoc(fnSource)
	}

	handler := func(ctx context.Context, args []interface{}) (interface{}, error) {
		return ectx.Call(ctx, fn, args)
	}

	return tool.NewDescriptor(name, description, params, handler)
}

// functionSource returns the callable's source text via its toString
// form. A callable whose source cannot be recovered yields the empty
// string and is treated as zero-argument.
func functionSource(v goja.Value) (src string) {
	defer func() {
		if recover() != nil {
			src = ""
		}
	}()
	return v.String()
}
