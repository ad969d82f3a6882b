package tool

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// Registry maps tool names to descriptors. It is owned by one
// loaded-module session: populated during reflection and shape-immutable
// afterwards. When two exported paths collapse to the same name the last
// registration wins.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Descriptor
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Descriptor),
		logger: logger,
	}
}

// Register inserts a descriptor, replacing any previous one with the same
// name. The generated input schema is compiled as a sanity check; a
// schema that fails to compile is kept anyway, since inference is a
// best-effort heuristic rather than a typed contract.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		r.logger.Warn().Str("tool", d.Name).Msg("Tool name collision, last registration wins")
	}

	loader := gojsonschema.NewGoLoader(d.InputSchema)
	if _, err := gojsonschema.NewSchema(loader); err != nil {
		r.logger.Warn().Err(err).Str("tool", d.Name).Msg("Inferred schema failed to compile, keeping heuristic schema")
	}

	r.tools[d.Name] = d
	r.logger.Debug().Str("tool", d.Name).Int("params", len(d.order)).Msg("Tool registered")
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	return d, ok
}

// List returns all descriptors sorted by name, so repeated listings are
// order-stable.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}
