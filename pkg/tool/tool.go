// Package tool defines the descriptor a reflected callable is exposed
// under and the per-session registry that owns those descriptors.
package tool

import (
	"context"
	"fmt"
)

// Handler invokes the underlying callable with positional arguments. It
// is an opaque back-reference into the execution context the descriptor
// was reflected from; destroying that context invalidates the handler.
type Handler func(ctx context.Context, args []interface{}) (interface{}, error)

// Param is a single inferred parameter, folded into the input schema at
// descriptor construction and not retained afterwards.
type Param struct {
	Name       string
	Type       string
	HasDefault bool
}

// Property describes one input-schema property.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// InputSchema is the JSON-schema-shaped description of a tool's named
// arguments. Required always lists a subset of the property names.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Descriptor is one callable exposed under a stable name. The handler is
// never serialized.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
	Handler     Handler     `json:"-"`

	order []string
}

// NewDescriptor builds a descriptor from inferred parameters. Parameters
// without a default are required; declaration order is preserved for
// positional invocation.
func NewDescriptor(name, description string, params []Param, handler Handler) Descriptor {
	if description == "" {
		description = fmt.Sprintf("Execute %s", name)
	}

	schema := InputSchema{
		Type:       "object",
		Properties: make(map[string]Property, len(params)),
		Required:   []string{},
	}
	order := make([]string, 0, len(params))

	for _, p := range params {
		if p.Name == "" {
			continue
		}
		schema.Properties[p.Name] = Property{
			Type:        p.Type,
			Description: fmt.Sprintf("Parameter %s", p.Name),
		}
		order = append(order, p.Name)
		if !p.HasDefault {
			schema.Required = append(schema.Required, p.Name)
		}
	}

	return Descriptor{
		Name:        name,
		Description: description,
		InputSchema: schema,
		Handler:     handler,
		order:       order,
	}
}

// ParameterOrder returns the declared parameter names in order.
func (d Descriptor) ParameterOrder() []string {
	return d.order
}

// PositionalArgs flattens a named argument bag into the declared
// parameter order. Argument keys bind positionally by matching parameter
// names; missing keys become nil (undefined in the execution context).
func (d Descriptor) PositionalArgs(args map[string]interface{}) []interface{} {
	positional := make([]interface{}, len(d.order))
	for i, name := range d.order {
		positional[i] = args[name]
	}
	return positional
}
