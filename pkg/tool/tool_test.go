package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(context.Context, []interface{}) (interface{}, error) {
	return nil, nil
}

func TestNewDescriptor_RequiredSubsetOfProperties(t *testing.T) {
	d := NewDescriptor("greet", "", []Param{
		{Name: "name", Type: "string"},
		{Name: "excited", Type: "boolean", HasDefault: true},
	}, noopHandler)

	assert.Equal(t, []string{"name"}, d.InputSchema.Required)
	for _, name := range d.InputSchema.Required {
		assert.Contains(t, d.InputSchema.Properties, name)
	}
	assert.Equal(t, "string", d.InputSchema.Properties["name"].Type)
	assert.Equal(t, "boolean", d.InputSchema.Properties["excited"].Type)
}

func TestNewDescriptor_GeneratedDescription(t *testing.T) {
	d := NewDescriptor("compute", "", nil, noopHandler)
	assert.Equal(t, "Execute compute", d.Description)

	documented := NewDescriptor("compute", "Does the thing.", nil, noopHandler)
	assert.Equal(t, "Does the thing.", documented.Description)
}

func TestNewDescriptor_ZeroParametersValidEmptySchema(t *testing.T) {
	d := NewDescriptor("tick", "", nil, noopHandler)

	assert.Equal(t, "object", d.InputSchema.Type)
	assert.Empty(t, d.InputSchema.Properties)
	assert.NotNil(t, d.InputSchema.Required)
	assert.Empty(t, d.InputSchema.Required)
}

func TestDescriptor_PositionalArgsFollowDeclarationOrder(t *testing.T) {
	d := NewDescriptor("f", "", []Param{
		{Name: "first", Type: "string"},
		{Name: "second", Type: "number"},
		{Name: "third", Type: "boolean", HasDefault: true},
	}, noopHandler)

	args := d.PositionalArgs(map[string]interface{}{
		"second": 2.0,
		"first":  "one",
	})

	require.Len(t, args, 3)
	assert.Equal(t, "one", args[0])
	assert.Equal(t, 2.0, args[1])
	assert.Nil(t, args[2])
}

func TestDescriptor_HandlerNeverSerialized(t *testing.T) {
	d := NewDescriptor("f", "", []Param{{Name: "a", Type: "string"}}, noopHandler)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Handler")
	assert.Contains(t, string(data), `"inputSchema"`)
	assert.Contains(t, string(data), `"required":["a"]`)
}
