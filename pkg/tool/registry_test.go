package tool

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(NewDescriptor("alpha", "", nil, noopHandler))

	d, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", d.Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(NewDescriptor("dup", "first", nil, noopHandler))
	r.Register(NewDescriptor("dup", "second", nil, noopHandler))

	assert.Equal(t, 1, r.Count())
	d, ok := r.Get("dup")
	require.True(t, ok)
	assert.Equal(t, "second", d.Description)
}

func TestRegistry_ListIsNameSortedAndStable(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(NewDescriptor("zeta", "", nil, noopHandler))
	r.Register(NewDescriptor("alpha", "", nil, noopHandler))
	r.Register(NewDescriptor("mid", "", nil, noopHandler))

	first := r.List()
	second := r.List()

	require.Len(t, first, 3)
	assert.Equal(t, "alpha", first[0].Name)
	assert.Equal(t, "mid", first[1].Name)
	assert.Equal(t, "zeta", first[2].Name)

	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}
