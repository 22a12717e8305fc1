package attribute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybot/tally/pkg/stream"
)

func testDefinition(name string) *Definition {
	return &Definition{
		Name:    name,
		Matches: func(e *stream.Event) bool { return false },
	}
}

func TestRegistryRegister(t *testing.T) {
	t.Run("registers definitions in order", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(testDefinition("b")))
		require.NoError(t, reg.Register(testDefinition("a")))
		require.NoError(t, reg.Register(testDefinition("c")))

		assert.Equal(t, []string{"b", "a", "c"}, reg.Names())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(testDefinition("zulip")))

		err := reg.Register(testDefinition("zulip"))
		require.Error(t, err)
		assert.True(t, IsDuplicate(err))

		// The first registration is untouched
		assert.Equal(t, []string{"zulip"}, reg.Names())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		reg := NewRegistry()
		assert.Error(t, reg.Register(testDefinition("")))
	})

	t.Run("rejects missing predicate", func(t *testing.T) {
		reg := NewRegistry()
		err := reg.Register(&Definition{Name: "zulip"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no predicate")
	})
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDefinition("zulip")))

	t.Run("finds registered definition", func(t *testing.T) {
		def, err := reg.Lookup("zulip")
		require.NoError(t, err)
		assert.Equal(t, "zulip", def.Name)
	})

	t.Run("fails for unknown name", func(t *testing.T) {
		_, err := reg.Lookup("nope")
		require.Error(t, err)
		assert.True(t, IsUnknown(err))
		assert.False(t, IsDuplicate(err))
	})
}
