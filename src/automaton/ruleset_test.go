package automaton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinRegistry(t *testing.T) {
	r := Builtin()
	assert.Equal(t, []string{Forest, Scroll, Stair, Mod}, r.Names())

	for _, name := range r.Names() {
		rs, err := r.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, rs.Name)
		for _, tr := range Triples() {
			_, err := rs.Horizontal.Lookup(tr[0], tr[1], tr[2])
			require.NoError(t, err, "%s horizontal %v", name, tr)
			_, err = rs.Vertical.Lookup(tr[0], tr[1], tr[2])
			require.NoError(t, err, "%s vertical %v", name, tr)
		}
	}
}

func tablesDiffer(t *testing.T, a, b Rule) bool {
	for _, tr := range Triples() {
		x, err := a.Lookup(tr[0], tr[1], tr[2])
		require.NoError(t, err)
		y, err := b.Lookup(tr[0], tr[1], tr[2])
		require.NoError(t, err)
		if x != y {
			return true
		}
	}
	return false
}

func TestBuiltinPassPairs(t *testing.T) {
	forest, err := Builtin().Lookup(Forest)
	require.NoError(t, err)
	assert.True(t, tablesDiffer(t, forest.Horizontal, forest.Vertical))

	stair, err := Builtin().Lookup(Stair)
	require.NoError(t, err)
	assert.True(t, tablesDiffer(t, stair.Horizontal, stair.Vertical))

	scroll, err := Builtin().Lookup(Scroll)
	require.NoError(t, err)
	assert.Same(t, scroll.Horizontal, scroll.Vertical)
}

func TestRegistryUnknown(t *testing.T) {
	_, err := Builtin().Lookup("nonexistent")
	assert.ErrorIs(t, err, ErrUnknownRuleSet)
}

func TestRegistryWithDoesNotMutate(t *testing.T) {
	tbl, err := TableFromFunc("id", func(_, c, _ State) State { return c })
	require.NoError(t, err)

	base := Builtin()
	ext, err := base.With(
		RuleSet{Name: "Identity", Horizontal: tbl, Vertical: tbl},
		RuleSet{Name: Scroll, Description: "replaced", Horizontal: tbl, Vertical: tbl},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{Forest, Scroll, Stair, Mod, "Identity"}, ext.Names())
	rs, err := ext.Lookup(Scroll)
	require.NoError(t, err)
	assert.Equal(t, "replaced", rs.Description)

	_, err = base.Lookup("Identity")
	assert.ErrorIs(t, err, ErrUnknownRuleSet)
	rs, err = base.Lookup(Scroll)
	require.NoError(t, err)
	assert.NotEqual(t, "replaced", rs.Description)
}

func TestNewRegistryValidates(t *testing.T) {
	_, err := NewRegistry(RuleSet{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewRegistry(RuleSet{Name: "half", Horizontal: Func(ModSum)})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRegistryNext(t *testing.T) {
	r := Builtin()
	assert.Equal(t, Scroll, r.Next(Forest))
	assert.Equal(t, Forest, r.Next(Mod))
	assert.Equal(t, Forest, r.Next("missing"))

	empty, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, "", empty.Next(Forest))
}
