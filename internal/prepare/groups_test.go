package prepare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantprep/quantprep/internal/ir"
)

func TestAssignGroupsDenseIDs(t *testing.T) {
	a := ir.NodeOutput("a")
	b := ir.NodeOutput("b")
	c := ir.NodeOutput("c")
	d := ir.NodeOutput("d")

	reg := NewRegistry([]ir.Position{a, b, c, d})
	require.NoError(t, reg.Union(c, a))

	groups, err := AssignGroups(reg)
	require.NoError(t, err)

	// Ids are zero-based, assigned as roots are first seen in
	// registration order: a's group first, then b's, then d's.
	assert.Equal(t, 3, groups.Count())
	wantIDs := map[ir.Position]int{a: 0, b: 1, c: 0, d: 2}
	for pos, want := range wantIDs {
		id, ok := groups.ID(pos)
		require.True(t, ok, "position %s", pos)
		assert.Equal(t, want, id, "position %s", pos)
	}
}

func TestAssignGroupsDeterministic(t *testing.T) {
	build := func() *Groups {
		positions := []ir.Position{
			ir.NodeOutput("a"),
			ir.InputEdge("a", "n"),
			ir.NodeOutput("b"),
			ir.InputEdge("b", "n"),
		}
		reg := NewRegistry(positions)
		require.NoError(t, reg.Union(positions[0], positions[1]))
		require.NoError(t, reg.Union(positions[2], positions[3]))
		g, err := AssignGroups(reg)
		require.NoError(t, err)
		return g
	}

	first := build()
	for i := 0; i < 10; i++ {
		again := build()
		assert.Equal(t, first.byPosition, again.byPosition, "iteration %d", i)
	}
}

func TestAssignGroupsUnknownPosition(t *testing.T) {
	reg := NewRegistry([]ir.Position{ir.NodeOutput("a")})
	groups, err := AssignGroups(reg)
	require.NoError(t, err)

	_, ok := groups.ID(ir.NodeOutput("ghost"))
	assert.False(t, ok)
}
