package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strict(to string) Edge   { return Edge{To: to} }
func deferred(to string) Edge { return Edge{To: to, Deferred: true} }

func TestAddAndQuery(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a", []Edge{strict("b"), strict("c")})
	g.AddNode("b", []Edge{strict("c")})
	g.AddNode("c", nil)

	assert.True(t, g.HasNode("a"))
	assert.False(t, g.HasNode("z"))
	assert.Equal(t, 3, g.Size())
	assert.ElementsMatch(t, []string{"b", "c"}, g.Dependencies("a"))
	assert.ElementsMatch(t, []string{"a", "b"}, g.Dependents("c"))
	assert.Nil(t, g.Dependencies("z"))
}

func TestRemoveNode(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a", nil)
	g.RemoveNode("a")
	assert.False(t, g.HasNode("a"))
	assert.Zero(t, g.Size())
}

func TestClone(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a", []Edge{strict("b")})
	g.AddNode("b", nil)

	c := g.Clone()
	c.AddNode("c", nil)

	assert.True(t, c.HasNode("a"))
	assert.False(t, g.HasNode("c"))
}

func TestStrictCyclesDetectsSynchronousLoop(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a", []Edge{strict("b")})
	g.AddNode("b", []Edge{strict("a")})

	cycles := g.StrictCycles()
	require.Len(t, cycles, 1)
	assert.True(t, g.HasStrictCycle())

	// The path closes the loop on its start node.
	cycle := cycles[0]
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])
	assert.Len(t, cycle, 3)
}

func TestStrictCyclesIgnoresDeferredEdge(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a", []Edge{deferred("b")})
	g.AddNode("b", []Edge{strict("a")})

	assert.Empty(t, g.StrictCycles())
	assert.False(t, g.HasStrictCycle())
}

func TestStrictCyclesSelfLoop(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a", []Edge{strict("a")})

	require.Len(t, g.StrictCycles(), 1)
}

func TestStrictCyclesIgnoresDanglingEdges(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a", []Edge{strict("missing")})

	assert.Empty(t, g.StrictCycles())
}

func TestTopologicalSort(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("app", []Edge{strict("db"), strict("cfg")})
	g.AddNode("db", []Edge{strict("cfg")})
	g.AddNode("cfg", nil)

	sorted, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, sorted, 3)

	pos := map[string]int{}
	for i, id := range sorted {
		pos[id] = i
	}
	assert.Less(t, pos["cfg"], pos["db"])
	assert.Less(t, pos["db"], pos["app"])
}

func TestTopologicalSortCycle(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a", []Edge{strict("b")})
	g.AddNode("b", []Edge{strict("a")})

	_, err := g.TopologicalSort()
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestTopologicalSortDeferredEdgeDoesNotConstrain(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a", []Edge{deferred("b")})
	g.AddNode("b", []Edge{strict("a")})

	sorted, err := g.TopologicalSort()
	require.NoError(t, err)

	pos := map[string]int{}
	for i, id := range sorted {
		pos[id] = i
	}
	// Only the strict edge b->a constrains the order.
	assert.Less(t, pos["a"], pos["b"])
}

func TestParallelGroups(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("cfg", nil)
	g.AddNode("log", nil)
	g.AddNode("db", []Edge{strict("cfg")})
	g.AddNode("cache", []Edge{strict("cfg")})
	g.AddNode("app", []Edge{strict("db"), strict("cache"), strict("log")})

	groups, err := g.ParallelGroups()
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, 0, groups[0].Level)
	assert.ElementsMatch(t, []string{"cfg", "log"}, groups[0].Nodes)
	assert.ElementsMatch(t, []string{"db", "cache"}, groups[1].Nodes)
	assert.ElementsMatch(t, []string{"app"}, groups[2].Nodes)
}

func TestParallelGroupsCycle(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a", []Edge{strict("b")})
	g.AddNode("b", []Edge{strict("a")})

	_, err := g.ParallelGroups()
	assert.ErrorIs(t, err, ErrCycleDetected)
}
