package graph

import (
	"testing"

	"github.com/soundprediction/go-graphrank/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairs(raw ...string) []types.EdgePair {
	edges := make([]types.EdgePair, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		edges = append(edges, types.EdgePair{Source: types.EntityID(raw[i]), Target: types.EntityID(raw[i+1])})
	}
	return edges
}

func TestIndexFirstAppearanceOrder(t *testing.T) {
	ix := NewIndex()
	assert.Equal(t, 0, ix.Add("carol"))
	assert.Equal(t, 1, ix.Add("alice"))
	assert.Equal(t, 0, ix.Add("carol"))
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, types.EntityID("alice"), ix.ID(1))

	_, ok := ix.Lookup("bob")
	assert.False(t, ok)
}

func TestBuildUndirected(t *testing.T) {
	t.Run("duplicates in both orientations merge", func(t *testing.T) {
		g, ix := BuildUndirected(pairs("A", "B", "B", "A", "A", "B"))
		require.Equal(t, 2, g.Len())
		assert.Equal(t, 1, g.EdgeCount())
		assert.Equal(t, 1.0, g.TotalWeight())

		a, _ := ix.Lookup("A")
		b, _ := ix.Lookup("B")
		assert.True(t, g.HasEdge(a, b))
		assert.True(t, g.HasEdge(b, a))
		assert.Equal(t, 1.0, g.Degree(a))
		assert.Equal(t, []Neighbor{{Node: b, Weight: 1}}, g.Neighbors(a))
	})

	t.Run("self-loops are kept", func(t *testing.T) {
		g, ix := BuildUndirected(pairs("A", "A", "A", "B"))
		a, _ := ix.Lookup("A")
		assert.Equal(t, 2, g.EdgeCount())
		assert.Equal(t, 1.0, g.Loop(a))
		assert.Equal(t, 3.0, g.Degree(a))
		assert.Equal(t, 2.0, g.TotalWeight())
	})

	t.Run("empty edge list", func(t *testing.T) {
		g, ix := BuildUndirected(nil)
		assert.Equal(t, 0, g.Len())
		assert.Equal(t, 0, ix.Len())
		assert.Zero(t, g.TotalWeight())
	})
}

func TestUndirectedAddWeightSums(t *testing.T) {
	g := NewUndirected(3)
	g.AddWeight(0, 1, 2)
	g.AddWeight(1, 0, 3)
	g.AddWeight(2, 2, 1.5)

	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, 5.0, g.Neighbors(0)[0].Weight)
	assert.Equal(t, 5.0, g.Degree(1))
	assert.Equal(t, 3.0, g.Degree(2))
	assert.Equal(t, 6.5, g.TotalWeight())

	var seen [][2]int
	g.Edges(func(u, v int, w float64) {
		seen = append(seen, [2]int{u, v})
	})
	assert.Equal(t, [][2]int{{0, 1}, {2, 2}}, seen)
}

func TestBuildDirected(t *testing.T) {
	g, ix := BuildDirected(pairs("A", "B", "A", "C", "A", "B", "C", "C"))
	a, _ := ix.Lookup("A")
	b, _ := ix.Lookup("B")
	c, _ := ix.Lookup("C")

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, []int{b, c}, g.Out(a))
	assert.Equal(t, 0, g.InDegree(a))
	assert.Equal(t, 1, g.InDegree(b))
	assert.Equal(t, 0, g.OutDegree(b))
	assert.Equal(t, []int{a, c}, g.In(c))
	assert.Equal(t, 1, g.OutDegree(c))
}
