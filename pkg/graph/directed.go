package graph

import "github.com/soundprediction/go-graphrank/pkg/types"

// Directed is an unweighted directed graph over dense node indices with
// duplicate links merged.
type Directed struct {
	out   [][]int
	in    [][]int
	seen  []map[int]struct{}
	edges int
}

// BuildDirected constructs the directed graph with one link source → target
// per distinct extracted pair.
func BuildDirected(edges []types.EdgePair) (*Directed, *Index) {
	ix := NewIndex()
	for _, e := range edges {
		ix.Add(e.Source)
		ix.Add(e.Target)
	}

	n := ix.Len()
	g := &Directed{
		out:  make([][]int, n),
		in:   make([][]int, n),
		seen: make([]map[int]struct{}, n),
	}
	for i := range g.seen {
		g.seen[i] = make(map[int]struct{})
	}
	for _, e := range edges {
		u, _ := ix.Lookup(e.Source)
		v, _ := ix.Lookup(e.Target)
		g.addLink(u, v)
	}
	return g, ix
}

func (g *Directed) addLink(u, v int) {
	if _, ok := g.seen[u][v]; ok {
		return
	}
	g.seen[u][v] = struct{}{}
	g.out[u] = append(g.out[u], v)
	g.in[v] = append(g.in[v], u)
	g.edges++
}

// Len returns the number of nodes.
func (g *Directed) Len() int { return len(g.out) }

// EdgeCount returns the number of distinct links.
func (g *Directed) EdgeCount() int { return g.edges }

// Out returns u's successors in insertion order.
func (g *Directed) Out(u int) []int { return g.out[u] }

// In returns u's predecessors in insertion order.
func (g *Directed) In(u int) []int { return g.in[u] }

// OutDegree returns the number of distinct links leaving u.
func (g *Directed) OutDegree(u int) int { return len(g.out[u]) }

// InDegree returns the number of distinct links entering u.
func (g *Directed) InDegree(u int) int { return len(g.in[u]) }
