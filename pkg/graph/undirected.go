package graph

import "github.com/soundprediction/go-graphrank/pkg/types"

// Neighbor is one adjacency entry of a weighted graph.
type Neighbor struct {
	Node   int
	Weight float64
}

// Undirected is a weighted undirected graph over dense node indices.
//
// Adjacency lists keep insertion order. A self-loop is stored once in its
// node's list and contributes twice its weight to the node's degree.
type Undirected struct {
	adj    [][]Neighbor
	pos    []map[int]int
	loops  []float64
	degree []float64
	total  float64
	edges  int
}

// NewUndirected creates a graph with n isolated nodes.
func NewUndirected(n int) *Undirected {
	g := &Undirected{
		adj:    make([][]Neighbor, n),
		pos:    make([]map[int]int, n),
		loops:  make([]float64, n),
		degree: make([]float64, n),
	}
	for i := range g.pos {
		g.pos[i] = make(map[int]int)
	}
	return g
}

// BuildUndirected constructs the simple undirected graph induced by edges.
// Duplicate pairs, in either orientation, collapse into one edge of weight 1;
// self-loops are kept.
func BuildUndirected(edges []types.EdgePair) (*Undirected, *Index) {
	ix := NewIndex()
	for _, e := range edges {
		ix.Add(e.Source)
		ix.Add(e.Target)
	}

	g := NewUndirected(ix.Len())
	for _, e := range edges {
		u, _ := ix.Lookup(e.Source)
		v, _ := ix.Lookup(e.Target)
		if !g.HasEdge(u, v) {
			g.AddWeight(u, v, 1)
		}
	}
	return g, ix
}

// AddWeight adds w to the edge between u and v, creating it if needed.
func (g *Undirected) AddWeight(u, v int, w float64) {
	if _, ok := g.pos[u][v]; !ok {
		g.edges++
	}
	g.bump(u, v, w)
	if u == v {
		g.loops[u] += w
		g.degree[u] += 2 * w
	} else {
		g.bump(v, u, w)
		g.degree[u] += w
		g.degree[v] += w
	}
	g.total += w
}

func (g *Undirected) bump(u, v int, w float64) {
	if i, ok := g.pos[u][v]; ok {
		g.adj[u][i].Weight += w
		return
	}
	g.pos[u][v] = len(g.adj[u])
	g.adj[u] = append(g.adj[u], Neighbor{Node: v, Weight: w})
}

// HasEdge reports whether u and v are adjacent.
func (g *Undirected) HasEdge(u, v int) bool {
	_, ok := g.pos[u][v]
	return ok
}

// Len returns the number of nodes.
func (g *Undirected) Len() int { return len(g.adj) }

// EdgeCount returns the number of distinct edges, self-loops included.
func (g *Undirected) EdgeCount() int { return g.edges }

// Neighbors returns u's adjacency list in insertion order. The slice must not
// be modified.
func (g *Undirected) Neighbors(u int) []Neighbor { return g.adj[u] }

// Degree returns the weighted degree of u.
func (g *Undirected) Degree(u int) float64 { return g.degree[u] }

// Loop returns the weight of u's self-loop, or 0.
func (g *Undirected) Loop(u int) float64 { return g.loops[u] }

// TotalWeight returns the sum of all edge weights, each edge counted once.
func (g *Undirected) TotalWeight() float64 { return g.total }

// Edges calls fn once per edge with u <= v.
func (g *Undirected) Edges(fn func(u, v int, w float64)) {
	for u, list := range g.adj {
		for _, nb := range list {
			if nb.Node >= u {
				fn(u, nb.Node, nb.Weight)
			}
		}
	}
}
