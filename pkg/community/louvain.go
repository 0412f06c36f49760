package community

import (
	"log/slog"

	"github.com/soundprediction/go-graphrank/pkg/graph"
	"github.com/soundprediction/go-graphrank/pkg/types"
)

// minModularityGain is the smallest modularity improvement that keeps a local
// move phase or a new aggregation level going.
const minModularityGain = 1e-7

// Result is the outcome of a community partitioning.
type Result struct {
	// Partition maps every entity in the edge list to its community id.
	// Ids are 0..Communities-1, numbered by first appearance of a member in
	// the edge list.
	Partition   types.Partition
	Modularity  float64
	Levels      int
	Communities int
}

// Builder partitions a relationship graph into communities using the Louvain
// method.
//
// Nodes are visited in order of first appearance in the edge list. A node
// moves to the neighbouring community with the largest strictly positive
// modularity gain; equal gains keep the candidate seen first while scanning
// the node's adjacency list in insertion order. The output is therefore
// deterministic for a given edge list order.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder. A nil logger discards level diagnostics.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{logger: logger}
}

// Detect runs Louvain over the undirected simple graph induced by edges.
func (b *Builder) Detect(edges []types.EdgePair) *Result {
	g, ix := graph.BuildUndirected(edges)
	if g.Len() == 0 {
		return &Result{Partition: types.Partition{}}
	}

	// membership[i] is the super-node currently holding original node i.
	membership := make([]int, g.Len())
	for i := range membership {
		membership[i] = i
	}

	current := g
	levels := 0
	modularity := 0.0
	for {
		l := newLevel(current)
		moved := l.optimize()
		q := l.modularity()

		if levels > 0 && (!moved || q-modularity < minModularityGain) {
			break
		}

		renumbered, count := l.renumber()
		for i, super := range membership {
			membership[i] = renumbered[l.nodeCom[super]]
		}
		modularity = q
		levels++

		b.logger.Debug("louvain level complete",
			"level", levels,
			"nodes", current.Len(),
			"communities", count,
			"modularity", q)

		if !moved {
			break
		}
		current = l.aggregate(renumbered, count)
	}

	partition := make(types.Partition, len(membership))
	stable := make(map[int]int)
	for i, c := range membership {
		id, ok := stable[c]
		if !ok {
			id = len(stable)
			stable[c] = id
		}
		partition[ix.ID(i)] = id
	}

	return &Result{
		Partition:   partition,
		Modularity:  modularity,
		Levels:      levels,
		Communities: len(stable),
	}
}

// level holds the community bookkeeping for one graph in the hierarchy.
type level struct {
	g       *graph.Undirected
	nodeCom []int
	tot     []float64 // sum of member degrees per community
	in      []float64 // internal edge weight per community
	m       float64
}

func newLevel(g *graph.Undirected) *level {
	n := g.Len()
	l := &level{
		g:       g,
		nodeCom: make([]int, n),
		tot:     make([]float64, n),
		in:      make([]float64, n),
		m:       g.TotalWeight(),
	}
	for u := 0; u < n; u++ {
		l.nodeCom[u] = u
		l.tot[u] = g.Degree(u)
		l.in[u] = g.Loop(u)
	}
	return l
}

// modularity returns Q = Σc in_c/m - (tot_c/2m)².
func (l *level) modularity() float64 {
	if l.m == 0 {
		return 0
	}
	q := 0.0
	for c := range l.tot {
		if l.tot[c] == 0 && l.in[c] == 0 {
			continue
		}
		share := l.tot[c] / (2 * l.m)
		q += l.in[c]/l.m - share*share
	}
	return q
}

// optimize runs local-move passes until a pass moves nothing or improves
// modularity by less than minModularityGain. It reports whether any node
// changed community.
func (l *level) optimize() bool {
	if l.m == 0 {
		return false
	}

	moved := false
	current := l.modularity()
	for {
		passMoved := false
		for u := 0; u < l.g.Len(); u++ {
			if l.move(u) {
				passMoved = true
			}
		}
		if passMoved {
			moved = true
		}

		next := l.modularity()
		if !passMoved || next-current < minModularityGain {
			break
		}
		current = next
	}
	return moved
}

// move re-evaluates u's community and reports whether it changed. Gains are
// scaled by m; staying put has gain 0.
func (l *level) move(u int) bool {
	from := l.nodeCom[u]
	order, weights := l.neighborCommunities(u)

	k := l.g.Degree(u)
	share := k / (2 * l.m)
	removeCost := -weights[from] + (l.tot[from]-k)*share

	l.remove(u, from, weights[from])

	best, bestGain := from, 0.0
	for _, c := range order {
		gain := removeCost + weights[c] - l.tot[c]*share
		if gain > bestGain {
			best, bestGain = c, gain
		}
	}

	l.insert(u, best, weights[best])
	return best != from
}

// neighborCommunities returns the communities adjacent to u in first-seen
// order together with the edge weight from u into each. u's self-loop is
// excluded.
func (l *level) neighborCommunities(u int) ([]int, map[int]float64) {
	neighbors := l.g.Neighbors(u)
	order := make([]int, 0, len(neighbors))
	weights := make(map[int]float64, len(neighbors))
	for _, nb := range neighbors {
		if nb.Node == u {
			continue
		}
		c := l.nodeCom[nb.Node]
		if _, ok := weights[c]; !ok {
			order = append(order, c)
		}
		weights[c] += nb.Weight
	}
	return order, weights
}

func (l *level) remove(u, c int, weight float64) {
	l.tot[c] -= l.g.Degree(u)
	l.in[c] -= weight + l.g.Loop(u)
	l.nodeCom[u] = -1
}

func (l *level) insert(u, c int, weight float64) {
	l.tot[c] += l.g.Degree(u)
	l.in[c] += weight + l.g.Loop(u)
	l.nodeCom[u] = c
}

// renumber maps the level's community labels onto 0..count-1 in order of
// first appearance by node index.
func (l *level) renumber() (map[int]int, int) {
	renumbered := make(map[int]int)
	for _, c := range l.nodeCom {
		if _, ok := renumbered[c]; !ok {
			renumbered[c] = len(renumbered)
		}
	}
	return renumbered, len(renumbered)
}

// aggregate contracts every community into one super-node. Edge weights
// between communities are summed; edges inside a community become a
// self-loop carrying their total weight.
func (l *level) aggregate(renumbered map[int]int, count int) *graph.Undirected {
	next := graph.NewUndirected(count)
	l.g.Edges(func(u, v int, w float64) {
		next.AddWeight(renumbered[l.nodeCom[u]], renumbered[l.nodeCom[v]], w)
	})
	return next
}
