package rank

import (
	"container/heap"
	"log/slog"
	"math"

	"github.com/soundprediction/go-graphrank/pkg/graph"
	"github.com/soundprediction/go-graphrank/pkg/types"
)

// Options configures the PageRank iteration. The pipeline always uses
// DefaultOptions; the fields exist for tests.
type Options struct {
	DampingFactor float64
	MaxIterations int
	// Tolerance bounds the L1 distance between two successive score vectors.
	Tolerance float64
}

// DefaultOptions returns d = 0.85, tolerance 1e-8 and a 1000 iteration cap.
func DefaultOptions() Options {
	return Options{
		DampingFactor: 0.85,
		MaxIterations: 1000,
		Tolerance:     1e-8,
	}
}

// Result contains PageRank scores for all entities in the edge list.
type Result struct {
	Scores     types.Scores
	Iterations int
	Converged  bool
}

// Ranker computes importance scores over the directed graph induced by the
// extracted pairs.
//
// Each pair is treated as a one-way link source → target. The extraction
// query matches relationships without direction, so the store normally
// returns both orientations of every relationship and the resulting link set
// is symmetric; a one-sided edge list yields a genuinely directed ranking.
type Ranker struct {
	opts   Options
	logger *slog.Logger
}

// NewRanker creates a Ranker. A nil logger discards diagnostics.
func NewRanker(opts Options, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ranker{opts: opts, logger: logger}
}

// Rank runs the power iteration
//
//	score'(n) = (1-d)/N + d·Σ_{m→n} score(m)/out(m) + d·dangling/N
//
// where dangling is the total score of nodes without outgoing links.
func (r *Ranker) Rank(edges []types.EdgePair) *Result {
	g, ix := graph.BuildDirected(edges)
	n := g.Len()
	if n == 0 {
		return &Result{Scores: types.Scores{}, Converged: true}
	}

	d := r.opts.DampingFactor
	size := float64(n)
	teleport := (1 - d) / size

	scores := make([]float64, n)
	next := make([]float64, n)
	for i := range scores {
		scores[i] = 1 / size
	}

	converged := false
	iterations := 0
	for iterations < r.opts.MaxIterations {
		iterations++

		dangling := 0.0
		for u := 0; u < n; u++ {
			if g.OutDegree(u) == 0 {
				dangling += scores[u]
			}
		}
		spread := d * dangling / size

		for v := 0; v < n; v++ {
			sum := 0.0
			for _, u := range g.In(v) {
				sum += scores[u] / float64(g.OutDegree(u))
			}
			next[v] = teleport + d*sum + spread
		}

		diff := 0.0
		for i := range scores {
			diff += math.Abs(next[i] - scores[i])
		}
		scores, next = next, scores

		if diff < r.opts.Tolerance {
			converged = true
			break
		}
	}

	if !converged {
		r.logger.Warn("pagerank did not converge",
			"iterations", iterations,
			"tolerance", r.opts.Tolerance)
	}

	total := 0.0
	for _, s := range scores {
		total += s
	}

	result := make(types.Scores, n)
	for i, s := range scores {
		result[ix.ID(i)] = s / total
	}

	return &Result{
		Scores:     result,
		Iterations: iterations,
		Converged:  converged,
	}
}

// rankedHeap is a min-heap on score; ties order the larger id first so that
// popping discards it before the smaller one.
type rankedHeap []types.RankedEntity

func (h rankedHeap) Len() int { return len(h) }
func (h rankedHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].ID > h[j].ID
}
func (h rankedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *rankedHeap) Push(x any) {
	*h = append(*h, x.(types.RankedEntity))
}

func (h *rankedHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Top returns the n highest scoring entities, best first. Equal scores are
// ordered by id.
func Top(scores types.Scores, n int) []types.RankedEntity {
	if n <= 0 {
		return nil
	}

	h := make(rankedHeap, 0, n)
	for id, score := range scores {
		e := types.RankedEntity{ID: id, Score: score}
		if h.Len() < n {
			heap.Push(&h, e)
		} else if better(e, h[0]) {
			heap.Pop(&h)
			heap.Push(&h, e)
		}
	}

	top := make([]types.RankedEntity, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		top[i] = heap.Pop(&h).(types.RankedEntity)
	}
	return top
}

func better(a, b types.RankedEntity) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}
