package types

import (
	"sort"
	"time"
)

// EntityID identifies an entity in the property-graph store. For the social
// graph this is the Person's unique name.
type EntityID string

// EdgePair is a single extracted relationship between two entities.
type EdgePair struct {
	Source EntityID `json:"source"`
	Target EntityID `json:"target"`
}

// Attribute is the node property an analysis writes back to the store.
type Attribute string

const (
	// CommunityAttribute holds the integer community id.
	CommunityAttribute Attribute = "communityId"
	// PageRankAttribute holds the floating-point importance score.
	PageRankAttribute Attribute = "pagerank"
)

// AnalysisKind names one of the two pipelines.
type AnalysisKind string

const (
	CommunityAnalysis AnalysisKind = "community"
	PageRankAnalysis  AnalysisKind = "pagerank"
)

// Attribute returns the node property written by this analysis.
func (k AnalysisKind) Attribute() Attribute {
	if k == PageRankAnalysis {
		return PageRankAttribute
	}
	return CommunityAttribute
}

// Valid reports whether k is a known analysis.
func (k AnalysisKind) Valid() bool {
	return k == CommunityAnalysis || k == PageRankAnalysis
}

// Partition maps each entity to its community id. Ids carry no meaning beyond
// equality.
type Partition map[EntityID]int

// Scores maps each entity to its importance score.
type Scores map[EntityID]float64

// Groups returns the equivalence classes of the partition. Members of each
// group are sorted and groups are ordered by their smallest member.
func (p Partition) Groups() [][]EntityID {
	byCommunity := make(map[int][]EntityID)
	for id, c := range p {
		byCommunity[c] = append(byCommunity[c], id)
	}

	groups := make([][]EntityID, 0, len(byCommunity))
	for _, members := range byCommunity {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		groups = append(groups, members)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// SortedIDs returns the partition's entity ids in ascending order.
func (p Partition) SortedIDs() []EntityID {
	ids := make([]EntityID, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SortedIDs returns the scored entity ids in ascending order.
func (s Scores) SortedIDs() []EntityID {
	ids := make([]EntityID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RankedEntity is an entity paired with its score.
type RankedEntity struct {
	ID    EntityID `json:"id"`
	Score float64  `json:"score"`
}

// WriteSummary describes the outcome of a write phase.
type WriteSummary struct {
	// Attempted is the number of update statements issued.
	Attempted int `json:"attempted"`
	// Written counts updates that matched an entity.
	Written int `json:"written"`
	// Unmatched counts updates that matched nothing in the store.
	Unmatched int `json:"unmatched"`
}

// RunReport summarizes one Extract → Analyze → Write execution.
type RunReport struct {
	ID          string         `json:"id"`
	Kind        AnalysisKind   `json:"kind"`
	Edges       int            `json:"edges"`
	Nodes       int            `json:"nodes"`
	Written     int            `json:"written"`
	Unmatched   int            `json:"unmatched"`
	Communities int            `json:"communities,omitempty"`
	Modularity  float64        `json:"modularity,omitempty"`
	Iterations  int            `json:"iterations,omitempty"`
	Converged   bool           `json:"converged"`
	TopEntities []RankedEntity `json:"top_entities,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Error       string         `json:"error,omitempty"`
}

// Duration returns the wall-clock time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
