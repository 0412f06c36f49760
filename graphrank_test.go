package graphrank_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/soundprediction/go-graphrank"
	"github.com/soundprediction/go-graphrank/pkg/driver"
	"github.com/soundprediction/go-graphrank/pkg/metrics"
	"github.com/soundprediction/go-graphrank/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangleAndPair is A-B-C closed into a triangle plus a separate D-E pair.
func triangleAndPair() *driver.MemoryStore {
	m := driver.NewMemoryStore()
	m.AddRelationship("A", "FRIENDS_WITH", "B")
	m.AddRelationship("B", "PARTICIPATES_IN", "C")
	m.AddRelationship("C", "FRIENDS_WITH", "A")
	m.AddRelationship("D", "FRIENDS_WITH", "E")
	return m
}

func property(t *testing.T, m *driver.MemoryStore, id types.EntityID, attr types.Attribute) any {
	t.Helper()
	value, ok := m.Property(id, attr)
	require.True(t, ok, "%s has no %s", id, attr)
	return value
}

func assertSessionsReleased(t *testing.T, m *driver.MemoryStore) {
	t.Helper()
	opened, closed := m.Sessions()
	assert.Equal(t, opened, closed, "every opened session must be closed")
}

type fakeRecorder struct {
	mu        sync.Mutex
	reports   []*types.RunReport
	partition types.Partition
	scores    types.Scores
	err       error
}

func (f *fakeRecorder) RecordRun(_ context.Context, report *types.RunReport, partition types.Partition, scores types.Scores) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	f.partition, f.scores = partition, scores
	return f.err
}

func TestRunCommunities(t *testing.T) {
	m := triangleAndPair()
	client := graphrank.NewClient(m, nil)

	report, err := client.RunCommunities(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.CommunityAnalysis, report.Kind)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 8, report.Edges, "each relationship is extracted in both orientations")
	assert.Equal(t, 5, report.Nodes)
	assert.Equal(t, 5, report.Written)
	assert.Zero(t, report.Unmatched)
	assert.Equal(t, 2, report.Communities)
	assert.InDelta(t, 0.375, report.Modularity, 1e-9)
	assert.Empty(t, report.Error)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	// Ids follow first appearance in the edge list.
	for _, id := range []types.EntityID{"A", "B", "C"} {
		assert.Equal(t, int64(0), property(t, m, id, types.CommunityAttribute), id)
	}
	for _, id := range []types.EntityID{"D", "E"} {
		assert.Equal(t, int64(1), property(t, m, id, types.CommunityAttribute), id)
	}

	assertSessionsReleased(t, m)
	opened, _ := m.Sessions()
	assert.Equal(t, 2, opened, "one session to extract, one to write")
}

func TestRunPageRank(t *testing.T) {
	m := driver.NewMemoryStore()
	m.AddRelationship("A", "FRIENDS_WITH", "B")
	m.AddRelationship("A", "FRIENDS_WITH", "C")

	client := graphrank.NewClient(m, &graphrank.Config{TopN: 2})

	report, err := client.RunPageRank(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.PageRankAnalysis, report.Kind)
	assert.Equal(t, 4, report.Edges)
	assert.Equal(t, 3, report.Nodes)
	assert.Equal(t, 3, report.Written)
	assert.True(t, report.Converged)
	assert.Positive(t, report.Iterations)

	// The undirected extraction makes A the hub of a symmetric star.
	a := property(t, m, "A", types.PageRankAttribute).(float64)
	b := property(t, m, "B", types.PageRankAttribute).(float64)
	c := property(t, m, "C", types.PageRankAttribute).(float64)
	assert.InDelta(t, 0.4864864865, a, 1e-6)
	assert.InDelta(t, 0.2567567568, b, 1e-6)
	assert.InDelta(t, b, c, 1e-12)
	assert.InDelta(t, 1.0, a+b+c, 1e-9)

	require.Len(t, report.TopEntities, 2)
	assert.Equal(t, types.EntityID("A"), report.TopEntities[0].ID)
	assert.InDelta(t, a, report.TopEntities[0].Score, 1e-12)

	assertSessionsReleased(t, m)
}

func TestRun_EmptyGraph(t *testing.T) {
	for _, kind := range []types.AnalysisKind{types.CommunityAnalysis, types.PageRankAnalysis} {
		t.Run(string(kind), func(t *testing.T) {
			m := driver.NewMemoryStore()
			m.AddEntity("Loner")
			m.AddRelationship("X", "KNOWS", "Y")

			report, err := graphrank.NewClient(m, nil).Run(context.Background(), kind)
			require.NoError(t, err)

			assert.Zero(t, report.Edges)
			assert.Zero(t, report.Nodes)
			assert.Zero(t, report.Written)
			assert.Empty(t, report.TopEntities)

			_, ok := m.Property("Loner", kind.Attribute())
			assert.False(t, ok, "nothing is written for an empty graph")

			opened, closed := m.Sessions()
			assert.Equal(t, 1, opened, "no write session for an empty result")
			assert.Equal(t, 1, closed)
		})
	}
}

func TestRun_UnknownKind(t *testing.T) {
	_, err := graphrank.NewClient(driver.NewMemoryStore(), nil).Run(context.Background(), "betweenness")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestRun_ConnectFailure(t *testing.T) {
	m := triangleAndPair()
	m.FailConnect(fmt.Errorf("%w: connection refused", types.ErrConnection))
	reg := metrics.NewRegistry()

	client := graphrank.NewClient(m, &graphrank.Config{Metrics: reg})
	report, err := client.RunPageRank(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConnection)
	require.NotNil(t, report)
	assert.Zero(t, report.Edges)
	assert.Contains(t, report.Error, "connection refused")

	_, ok := m.Property("A", types.PageRankAttribute)
	assert.False(t, ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.AnalysisRunsTotal.WithLabelValues("pagerank", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.StoreErrorsTotal.WithLabelValues("extract", "connection")))
}

func TestRun_QueryFailure(t *testing.T) {
	m := triangleAndPair()
	m.FailFetch(fmt.Errorf("%w: invalid syntax", types.ErrQuery))

	_, err := graphrank.NewClient(m, nil).RunCommunities(context.Background())
	assert.ErrorIs(t, err, types.ErrQuery)
	assertSessionsReleased(t, m)
}

func TestRun_WriteFailureKeepsAppliedWrites(t *testing.T) {
	m := triangleAndPair()
	m.FailWritesAfter(2, fmt.Errorf("%w: connection reset", types.ErrConnection))

	report, err := graphrank.NewClient(m, nil).RunCommunities(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConnection)

	assert.Equal(t, 8, report.Edges)
	assert.Equal(t, 5, report.Nodes)
	assert.Equal(t, 2, report.Written)
	assert.NotEmpty(t, report.Error)

	// Writes go in ascending id order and are not rolled back.
	for _, id := range []types.EntityID{"A", "B"} {
		_, ok := m.Property(id, types.CommunityAttribute)
		assert.True(t, ok, id)
	}
	for _, id := range []types.EntityID{"C", "D", "E"} {
		_, ok := m.Property(id, types.CommunityAttribute)
		assert.False(t, ok, id)
	}

	assertSessionsReleased(t, m)
}

func TestRun_Reproducible(t *testing.T) {
	first := triangleAndPair()
	second := triangleAndPair()

	for _, m := range []*driver.MemoryStore{first, second} {
		client := graphrank.NewClient(m, nil)
		_, err := client.RunCommunities(context.Background())
		require.NoError(t, err)
		_, err = client.RunPageRank(context.Background())
		require.NoError(t, err)
	}

	for _, id := range []types.EntityID{"A", "B", "C", "D", "E"} {
		assert.Equal(t, property(t, first, id, types.CommunityAttribute), property(t, second, id, types.CommunityAttribute))
		assert.Equal(t, property(t, first, id, types.PageRankAttribute), property(t, second, id, types.PageRankAttribute))
	}
}

func TestRun_RecordsHistoryAndMetrics(t *testing.T) {
	m := triangleAndPair()
	recorder := &fakeRecorder{}
	reg := metrics.NewRegistry()
	client := graphrank.NewClient(m, &graphrank.Config{Recorder: recorder, Metrics: reg})

	community, err := client.RunCommunities(context.Background())
	require.NoError(t, err)
	require.Len(t, recorder.reports, 1)
	assert.Same(t, community, recorder.reports[0])
	assert.Len(t, recorder.partition, 5)
	assert.Nil(t, recorder.scores)

	// A broken history sink does not fail the run.
	recorder.err = fmt.Errorf("disk full")
	_, err = client.RunPageRank(context.Background())
	require.NoError(t, err)
	assert.Len(t, recorder.scores, 5)
	assert.Nil(t, recorder.partition)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.AnalysisRunsTotal.WithLabelValues("community", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.AnalysisRunsTotal.WithLabelValues("pagerank", "success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(reg.AnalysisWritesTotal.WithLabelValues("pagerank", "written")))
	assert.InDelta(t, 0.375, testutil.ToFloat64(reg.AnalysisModularityLast), 1e-9)
}

func TestStatsAndPing(t *testing.T) {
	m := triangleAndPair()
	client := graphrank.NewClient(m, nil)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Entities)
	assert.Equal(t, int64(3), stats.RelationshipsByKind["FRIENDS_WITH"])
	assert.Equal(t, int64(1), stats.RelationshipsByKind["PARTICIPATES_IN"])

	m.FailConnect(fmt.Errorf("%w: refused", types.ErrConnection))
	assert.ErrorIs(t, client.Ping(ctx), types.ErrConnection)

	assertSessionsReleased(t, m)
}
