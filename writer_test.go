package graphrank

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/soundprediction/go-graphrank/pkg/driver"
	"github.com/soundprediction/go-graphrank/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_UnmatchedEntities(t *testing.T) {
	m := driver.NewMemoryStore()
	m.AddEntity("A")
	m.AddEntity("B")

	w := NewWriter(m, driver.DefaultSchema(), nil)
	summary, err := w.WriteCommunities(context.Background(), types.Partition{"A": 0, "B": 1, "Ghost": 1})
	require.NoError(t, err)

	assert.Equal(t, types.WriteSummary{Attempted: 3, Written: 2, Unmatched: 1}, summary)

	value, ok := m.Property("B", types.CommunityAttribute)
	require.True(t, ok)
	assert.Equal(t, int64(1), value)
}

func TestWriter_Scores(t *testing.T) {
	m := driver.NewMemoryStore()
	m.AddEntity("A")

	w := NewWriter(m, driver.DefaultSchema(), nil)
	summary, err := w.WriteScores(context.Background(), types.Scores{"A": 0.25})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Written)

	value, ok := m.Property("A", types.PageRankAttribute)
	require.True(t, ok)
	assert.Equal(t, 0.25, value)
}

func TestExtractor_ClosesOnCancelledContext(t *testing.T) {
	m := driver.NewMemoryStore()
	m.AddRelationship("A", "FRIENDS_WITH", "B")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(m, driver.DefaultSchema(), nil).Extract(ctx)
	assert.ErrorIs(t, err, types.ErrConnection)

	opened, closed := m.Sessions()
	assert.Equal(t, opened, closed)
}

func TestCountOneWay(t *testing.T) {
	assert.Zero(t, countOneWay(nil))
	assert.Zero(t, countOneWay([]types.EdgePair{{Source: "A", Target: "B"}, {Source: "B", Target: "A"}}))
	assert.Zero(t, countOneWay([]types.EdgePair{{Source: "A", Target: "A"}}))
	assert.Equal(t, 2, countOneWay([]types.EdgePair{
		{Source: "A", Target: "B"},
		{Source: "A", Target: "B"},
		{Source: "A", Target: "C"},
		{Source: "C", Target: "D"},
		{Source: "D", Target: "C"},
	}))
}

func TestRunPageRank_WarnsOnOneWayLinks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	client := NewClient(oneWayConnector{driver.NewMemoryStore()}, &Config{Logger: logger})
	_, err := client.RunPageRank(context.Background())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Ranking one-way links as directed")
	assert.Contains(t, buf.String(), "one_way_links=1")
}

// oneWayConnector serves a single directed pair regardless of the store
// contents, the shape a directed extraction would produce.
type oneWayConnector struct {
	*driver.MemoryStore
}

func (c oneWayConnector) Connect(ctx context.Context) (driver.GraphStore, error) {
	store, err := c.MemoryStore.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return oneWayStore{store}, nil
}

type oneWayStore struct {
	driver.GraphStore
}

func (oneWayStore) FetchEdges(context.Context, driver.Schema) ([]types.EdgePair, error) {
	return []types.EdgePair{{Source: "A", Target: "B"}}, nil
}
