package driver_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/soundprediction/go-graphrank/pkg/driver"
	"github.com/soundprediction/go-graphrank/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_FetchEdges(t *testing.T) {
	m := driver.NewMemoryStore()
	m.AddRelationship("A", "FRIENDS_WITH", "B")
	m.AddRelationship("B", "PARTICIPATES_IN", "C")
	m.AddRelationship("C", "KNOWS", "A")
	m.AddRelationship("D", "FRIENDS_WITH", "D")

	ctx := context.Background()
	store, err := m.Connect(ctx)
	require.NoError(t, err)
	defer store.Close(ctx)

	edges, err := store.FetchEdges(ctx, driver.DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, []types.EdgePair{
		{Source: "A", Target: "B"},
		{Source: "B", Target: "A"},
		{Source: "B", Target: "C"},
		{Source: "C", Target: "B"},
		{Source: "D", Target: "D"},
	}, edges)

	schema := driver.DefaultSchema()
	schema.RelationshipKinds = []string{"NO_SUCH_KIND"}
	edges, err = store.FetchEdges(ctx, schema)
	require.NoError(t, err)
	assert.NotNil(t, edges)
	assert.Empty(t, edges)
}

func TestMemoryStore_SetProperty(t *testing.T) {
	m := driver.NewMemoryStore()
	m.AddEntity("A")

	ctx := context.Background()
	store, err := m.Connect(ctx)
	require.NoError(t, err)
	defer store.Close(ctx)

	matched, err := store.SetProperty(ctx, driver.DefaultSchema(), "A", types.PageRankAttribute, 0.5)
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = store.SetProperty(ctx, driver.DefaultSchema(), "Z", types.PageRankAttribute, 0.5)
	require.NoError(t, err)
	assert.False(t, matched)

	value, ok := m.Property("A", types.PageRankAttribute)
	require.True(t, ok)
	assert.Equal(t, 0.5, value)

	_, ok = m.Property("Z", types.PageRankAttribute)
	assert.False(t, ok)
}

func TestMemoryStore_Faults(t *testing.T) {
	ctx := context.Background()
	boom := fmt.Errorf("%w: refused", types.ErrConnection)

	t.Run("connect", func(t *testing.T) {
		m := driver.NewMemoryStore()
		m.FailConnect(boom)

		_, err := m.Connect(ctx)
		assert.ErrorIs(t, err, types.ErrConnection)

		opened, closed := m.Sessions()
		assert.Zero(t, opened)
		assert.Zero(t, closed)
	})

	t.Run("writes after n", func(t *testing.T) {
		m := driver.NewMemoryStore()
		m.AddEntity("A")
		m.AddEntity("B")
		m.FailWritesAfter(1, boom)

		store, err := m.Connect(ctx)
		require.NoError(t, err)
		defer store.Close(ctx)

		_, err = store.SetProperty(ctx, driver.DefaultSchema(), "A", types.CommunityAttribute, int64(0))
		require.NoError(t, err)
		_, err = store.SetProperty(ctx, driver.DefaultSchema(), "B", types.CommunityAttribute, int64(0))
		assert.ErrorIs(t, err, types.ErrConnection)

		_, ok := m.Property("B", types.CommunityAttribute)
		assert.False(t, ok)
	})

	t.Run("closed session", func(t *testing.T) {
		m := driver.NewMemoryStore()
		store, err := m.Connect(ctx)
		require.NoError(t, err)
		require.NoError(t, store.Close(ctx))
		require.NoError(t, store.Close(ctx))

		_, err = store.FetchEdges(ctx, driver.DefaultSchema())
		assert.ErrorIs(t, err, types.ErrConnection)

		opened, closed := m.Sessions()
		assert.Equal(t, 1, opened)
		assert.Equal(t, 1, closed)
	})
}

func TestMemoryStore_GetStats(t *testing.T) {
	m := driver.NewMemoryStore()
	m.AddRelationship("A", "FRIENDS_WITH", "B")
	m.AddRelationship("A", "FRIENDS_WITH", "C")
	m.AddRelationship("B", "KNOWS", "C")
	m.AddEntity("D")

	ctx := context.Background()
	store, err := m.Connect(ctx)
	require.NoError(t, err)
	defer store.Close(ctx)

	stats, err := store.GetStats(ctx, driver.DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Entities)
	assert.Equal(t, map[string]int64{"FRIENDS_WITH": 2, "PARTICIPATES_IN": 0}, stats.RelationshipsByKind)
}

func TestBreakerConnector(t *testing.T) {
	ctx := context.Background()
	m := driver.NewMemoryStore()
	m.AddEntity("A")
	m.FailConnect(fmt.Errorf("%w: refused", types.ErrConnection))

	bc := driver.NewBreakerConnector(m, driver.BreakerSettings{
		Name:                "test",
		ConsecutiveFailures: 2,
		Timeout:             time.Hour,
	}, nil)
	assert.Equal(t, "closed", bc.State())

	for i := 0; i < 2; i++ {
		_, err := bc.Connect(ctx)
		require.ErrorIs(t, err, types.ErrConnection)
	}
	assert.Equal(t, "open", bc.State())

	// The store has recovered, but the open breaker fails fast.
	m.FailConnect(nil)
	_, err := bc.Connect(ctx)
	require.ErrorIs(t, err, types.ErrConnection)
	assert.Contains(t, err.Error(), "circuit breaker")

	opened, _ := m.Sessions()
	assert.Zero(t, opened)
}

func TestBreakerConnector_QueryErrorsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	m := driver.NewMemoryStore()
	m.AddRelationship("A", "FRIENDS_WITH", "B")
	m.FailFetch(fmt.Errorf("%w: syntax", types.ErrQuery))

	bc := driver.NewBreakerConnector(m, driver.BreakerSettings{Name: "test", ConsecutiveFailures: 1, Timeout: time.Hour}, nil)

	store, err := bc.Connect(ctx)
	require.NoError(t, err)
	defer store.Close(ctx)

	for i := 0; i < 3; i++ {
		_, err := store.FetchEdges(ctx, driver.DefaultSchema())
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrQuery))
	}
	assert.Equal(t, "closed", bc.State())

	m.FailFetch(nil)
	edges, err := store.FetchEdges(ctx, driver.DefaultSchema())
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	// Closing goes straight to the wrapped session.
	require.NoError(t, store.Close(ctx))
	_, closed := m.Sessions()
	assert.Equal(t, 1, closed)
}
