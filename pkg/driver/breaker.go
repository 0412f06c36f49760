package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/go-graphrank/pkg/types"
)

// BreakerSettings configures a BreakerConnector.
type BreakerSettings struct {
	Name string
	// ConsecutiveFailures opens the breaker after this many connection
	// failures in a row.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before letting a probe
	// through.
	Timeout time.Duration
}

// DefaultBreakerSettings returns the settings used by the server.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "neo4j",
		ConsecutiveFailures: 3,
		Timeout:             30 * time.Second,
	}
}

// BreakerConnector guards a Connector and the stores it opens with a circuit
// breaker. Only connection failures count against the breaker; query errors
// and unmatched writes do not. While open, every call fails fast with
// types.ErrConnection.
type BreakerConnector struct {
	next   Connector
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewBreakerConnector wraps next.
func NewBreakerConnector(next Connector, settings BreakerSettings, logger *slog.Logger) *BreakerConnector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = DefaultBreakerSettings().ConsecutiveFailures
	}

	bc := &BreakerConnector{next: next, logger: logger}
	bc.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("store circuit breaker changed state",
				"breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, types.ErrConnection)
		},
	})
	return bc
}

// State reports the breaker state ("closed", "half-open" or "open").
func (b *BreakerConnector) State() string {
	return b.cb.State().String()
}

// Connect implements Connector.
func (b *BreakerConnector) Connect(ctx context.Context) (GraphStore, error) {
	store, err := execute(b.cb, func() (GraphStore, error) {
		return b.next.Connect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &breakerStore{GraphStore: store, cb: b.cb}, nil
}

type breakerStore struct {
	GraphStore
	cb *gobreaker.CircuitBreaker
}

func (s *breakerStore) FetchEdges(ctx context.Context, schema Schema) ([]types.EdgePair, error) {
	return execute(s.cb, func() ([]types.EdgePair, error) {
		return s.GraphStore.FetchEdges(ctx, schema)
	})
}

func (s *breakerStore) SetProperty(ctx context.Context, schema Schema, id types.EntityID, attr types.Attribute, value any) (bool, error) {
	return execute(s.cb, func() (bool, error) {
		return s.GraphStore.SetProperty(ctx, schema, id, attr, value)
	})
}

func (s *breakerStore) GetStats(ctx context.Context, schema Schema) (*GraphStats, error) {
	return execute(s.cb, func() (*GraphStats, error) {
		return s.GraphStore.GetStats(ctx, schema)
	})
}

// execute runs fn through cb and maps the breaker's own rejections onto
// types.ErrConnection.
func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: store circuit breaker %s: %w", types.ErrConnection, cb.Name(), err)
	}
	if err != nil {
		return zero, err
	}
	value, _ := result.(T)
	return value, nil
}
