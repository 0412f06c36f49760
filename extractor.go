package graphrank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/go-graphrank/pkg/driver"
	"github.com/soundprediction/go-graphrank/pkg/types"
)

// Extractor reads the relationship pattern of a schema out of the store as
// an edge list.
type Extractor struct {
	connector driver.Connector
	schema    driver.Schema
	logger    *slog.Logger
}

// NewExtractor creates an extractor over the given connector.
func NewExtractor(connector driver.Connector, schema driver.Schema, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{connector: connector, schema: schema, logger: logger}
}

// Extract returns one pair per matched relationship orientation, without
// deduplication or self-loop filtering. The store connection is held only
// for the duration of the call.
func (e *Extractor) Extract(ctx context.Context) ([]types.EdgePair, error) {
	store, err := e.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect for extraction: %w", err)
	}
	defer closeStore(ctx, store, e.logger)

	edges, err := store.FetchEdges(ctx, e.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to extract edges: %w", err)
	}

	e.logger.DebugContext(ctx, "Extracted edges", "edges", len(edges), "label", e.schema.Label)
	return edges, nil
}

// closeStore releases a store even when ctx is already cancelled.
func closeStore(ctx context.Context, store driver.GraphStore, logger *slog.Logger) {
	if err := store.Close(context.WithoutCancel(ctx)); err != nil {
		logger.WarnContext(ctx, "Failed to close store connection", "error", err)
	}
}
