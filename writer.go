package graphrank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/go-graphrank/pkg/driver"
	"github.com/soundprediction/go-graphrank/pkg/types"
)

// Writer persists analysis results as entity attributes, one write
// transaction per entity in ascending id order. Writes already applied when
// a later one fails are not rolled back.
type Writer struct {
	connector driver.Connector
	schema    driver.Schema
	logger    *slog.Logger
}

// NewWriter creates a writer over the given connector.
func NewWriter(connector driver.Connector, schema driver.Schema, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{connector: connector, schema: schema, logger: logger}
}

// WriteCommunities sets communityId on every entity of the partition.
func (w *Writer) WriteCommunities(ctx context.Context, partition types.Partition) (types.WriteSummary, error) {
	return w.write(ctx, types.CommunityAttribute, partition.SortedIDs(), func(id types.EntityID) any {
		return int64(partition[id])
	})
}

// WriteScores sets pagerank on every scored entity.
func (w *Writer) WriteScores(ctx context.Context, scores types.Scores) (types.WriteSummary, error) {
	return w.write(ctx, types.PageRankAttribute, scores.SortedIDs(), func(id types.EntityID) any {
		return scores[id]
	})
}

// write returns the counts reached so far together with any error, so a
// failed run can still report how much was applied.
func (w *Writer) write(ctx context.Context, attr types.Attribute, ids []types.EntityID, value func(types.EntityID) any) (types.WriteSummary, error) {
	var summary types.WriteSummary
	if len(ids) == 0 {
		return summary, nil
	}

	store, err := w.connector.Connect(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to connect for write: %w", err)
	}
	defer closeStore(ctx, store, w.logger)

	for _, id := range ids {
		summary.Attempted++
		matched, err := store.SetProperty(ctx, w.schema, id, attr, value(id))
		if err != nil {
			return summary, fmt.Errorf("failed to write %s for %q after %d writes: %w", attr, id, summary.Written, err)
		}
		if !matched {
			summary.Unmatched++
			w.logger.DebugContext(ctx, "No entity matched result", "id", id, "attribute", attr)
			continue
		}
		summary.Written++
	}

	w.logger.InfoContext(ctx, "Persisted results",
		"attribute", attr, "written", summary.Written, "unmatched", summary.Unmatched)
	return summary, nil
}
