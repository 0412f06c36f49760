package graphrank

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/soundprediction/go-graphrank/pkg/community"
	"github.com/soundprediction/go-graphrank/pkg/driver"
	"github.com/soundprediction/go-graphrank/pkg/metrics"
	"github.com/soundprediction/go-graphrank/pkg/rank"
	"github.com/soundprediction/go-graphrank/pkg/types"
)

// DefaultTopN is the number of highest-ranked entities kept in a ranking
// report.
const DefaultTopN = 10

// RunRecorder persists finished runs. Exactly one of partition and scores is
// set for a run that reached the analysis step.
type RunRecorder interface {
	RecordRun(ctx context.Context, report *types.RunReport, partition types.Partition, scores types.Scores) error
}

// Client runs the Extract → Analyze → Write pipeline for both analyses.
// Runs share no mutable state; callers that must not overlap two runs
// serialize them.
type Client struct {
	connector   driver.Connector
	schema      driver.Schema
	extractor   *Extractor
	writer      *Writer
	communities *community.Builder
	ranker      *rank.Ranker
	metrics     *metrics.Registry
	recorder    RunRecorder
	logger      *slog.Logger
	topN        int
}

// Config holds configuration for the pipeline client.
type Config struct {
	// Schema selects the entities and relationships analysed; zero value
	// means driver.DefaultSchema().
	Schema driver.Schema
	// PageRank parameters; zero value means rank.DefaultOptions().
	PageRank rank.Options
	// TopN entities kept in ranking reports; zero means DefaultTopN.
	TopN int
	// Logger receives progress and error logs.
	Logger *slog.Logger
	// Metrics, when set, records every run.
	Metrics *metrics.Registry
	// Recorder, when set, stores every run and its results.
	Recorder RunRecorder
}

// NewClient creates a new pipeline client with the provided configuration.
func NewClient(connector driver.Connector, config *Config) *Client {
	if config == nil {
		config = &Config{}
	}

	schema := config.Schema
	if schema.Label == "" {
		schema = driver.DefaultSchema()
	}
	opts := config.PageRank
	if opts == (rank.Options{}) {
		opts = rank.DefaultOptions()
	}
	topN := config.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		connector:   connector,
		schema:      schema,
		extractor:   NewExtractor(connector, schema, logger),
		writer:      NewWriter(connector, schema, logger),
		communities: community.NewBuilder(logger),
		ranker:      rank.NewRanker(opts, logger),
		metrics:     config.Metrics,
		recorder:    config.Recorder,
		logger:      logger,
		topN:        topN,
	}
}

// Run executes the named analysis.
func (c *Client) Run(ctx context.Context, kind types.AnalysisKind) (*types.RunReport, error) {
	switch kind {
	case types.CommunityAnalysis:
		return c.RunCommunities(ctx)
	case types.PageRankAnalysis:
		return c.RunPageRank(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown analysis %q", types.ErrConfiguration, kind)
	}
}

// RunCommunities partitions the graph into communities and writes each
// entity's communityId. The report is returned even when the run fails and
// holds the counts reached before the failure.
func (c *Client) RunCommunities(ctx context.Context) (*types.RunReport, error) {
	ctx, report := c.begin(ctx, types.CommunityAnalysis)

	edges, err := c.extractor.Extract(ctx)
	if err != nil {
		c.recordStoreError("extract", err)
		return report, c.finish(ctx, report, nil, nil, err)
	}
	report.Edges = len(edges)

	result := c.communities.Detect(edges)
	report.Nodes = len(result.Partition)
	report.Communities = result.Communities
	report.Modularity = result.Modularity
	report.Converged = true
	c.logger.InfoContext(ctx, "Detected communities",
		"nodes", report.Nodes,
		"communities", report.Communities,
		"levels", result.Levels,
		"modularity", result.Modularity)

	summary, err := c.writer.WriteCommunities(ctx, result.Partition)
	report.Written, report.Unmatched = summary.Written, summary.Unmatched
	if err != nil {
		c.recordStoreError("write", err)
	}
	return report, c.finish(ctx, report, result.Partition, nil, err)
}

// RunPageRank ranks entities by importance and writes each entity's
// pagerank. Extracted pairs are ranked as directed links source → target;
// the undirected extraction normally returns both orientations, which makes
// the link set symmetric.
func (c *Client) RunPageRank(ctx context.Context) (*types.RunReport, error) {
	ctx, report := c.begin(ctx, types.PageRankAnalysis)

	edges, err := c.extractor.Extract(ctx)
	if err != nil {
		c.recordStoreError("extract", err)
		return report, c.finish(ctx, report, nil, nil, err)
	}
	report.Edges = len(edges)

	if oneWay := countOneWay(edges); oneWay > 0 {
		c.logger.WarnContext(ctx, "Ranking one-way links as directed", "one_way_links", oneWay)
	}

	result := c.ranker.Rank(edges)
	report.Nodes = len(result.Scores)
	report.Iterations = result.Iterations
	report.Converged = result.Converged
	report.TopEntities = rank.Top(result.Scores, c.topN)
	c.logger.InfoContext(ctx, "Ranked entities",
		"nodes", report.Nodes,
		"iterations", result.Iterations,
		"converged", result.Converged)

	summary, err := c.writer.WriteScores(ctx, result.Scores)
	report.Written, report.Unmatched = summary.Written, summary.Unmatched
	if err != nil {
		c.recordStoreError("write", err)
	}
	return report, c.finish(ctx, report, nil, result.Scores, err)
}

// Stats counts the entities and relationships the analyses read.
func (c *Client) Stats(ctx context.Context) (*driver.GraphStats, error) {
	store, err := c.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect for stats: %w", err)
	}
	defer closeStore(ctx, store, c.logger)

	return store.GetStats(ctx, c.schema)
}

// Ping verifies that the store is reachable and accepts the credentials.
func (c *Client) Ping(ctx context.Context) error {
	store, err := c.connector.Connect(ctx)
	if err != nil {
		return err
	}
	closeStore(ctx, store, c.logger)
	return nil
}

func (c *Client) begin(ctx context.Context, kind types.AnalysisKind) (context.Context, *types.RunReport) {
	report := &types.RunReport{
		ID:        uuid.New().String(),
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}
	ctx = context.WithValue(ctx, types.ContextKeyRunID, report.ID)
	ctx = context.WithValue(ctx, types.ContextKeyAnalysis, string(kind))

	c.logger.InfoContext(ctx, "Starting analysis", "analysis", kind, "run_id", report.ID)
	return ctx, report
}

// finish stamps the report, records it and returns runErr unchanged. A
// failure to record history is logged, never returned.
func (c *Client) finish(ctx context.Context, report *types.RunReport, partition types.Partition, scores types.Scores, runErr error) error {
	report.FinishedAt = time.Now().UTC()
	if runErr != nil {
		report.Error = runErr.Error()
		c.logger.ErrorContext(ctx, "Analysis failed",
			"analysis", report.Kind,
			"written", report.Written,
			"error", runErr)
	} else {
		c.logger.InfoContext(ctx, "Analysis finished",
			"analysis", report.Kind,
			"duration", report.Duration())
	}

	if c.metrics != nil {
		c.metrics.RecordRun(report)
	}
	if c.recorder != nil {
		if err := c.recorder.RecordRun(context.WithoutCancel(ctx), report, partition, scores); err != nil {
			c.logger.WarnContext(ctx, "Failed to record run history", "error", err)
		}
	}
	return runErr
}

func (c *Client) recordStoreError(phase string, err error) {
	if c.metrics != nil {
		c.metrics.RecordStoreError(phase, err)
	}
}

// countOneWay counts distinct links whose reverse was not extracted.
func countOneWay(edges []types.EdgePair) int {
	links := make(map[types.EdgePair]struct{}, len(edges))
	for _, e := range edges {
		links[e] = struct{}{}
	}
	oneWay := 0
	for e := range links {
		if _, ok := links[types.EdgePair{Source: e.Target, Target: e.Source}]; !ok {
			oneWay++
		}
	}
	return oneWay
}
