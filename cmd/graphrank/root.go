package graphrank

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/soundprediction/go-graphrank"
	"github.com/soundprediction/go-graphrank/pkg/config"
	"github.com/soundprediction/go-graphrank/pkg/driver"
	"github.com/soundprediction/go-graphrank/pkg/history"
	"github.com/soundprediction/go-graphrank/pkg/logger"
	"github.com/soundprediction/go-graphrank/pkg/metrics"
	"github.com/soundprediction/go-graphrank/pkg/telemetry"
	"github.com/soundprediction/go-graphrank/pkg/types"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// newConnector opens the graph store; replaced in tests.
	newConnector = func(cfg config.DatabaseConfig) driver.Connector {
		return driver.NewNeo4jConnector(cfg)
	}
)

var rootCmd = &cobra.Command{
	Use:   "graphrank",
	Short: "Community detection and PageRank over a Neo4j social graph",
	Long: `graphrank reads the Person graph from Neo4j, computes community
membership (Louvain) or importance (PageRank), and writes the result back to
every Person as communityId or pagerank.

Connection settings come from NEO4J_URI, NEO4J_USER and NEO4J_PASS, from a
.env file in the working directory, or from a config file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps a command error to the process exit status: 2 for
// configuration problems, 1 for every other failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, types.ErrConfiguration):
		return 2
	default:
		return 1
	}
}

// app bundles everything a command needs, built from the loaded config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder *history.Recorder
	client   *graphrank.Client
}

type appOptions struct {
	// wrap, when set, decorates the store connector.
	wrap    func(driver.Connector, *slog.Logger) driver.Connector
	metrics *metrics.Registry
}

// newApp loads configuration and wires the pipeline. Configuration errors
// surface here, before any store access.
func newApp(stderr io.Writer, opts appOptions) (*app, error) {
	cfg, err := config.Load(config.Options{ConfigFile: cfgFile, LogLevel: logLevel})
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	var handler slog.Handler = logger.NewColorHandler(stderr, &slog.HandlerOptions{Level: level})

	a := &app{cfg: cfg}
	if cfg.History.Path != "" {
		a.recorder, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
		}
		handler, err = telemetry.NewDuckDBHandler(handler, a.recorder.DB())
		if err != nil {
			a.recorder.Close()
			return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
		}
	}
	a.logger = slog.New(handler)

	connector := newConnector(cfg.Database)
	if opts.wrap != nil {
		connector = opts.wrap(connector, a.logger)
	}

	clientCfg := &graphrank.Config{
		Schema: driver.Schema{
			Label:             cfg.Schema.Label,
			KeyProperty:       cfg.Schema.KeyProperty,
			RelationshipKinds: cfg.Schema.RelationshipKinds,
		},
		Logger:  a.logger,
		Metrics: opts.metrics,
	}
	if a.recorder != nil {
		clientCfg.Recorder = a.recorder
	}
	a.client = graphrank.NewClient(connector, clientCfg)

	return a, nil
}

func (a *app) Close() {
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close history: %v\n", err)
		}
	}
}
