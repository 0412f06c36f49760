package graphrank

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soundprediction/go-graphrank/pkg/driver"
	"github.com/soundprediction/go-graphrank/pkg/metrics"
	"github.com/soundprediction/go-graphrank/pkg/server"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the graphrank HTTP server",
	Long: `Start the graphrank HTTP server to trigger analyses over REST.

The server provides endpoints for:
- Running an analysis (POST /api/v1/analyses/community, /api/v1/analyses/pagerank)
- Graph statistics and run history
- Health checks and Prometheus metrics

Analyses are executed one at a time.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")
}

func runServer(cmd *cobra.Command, args []string) error {
	reg := metrics.NewRegistry()
	withBreaker := func(next driver.Connector, logger *slog.Logger) driver.Connector {
		return driver.NewBreakerConnector(next, driver.DefaultBreakerSettings(), logger)
	}

	a, err := newApp(cmd.ErrOrStderr(), appOptions{wrap: withBreaker, metrics: reg})
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("host") {
		a.cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		a.cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		a.cfg.Server.Mode = serverMode
	}

	opts := server.Options{Metrics: reg, Logger: a.logger}
	if a.recorder != nil {
		opts.History = a.recorder
	}
	srv := server.New(a.cfg.Server, a.client, opts)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start()
	}()

	select {
	case err := <-serverErrChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		a.logger.Info("Received signal, shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		a.logger.Info("Server stopped gracefully")
		return nil
	}
}
