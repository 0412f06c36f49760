package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/go-graphrank/pkg/config"
	"github.com/soundprediction/go-graphrank/pkg/metrics"
	"github.com/soundprediction/go-graphrank/pkg/server/handlers"
)

// Service is what the HTTP API needs from the pipeline.
type Service interface {
	handlers.Analyzer
	handlers.Pinger
}

// Server exposes the analyses over HTTP.
type Server struct {
	cfg     config.ServerConfig
	service Service
	history handlers.RunHistory
	metrics *metrics.Registry
	logger  *slog.Logger

	engine *gin.Engine
	http   *http.Server
}

// Options holds the optional collaborators of a Server.
type Options struct {
	History handlers.RunHistory
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// New creates a server; call Setup before Start.
func New(cfg config.ServerConfig, service Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}
	return &Server{
		cfg:     cfg,
		service: service,
		history: opts.History,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// Setup builds the router.
func (s *Server) Setup() {
	if s.cfg.Mode != "" {
		gin.SetMode(s.cfg.Mode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.observe())

	health := handlers.NewHealthHandler(s.service)
	analysis := handlers.NewAnalysisHandler(s.service, s.history, s.logger)

	engine.GET("/health", health.HealthCheck)
	engine.GET("/ready", health.ReadinessCheck)
	engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/analyses/:kind", analysis.Run)
		v1.GET("/stats", analysis.Stats)
		v1.GET("/runs", analysis.Runs)
	}

	s.engine = engine
}

// Handler returns the router, building it if needed.
func (s *Server) Handler() http.Handler {
	if s.engine == nil {
		s.Setup()
	}
	return s.engine
}

// Start listens until Stop is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// observe records request metrics and logs each request at debug level.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(status), time.Since(start))
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start))
	}
}
