package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/go-graphrank/pkg/driver"
	"github.com/soundprediction/go-graphrank/pkg/server/dto"
	"github.com/soundprediction/go-graphrank/pkg/types"
)

// Analyzer runs analyses against the graph store.
type Analyzer interface {
	Run(ctx context.Context, kind types.AnalysisKind) (*types.RunReport, error)
	Stats(ctx context.Context) (*driver.GraphStats, error)
}

// RunHistory lists recorded runs.
type RunHistory interface {
	Recent(ctx context.Context, kind types.AnalysisKind, limit int) ([]types.RunReport, error)
}

// AnalysisHandler handles analysis requests. At most one analysis runs at a
// time; further requests wait for it to finish.
type AnalysisHandler struct {
	analyzer Analyzer
	history  RunHistory
	logger   *slog.Logger

	mu sync.Mutex
}

// NewAnalysisHandler creates a new analysis handler. history may be nil.
func NewAnalysisHandler(analyzer Analyzer, history RunHistory, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AnalysisHandler{
		analyzer: analyzer,
		history:  history,
		logger:   logger,
	}
}

// Run handles POST /api/v1/analyses/:kind
func (h *AnalysisHandler) Run(c *gin.Context) {
	kind := types.AnalysisKind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "unknown_analysis",
			Message: "analysis must be one of: community, pagerank",
		})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := context.WithValue(c.Request.Context(), types.ContextKeyRequestSource, "http")
	report, err := h.analyzer.Run(ctx, kind)
	if err != nil {
		c.JSON(statusFor(err), dto.AnalysisResponse{
			Success: false,
			Report:  report,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.AnalysisResponse{
		Success: true,
		Report:  report,
	})
}

// Stats handles GET /api/v1/stats
func (h *AnalysisHandler) Stats(c *gin.Context) {
	stats, err := h.analyzer.Stats(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), dto.ErrorResponse{
			Error:   "stats_failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.Result{Success: true, Data: stats})
}

// Runs handles GET /api/v1/runs
func (h *AnalysisHandler) Runs(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "history_disabled",
			Message: "run history is not configured",
		})
		return
	}

	var req dto.RunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	runs, err := h.history.Recent(c.Request.Context(), types.AnalysisKind(req.Kind), req.Limit)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "Failed to read run history", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "history_failed",
			Message: err.Error(),
		})
		return
	}
	if runs == nil {
		runs = []types.RunReport{}
	}

	c.JSON(http.StatusOK, dto.RunsResponse{Runs: runs, Total: len(runs)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrConnection):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
