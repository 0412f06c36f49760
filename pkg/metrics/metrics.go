package metrics

import (
	"errors"
	"time"

	"github.com/soundprediction/go-graphrank/pkg/types"
)

// RecordHTTPRequest records an HTTP request metric
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRun records a finished analysis run, successful or not.
func (r *Registry) RecordRun(report *types.RunReport) {
	analysis := string(report.Kind)

	status := "success"
	if report.Error != "" {
		status = "error"
	}
	r.AnalysisRunsTotal.WithLabelValues(analysis, status).Inc()
	r.AnalysisRunDuration.WithLabelValues(analysis).Observe(report.Duration().Seconds())
	r.AnalysisEdgesLast.WithLabelValues(analysis).Set(float64(report.Edges))
	r.AnalysisNodesLast.WithLabelValues(analysis).Set(float64(report.Nodes))
	r.AnalysisWritesTotal.WithLabelValues(analysis, "written").Add(float64(report.Written))
	r.AnalysisWritesTotal.WithLabelValues(analysis, "unmatched").Add(float64(report.Unmatched))

	if report.Error != "" {
		return
	}
	switch report.Kind {
	case types.CommunityAnalysis:
		r.AnalysisModularityLast.Set(report.Modularity)
	case types.PageRankAnalysis:
		r.AnalysisIterationsLast.Set(float64(report.Iterations))
	}
}

// RecordStoreError counts a store failure in the given phase.
func (r *Registry) RecordStoreError(phase string, err error) {
	r.StoreErrorsTotal.WithLabelValues(phase, errorClass(err)).Inc()
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, types.ErrConnection):
		return "connection"
	case errors.Is(err, types.ErrQuery):
		return "query"
	default:
		return "other"
	}
}
