package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// Analysis Metrics
	AnalysisRunsTotal      *prometheus.CounterVec
	AnalysisRunDuration    *prometheus.HistogramVec
	AnalysisEdgesLast      *prometheus.GaugeVec
	AnalysisNodesLast      *prometheus.GaugeVec
	AnalysisWritesTotal    *prometheus.CounterVec
	AnalysisModularityLast prometheus.Gauge
	AnalysisIterationsLast prometheus.Gauge

	// Store Metrics
	StoreErrorsTotal *prometheus.CounterVec

	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initAnalysisMetrics()
	r.initHTTPMetrics()

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
