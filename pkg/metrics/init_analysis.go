package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initAnalysisMetrics() {
	r.AnalysisRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrank_analysis_runs_total",
			Help: "Total number of analysis runs",
		},
		[]string{"analysis", "status"}, // status: success, error
	)

	r.AnalysisRunDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphrank_analysis_run_duration_seconds",
			Help:    "Duration of analysis runs in seconds, extraction to last write",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"analysis"},
	)

	r.AnalysisEdgesLast = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graphrank_analysis_edges",
			Help: "Edges extracted by the most recent run",
		},
		[]string{"analysis"},
	)

	r.AnalysisNodesLast = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graphrank_analysis_nodes",
			Help: "Entities analysed by the most recent run",
		},
		[]string{"analysis"},
	)

	r.AnalysisWritesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrank_analysis_writes_total",
			Help: "Result writes by outcome",
		},
		[]string{"analysis", "outcome"}, // written, unmatched
	)

	r.AnalysisModularityLast = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrank_community_modularity",
			Help: "Modularity of the most recent community partition",
		},
	)

	r.AnalysisIterationsLast = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrank_pagerank_iterations",
			Help: "Power iterations used by the most recent ranking",
		},
	)

	r.StoreErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrank_store_errors_total",
			Help: "Store failures by phase and class",
		},
		[]string{"phase", "class"}, // phase: extract, write; class: connection, query, other
	)
}
