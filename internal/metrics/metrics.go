// Package metrics holds the Prometheus collectors for the pipeline.
//
// Collectors are registered on an injected Registerer so tests can use a
// private registry and the service can expose the default one at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "weather_pipeline"

// Metrics groups every collector the pipeline updates.
type Metrics struct {
	// StoreRequests counts object store operations.
	// Labels: op (mkdirs, create, open), outcome (ok, warning, error)
	StoreRequests *prometheus.CounterVec

	// StageRuns counts pipeline stage attempts.
	// Labels: stage (ingest, notify), result (success, failure)
	StageRuns *prometheus.CounterVec

	// StageDuration measures the wall time of a single stage attempt.
	StageDuration *prometheus.HistogramVec

	// RowsIngested is the size of the last dataset written by ingest.
	RowsIngested prometheus.Gauge

	// SkippedCities counts cities that returned no rows during ingest.
	SkippedCities *prometheus.CounterVec

	// Commands counts bot and API requests by command and outcome.
	Commands *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		StoreRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "requests_total",
			Help:      "Object store operations by op and outcome.",
		}, []string{"op", "outcome"}),
		StageRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "runs_total",
			Help:      "Pipeline stage attempts by stage and result.",
		}, []string{"stage", "result"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Duration of a pipeline stage attempt.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		RowsIngested: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows",
			Help:      "Rows in the most recently written dataset.",
		}),
		SkippedCities: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "skipped_cities_total",
			Help:      "Cities skipped because the provider returned no rows.",
		}, []string{"city"}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frontend",
			Name:      "commands_total",
			Help:      "Ad-hoc commands by name and outcome.",
		}, []string{"command", "outcome"}),
	}
}

// NewNop returns collectors registered on a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
