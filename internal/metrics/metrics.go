// Package metrics holds the Prometheus instruments for the scan pipeline.
// Instruments are registered on the default registry at init and exposed by
// the API server on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskshield_scans_processed_total",
			Help: "Scans that reached a terminal state",
		},
		[]string{"status", "media_kind"},
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskshield_scan_duration_seconds",
			Help:    "Wall time from claim to terminal state",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"media_kind"},
	)

	ScansInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskshield_scans_in_flight",
			Help: "Scans currently being processed",
		},
	)

	CompositeScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskshield_composite_score",
			Help:    "Distribution of composite risk scores",
			Buckets: []float64{25, 50, 75, 90, 100},
		},
	)

	ProvenanceStatuses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskshield_provenance_status_total",
			Help: "Provenance verification outcomes",
		},
		[]string{"status"},
	)

	VisionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskshield_vision_requests_total",
			Help: "Vision service calls by analyzer and outcome",
		},
		[]string{"analyzer", "outcome"}, // outcome: ok, call_error, parse_error
	)

	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskshield_side_effect_failures_total",
			Help: "Best-effort tasks that failed or were dropped",
		},
		[]string{"task", "reason"}, // reason: error, dropped
	)
)

// ObserveScan records a scan reaching a terminal state.
func ObserveScan(status, mediaKind string, elapsed time.Duration) {
	if mediaKind == "" {
		mediaKind = "unknown"
	}
	ScansProcessed.WithLabelValues(status, mediaKind).Inc()
	ScanDuration.WithLabelValues(mediaKind).Observe(elapsed.Seconds())
}
