// Package metrics exposes the process-internal Prometheus collectors.
// Mounting them over HTTP is left to whichever dashboard process embeds
// this core; Handler returns the registry's http.Handler for that purpose.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cuesync_sessions_active",
		Help: "Currently connected sync sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cuesync_sessions_total",
		Help: "Total sessions created",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cuesync_stage_duration_seconds",
		Help:    "Per-stage latency (capture, fingerprint, transcribe, detect, dispatch)",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_errors_total",
		Help: "Error counts by component and kind",
	}, []string{"component", "kind"})

	AudioChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cuesync_audio_chunks_total",
		Help: "Total audio chunks captured",
	})

	ChunksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cuesync_audio_chunks_dropped_total",
		Help: "Chunks dropped by newest-wins backpressure",
	})

	CuesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_cues_dispatched_total",
		Help: "Cue start/end events dispatched to clients",
	}, []string{"event"})

	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_detections_total",
		Help: "Profanity detections by severity",
	}, []string{"severity"})

	AdvisorTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cuesync_advisor_timeouts_total",
		Help: "Contextual advisor calls that missed the deadline",
	})

	SyncConfidence = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cuesync_sync_confidence",
		Help: "Most recent subtitle-text sync confidence observed",
	})
)

// Handler returns the Prometheus scrape handler for the default registry.
// The embedding process decides whether and where to mount it; this core
// never opens an HTTP listener of its own for metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
