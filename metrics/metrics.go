// Package metrics exports the engine's operational counters. Backpressure
// drops are expected under load and are surfaced here rather than as errors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinesight_frames_captured_total",
		Help: "Frames successfully read from the capture device",
	})

	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinesight_frames_dropped_total",
		Help: "Items evicted from a full queue, by queue",
	}, []string{"queue"})

	ReadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinesight_capture_read_failures_total",
		Help: "Transient camera read failures that were retried",
	})

	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinesight_analysis_cycles_total",
		Help: "Completed analysis worker cycles",
	})

	NodsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinesight_nods_detected_total",
		Help: "Nod events reported by the detector",
	})

	ClassifierCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinesight_classifier_calls_total",
		Help: "Remote emotion classification attempts, by outcome",
	}, []string{"outcome"})

	ClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dinesight_classifier_latency_seconds",
		Help:    "Latency of remote emotion classification calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	TokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinesight_classifier_tokens_total",
		Help: "Token usage metered by the classification service, by kind",
	}, []string{"kind"})
)

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
