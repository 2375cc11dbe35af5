package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric this module exports, adapted from
// bronze-copier's partition/ledger dimensions to this domain's
// cycle/tier/category dimensions.
type Metrics struct {
	MatchesCollected  *prometheus.CounterVec
	MatchesSkipped    *prometheus.CounterVec
	MatchesFailed     *prometheus.CounterVec
	PlayersDiscovered *prometheus.CounterVec

	RequestDuration *prometheus.HistogramVec
	RateLimitWaits  *prometheus.CounterVec
	RetryAttempts   *prometheus.CounterVec

	StageDuration *prometheus.HistogramVec
	StageSkipped  *prometheus.CounterVec
	StageFailed   *prometheus.CounterVec

	QueueDepth       prometheus.Gauge
	InFlightRequests prometheus.Gauge

	ErrorsByCategory *prometheus.CounterVec

	QualityScore *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// Init constructs and registers every metric under namespace, defaulting to
// "tftcollector". Call once at process startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tftcollector"
	}

	m := &Metrics{
		MatchesCollected: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "matches_collected_total", Help: "Total matches successfully collected"},
			[]string{"cycle_id", "region"},
		),
		MatchesSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "matches_skipped_total", Help: "Total matches skipped as already complete or in-flight"},
			[]string{"cycle_id", "region"},
		),
		MatchesFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "matches_failed_total", Help: "Total matches that failed to collect"},
			[]string{"cycle_id", "region"},
		),
		PlayersDiscovered: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "players_discovered_total", Help: "Total distinct players discovered"},
			[]string{"cycle_id", "region", "tier"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "riot_api_request_duration_seconds", Help: "Riot API request latency", Buckets: prometheus.ExponentialBuckets(0.01, 2, 12)},
			[]string{"endpoint", "status"},
		),
		RateLimitWaits: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_waits_total", Help: "Total times a request waited on the dual-window rate limiter"},
			[]string{"window"},
		),
		RetryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "retry_attempts_total", Help: "Total retry attempts by category"},
			[]string{"category"},
		),
		StageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "pipeline_stage_duration_seconds", Help: "Pipeline stage execution time", Buckets: prometheus.ExponentialBuckets(0.1, 2, 12)},
			[]string{"stage"},
		),
		StageSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "pipeline_stage_skipped_total", Help: "Total pipeline stages skipped due to fresh outputs"},
			[]string{"stage"},
		),
		StageFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "pipeline_stage_failed_total", Help: "Total pipeline stage failures"},
			[]string{"stage"},
		),
		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "match_queue_depth", Help: "Current depth of the pending match-detail queue"},
		),
		InFlightRequests: promauto.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "in_flight_requests", Help: "Current number of in-flight Riot API requests"},
		),
		ErrorsByCategory: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "errors_total", Help: "Total errors recorded by taxonomy category"},
			[]string{"category"},
		),
		QualityScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "quality_score", Help: "Most recent weighted quality score per cycle"},
			[]string{"cycle_id"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global Metrics instance, or nil if Init was never called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer serves /metrics and /health on address, blocking until the
// server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}
