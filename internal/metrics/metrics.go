// Package metrics provides Prometheus instrumentation for the vault ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsTotal counts processed events, partitioned by kind and outcome
	// (applied, skipped, duplicate, conflict, arithmetic, spot_error, error).
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultledger_events_total",
		Help: "Total number of events processed",
	}, []string{"kind", "outcome"})

	// EventLatency tracks the time to apply and commit one event.
	EventLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaultledger_event_latency_seconds",
		Help:    "Event application latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// DataQualityWarnings counts recovered data-quality conditions.
	DataQualityWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultledger_data_quality_warnings_total",
		Help: "Data-quality warnings raised while applying events",
	}, []string{"reason"})

	// FeeTransfers counts transfers recognized as protocol fees.
	FeeTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultledger_fee_transfers_total",
		Help: "Share transfers to fee recipients",
	}, []string{"category"})

	// OracleUnavailable counts fee transfers the oracle could not value.
	OracleUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultledger_oracle_unavailable_total",
		Help: "Fee transfers recorded with zero reference value",
	})

	// IngestMessages counts feed messages by outcome
	// (committed, skipped, retry, halted).
	IngestMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultledger_ingest_messages_total",
		Help: "Feed messages handled by the consumer",
	}, []string{"outcome"})

	// FeedClients tracks connected WebSocket clients.
	FeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultledger_feed_clients",
		Help: "Number of connected WebSocket feed clients",
	})

	// FeedDropped counts notifications dropped on a full buffer.
	FeedDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultledger_feed_dropped_total",
		Help: "Feed notifications dropped because the buffer was full",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaultledger_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Label by route pattern to bound cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
