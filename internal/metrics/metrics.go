// Package metrics provides Prometheus instrumentation for the options engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SeriesCreated counts option series created, partitioned by underlying.
	SeriesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optix_series_created_total",
		Help: "Total number of option series created",
	}, []string{"underlying"})

	// ClaimsBurned counts claim tokens burned via early redemption.
	ClaimsBurned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optix_claims_burned_total",
		Help: "Total claim tokens burned through early redemption",
	})

	// Settlements counts settlement-price fixings by result.
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optix_settlements_total",
		Help: "Total settlement price fixings",
	}, []string{"result"}) // "itm", "otm", "override"

	// SeriesClosed counts terminal close-outs.
	SeriesClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optix_series_closed_total",
		Help: "Total option series closed",
	})

	// CollateralLocked tracks underlying collateral currently escrowed,
	// per underlying asset.
	CollateralLocked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "optix_collateral_locked",
		Help: "Underlying collateral currently escrowed in vaults",
	}, []string{"underlying"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "optix_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optix_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "optix_http_request_duration_seconds",
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

		// Use the raw path for the label; route cardinality is low.
		path := r.URL.Path
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
