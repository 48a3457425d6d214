// Package metrics exposes Prometheus collectors for the HTTP layer and the
// savings-group engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartrewards",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smartrewards",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	contributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartrewards",
			Subsystem: "mukando",
			Name:      "contributions_total",
			Help:      "Contribution attempts by outcome.",
		},
		[]string{"outcome"},
	)

	contributedPoints = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartrewards",
			Subsystem: "mukando",
			Name:      "contributed_points_total",
			Help:      "Points moved from customer balances into group pools.",
		},
	)

	payouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartrewards",
			Subsystem: "mukando",
			Name:      "payouts_total",
			Help:      "Payout distributions by outcome.",
		},
		[]string{"outcome"},
	)

	payoutPoints = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartrewards",
			Subsystem: "mukando",
			Name:      "payout_points_total",
			Help:      "Bonus points credited to rotation recipients.",
		},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "smartrewards",
			Subsystem: "mukando",
			Name:      "payout_sweep_duration_seconds",
			Help:      "Duration of payout sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		contributions,
		contributedPoints,
		payouts,
		payoutPoints,
		sweepDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordContribution counts a contribution attempt.
func RecordContribution(outcome string, points int64) {
	contributions.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		contributedPoints.Add(float64(points))
	}
}

// RecordPayout counts a distribution attempt.
func RecordPayout(outcome string, points int64) {
	payouts.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		payoutPoints.Add(float64(points))
	}
}

// ObserveSweep records how long a payout sweep took.
func ObserveSweep(d time.Duration) {
	sweepDuration.Observe(d.Seconds())
}

// InstrumentHandler wraps the router with request metrics. Routes are
// labelled by chi route pattern to keep label cardinality bounded.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
