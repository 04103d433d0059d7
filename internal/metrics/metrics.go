// Package metrics holds the Prometheus instrumentation for the service:
// HTTP request counts and latency, upstream page fetches, and per-contract
// valuation outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	UpstreamPagesTotal  *prometheus.CounterVec
	UpstreamErrorsTotal *prometheus.CounterVec
	ContractsValued     prometheus.Counter
	ContractsDiscarded  *prometheus.CounterVec
}

// New creates the metric set on its own registry so tests can create
// instances freely without duplicate-registration panics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		UpstreamPagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_pages_fetched_total",
				Help: "Total number of upstream chain pages fetched",
			},
			[]string{"provider"},
		),
		UpstreamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_errors_total",
				Help: "Total number of upstream request failures",
			},
			[]string{"provider", "status"},
		),
		ContractsValued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "contracts_valued_total",
				Help: "Total number of contracts successfully valued",
			},
		),
		ContractsDiscarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contracts_discarded_total",
				Help: "Total number of contracts discarded during valuation",
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamPagesTotal,
		m.UpstreamErrorsTotal,
		m.ContractsValued,
		m.ContractsDiscarded,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}
