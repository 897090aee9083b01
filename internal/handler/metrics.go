package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	tcpMessagesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the service collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hermes_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		tcpMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_tcp_messages_total",
				Help: "Total number of TCP message-pattern commands by command and outcome.",
			},
			[]string{"command", "outcome"},
		),
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration, m.tcpMessagesTotal)
	return m
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTCPMessage records a handled TCP command.
func (m *Metrics) ObserveTCPMessage(command, outcome string) {
	m.tcpMessagesTotal.WithLabelValues(command, outcome).Inc()
}

// Middleware instruments HTTP requests with count and latency collectors.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := routePattern(r)
		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
