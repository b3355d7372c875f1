// Package metrics provides Prometheus metrics for stop reconstruction runs
// and the local route server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector on its own registry. A nil *Metrics is valid
// and records nothing, so components can be built without metrics in tests.
type Metrics struct {
	Registry *prometheus.Registry

	Directions       *prometheus.CounterVec
	StopsWritten     *prometheus.CounterVec
	Hops             *prometheus.CounterVec
	HopDuration      prometheus.Histogram
	UpstreamAttempts *prometheus.CounterVec
	AuditFindings    *prometheus.GaugeVec
	HTTPRequests     *prometheus.CounterVec
}

// New creates and registers all metrics with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Directions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stopfill_directions_total",
			Help: "Line directions handled, by outcome",
		}, []string{"outcome"}),
		StopsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stopfill_stops_written_total",
			Help: "Stops written to line records, by provenance",
		}, []string{"provenance"}),
		Hops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stopfill_hops_total",
			Help: "Routed hops, by result (routed or fallback)",
		}, []string{"result"}),
		HopDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stopfill_hop_duration_seconds",
			Help:    "Time spent on one routed hop including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		UpstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stopfill_upstream_attempts_total",
			Help: "Attempts against external services, by service and result",
		}, []string{"service", "result"}),
		AuditFindings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stopfill_audit_findings",
			Help: "Findings of the last consistency audit, by kind",
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stopfill_http_requests_total",
			Help: "Route server requests, by path and status",
		}, []string{"path", "status"}),
	}

	m.Registry.MustRegister(
		m.Directions,
		m.StopsWritten,
		m.Hops,
		m.HopDuration,
		m.UpstreamAttempts,
		m.AuditFindings,
		m.HTTPRequests,
	)
	return m
}

// Direction counts one line direction outcome.
func (m *Metrics) Direction(outcome string) {
	if m == nil {
		return
	}
	m.Directions.WithLabelValues(outcome).Inc()
}

// Stops counts n written stops of one provenance.
func (m *Metrics) Stops(provenance string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StopsWritten.WithLabelValues(provenance).Add(float64(n))
}

// Hop records one stitched hop.
func (m *Metrics) Hop(fallback bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "routed"
	if fallback {
		result = "fallback"
	}
	m.Hops.WithLabelValues(result).Inc()
	m.HopDuration.Observe(d.Seconds())
}

// Attempt records one call attempt against an external service.
func (m *Metrics) Attempt(service string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UpstreamAttempts.WithLabelValues(service, result).Inc()
}

// Audit publishes the counts of the last audit.
func (m *Metrics) Audit(counts map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range counts {
		m.AuditFindings.WithLabelValues(kind).Set(float64(n))
	}
}

// Request counts one route server request.
func (m *Metrics) Request(path string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(path, statusText(status)).Inc()
}

func statusText(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
