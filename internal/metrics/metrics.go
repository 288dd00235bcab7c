// Package metrics defines the Prometheus collectors for exports and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "isdoc"

// Export outcomes
const (
	StatusSuccess = "success"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// Metrics groups the collectors. Each instance owns its registry so
// tests and embedded uses do not collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	ExportsTotal       *prometheus.CounterVec
	ExportDuration     prometheus.Histogram
	ValidationFailures *prometheus.CounterVec
	BatchSize          prometheus.Histogram
	Warnings           prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, including the Go and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the export and HTTP collectors on reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ExportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Invoice exports by outcome",
		}, []string{"status"}),

		ExportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Time to assemble, render and validate one invoice",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),

		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Validation failures by validator",
		}, []string{"validator"}),

		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Transactions per batch export",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		Warnings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assembly_warnings_total",
			Help:      "Recovered input problems reported while assembling invoices",
		}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}
