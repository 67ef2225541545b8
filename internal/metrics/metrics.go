// Package metrics defines the Prometheus collectors exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups all service collectors.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ResolutionsTotal        *prometheus.CounterVec
	ProviderFetchesTotal    *prometheus.CounterVec
	StoreWriteFailuresTotal prometheus.Counter
	ConversionsTotal        prometheus.Counter
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_resolutions_total",
				Help: "Total number of rate resolutions by outcome",
			},
			[]string{"outcome"},
		),

		ProviderFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_fetches_total",
				Help: "Total number of upstream rate table fetches by result",
			},
			[]string{"result"},
		),

		StoreWriteFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "store_write_failures_total",
				Help: "Total number of failed rate store write-throughs",
			},
		),

		ConversionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "conversions_total",
				Help: "Total number of successful currency conversions",
			},
		),
	}
}
