// Package metric exposes Prometheus metrics for the webhook gateway.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcome labels.
const (
	OutcomePublished        = "published"
	OutcomeChallenge        = "challenge"
	OutcomeRejectedIP       = "rejected_ip"
	OutcomeMethodNotAllowed = "method_not_allowed"
	OutcomePayloadTooLarge  = "payload_too_large"
	OutcomeUpstreamError    = "upstream_error"
	OutcomeConfigError      = "config_error"
	OutcomeReadError        = "read_error"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	PublishDuration prometheus.Histogram
	PayloadBytes    prometheus.Histogram
	BrokerConnected prometheus.Gauge
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pubsub_webhook",
				Subsystem: "requests",
				Name:      "total",
				Help:      "Total webhook requests by outcome",
			},
			[]string{"outcome"},
		),

		PublishDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pubsub_webhook",
				Subsystem: "publish",
				Name:      "duration_seconds",
				Help:      "Broker publish round-trip duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		PayloadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pubsub_webhook",
				Subsystem: "publish",
				Name:      "payload_bytes",
				Help:      "Published payload size in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
		),

		BrokerConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "pubsub_webhook",
				Subsystem: "broker",
				Name:      "connected",
				Help:      "Broker connection status (0=disconnected, 1=connected)",
			},
		),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.PublishDuration,
		m.PayloadBytes,
		m.BrokerConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordOutcome increments the request counter for an outcome.
func (m *Metrics) RecordOutcome(outcome string) {
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
