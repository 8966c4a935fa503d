// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mysubs"

var (
	// FXLookups counts exchange rate lookups by result: cached, fetched or fallback.
	FXLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fx",
		Name:      "lookups_total",
		Help:      "Exchange rate lookups by result.",
	}, []string{"result"})

	// FXRate is the last USD to KRW rate served.
	FXRate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "fx",
		Name:      "usd_krw_rate",
		Help:      "Last USD to KRW exchange rate served.",
	})

	// Notifications counts reminder emails by kind and result. The server
	// records queued jobs, and the mail worker records their delivery.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "notifications_total",
		Help:      "Reminder emails by kind and result.",
	}, []string{"kind", "result"})

	// JobRuns counts reminder job executions by job name.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Reminder job runs by job name.",
	}, []string{"job"})

	// StripeEvents counts webhook events by type and outcome.
	StripeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stripe",
		Name:      "events_total",
		Help:      "Stripe webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	// Exports counts subscription exports by format.
	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "requests_total",
		Help:      "Subscription exports by format.",
	}, []string{"format"})

	// HTTPDuration observes request latency by method and status class.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// StatusClass folds an HTTP status into 2xx, 3xx, 4xx or 5xx.
func StatusClass(status int) string {
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
