// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by route pattern, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration tracks API latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portal",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// LedgerOperationsTotal counts benefit writes by operation and outcome.
	LedgerOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "ledger",
		Name:      "operations_total",
		Help:      "Benefit ledger operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// WebhookEventsTotal counts provider webhook events by type and result.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Provider webhook events by event type and result.",
	}, []string{"event_type", "result"})

	// StaleReservations is the number of credit holds past their expiry.
	StaleReservations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "portal",
		Name:      "stale_reservations",
		Help:      "Credit reservations held past their expiry and not yet confirmed.",
	})
)

// Outcome labels a ledger operation result.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
