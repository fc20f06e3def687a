package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event sources.
const (
	sourceCallback = "callback"
	sourceRedirect = "redirect"
	sourceSync     = "sync"
)

var (
	paymentEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zaver_payment_events_total",
			Help: "Payment statuses dispatched by the reconciliation state machine.",
		},
		[]string{"status", "source"},
	)

	refundEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zaver_refund_events_total",
			Help: "Refund statuses dispatched by the reconciliation state machine.",
		},
		[]string{"status"},
	)

	refundRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zaver_refund_requests_total",
			Help: "Refund requests sent to Zaver by result.",
		},
		[]string{"result"},
	)

	reconciliationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zaver_reconciliation_failures_total",
			Help: "Failed reconciliation attempts by entrypoint.",
		},
		[]string{"entrypoint"},
	)
)

// statusLabel bounds label cardinality for statuses the provider may add.
func statusLabel(status string, known ...string) string {
	for _, k := range known {
		if status == k {
			return status
		}
	}
	return "unknown"
}
