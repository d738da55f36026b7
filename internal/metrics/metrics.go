// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ApprovalsSent counts approval requests created, labeled by subject kind.
	ApprovalsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_sent_total",
			Help: "Approval requests created, by subject kind.",
		},
		[]string{"subject_kind"},
	)

	// ApprovalResponses counts terminal responses, labeled by kind and outcome.
	ApprovalResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_responses_total",
			Help: "Approval responses recorded, by subject kind and outcome.",
		},
		[]string{"subject_kind", "outcome"},
	)

	// PaymentLinksIssued counts newly created payment records.
	PaymentLinksIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_links_issued_total",
			Help: "Payment links created.",
		},
	)

	// PaymentLinksReused counts idempotent reuse of an existing pending link.
	PaymentLinksReused = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_links_reused_total",
			Help: "Payment link requests satisfied by an existing pending record.",
		},
	)

	// PaymentsConfirmed counts pending -> paid transitions.
	PaymentsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_confirmed_total",
			Help: "Payments confirmed against the gateway.",
		},
	)

	// HTTPRequests counts requests by route pattern and status class.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests, by route pattern, method and status.",
		},
		[]string{"route", "method", "status"},
	)
)
