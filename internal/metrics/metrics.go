// Package metrics exposes prometheus collectors for the payment engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentsCreated counts created charges, labelled by method
	// ("" becomes "undetermined" for recurring installments).
	PaymentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gympay",
		Name:      "payments_created_total",
		Help:      "Number of payment records created.",
	}, []string{"method"})

	// PaymentsConfirmed counts pending/overdue -> paid transitions.
	PaymentsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gympay",
		Name:      "payments_confirmed_total",
		Help:      "Number of payments confirmed as paid.",
	})

	// PaymentsCancelled counts explicit cancellations.
	PaymentsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gympay",
		Name:      "payments_cancelled_total",
		Help:      "Number of payments cancelled.",
	})

	// PaymentsOverdue counts pending -> overdue transitions made by the
	// reconciler.
	PaymentsOverdue = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gympay",
		Name:      "payments_overdue_total",
		Help:      "Number of payments marked overdue by reconciliation.",
	})

	// ReconcileRuns counts reconciliation sweeps, labelled by result.
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gympay",
		Name:      "reconcile_runs_total",
		Help:      "Number of overdue reconciliation sweeps.",
	}, []string{"result"})

	// NotificationFailures counts dispatch errors. Notifications are
	// best-effort, so this counter is the only trace a failure leaves
	// besides the log line.
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gympay",
		Name:      "notifications_failed_total",
		Help:      "Number of failed notification dispatches.",
	}, []string{"kind"})

	// GatewayDecisions counts simulated issuer verdicts.
	GatewayDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gympay",
		Name:      "gateway_decisions_total",
		Help:      "Number of card authorization attempts by outcome.",
	}, []string{"outcome"})
)

// MethodLabel maps an empty payment method to a stable label value.
func MethodLabel(method string) string {
	if method == "" {
		return "undetermined"
	}
	return method
}
