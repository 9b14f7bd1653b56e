package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pbtavares/gympay/internal/metrics"
	"github.com/pbtavares/gympay/internal/models"
	"github.com/pbtavares/gympay/internal/notify"
	"github.com/pbtavares/gympay/internal/storage"
)

// Reconciler detects pending payments whose due date has passed and marks
// them overdue. It is safe to run repeatedly and concurrently: every
// transition is guarded on the record still being pending at write time, so
// a record is transitioned (and its student notified) at most once.
type Reconciler struct {
	store      storage.Store
	dispatcher notify.Dispatcher
}

// NewReconciler creates a Reconciler over the given store and dispatcher.
func NewReconciler(store storage.Store, dispatcher notify.Dispatcher) *Reconciler {
	return &Reconciler{store: store, dispatcher: dispatcher}
}

// Reconcile sweeps one academy's pending payments with dueDate < today and
// transitions each to overdue, dispatching one "payment overdue"
// notification per transitioned record. It returns how many records it
// transitioned; on a mid-sweep failure the count covers what succeeded
// before the error.
func (r *Reconciler) Reconcile(ctx context.Context, academyID string, today time.Time) (int, error) {
	if academyID == "" {
		return 0, &MissingScopeError{Op: "reconcile overdue payments"}
	}
	if today.IsZero() {
		return 0, &ValidationError{Field: "today", Reason: "reference date is required"}
	}

	candidates, err := r.store.QueryPayments(ctx, academyID, storage.PaymentQuery{
		Status:    models.StatusPending,
		DueBefore: today,
	})
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to query pending payments: %w", err)
	}

	overdue := models.StatusOverdue
	count := 0
	for _, rec := range candidates {
		applied, err := r.store.UpdatePaymentIfStatus(ctx, academyID, rec.ID,
			[]models.Status{models.StatusPending},
			storage.PaymentUpdate{Status: &overdue},
		)
		if err != nil {
			metrics.ReconcileRuns.WithLabelValues("error").Inc()
			return count, fmt.Errorf("failed to mark payment %s overdue: %w", rec.ID, err)
		}
		if !applied {
			// Paid, cancelled or swept by a concurrent run in the
			// meantime. Not ours to notify.
			continue
		}

		count++
		metrics.PaymentsOverdue.Inc()
		if err := r.dispatcher.PaymentOverdue(ctx, rec.StudentID, rec.Amount); err != nil {
			metrics.NotificationFailures.WithLabelValues("overdue").Inc()
			slog.Warn("failed to notify payment overdue",
				"payment_id", rec.ID,
				"student_id", rec.StudentID,
				"error", err,
			)
		}
	}

	metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	slog.Info("overdue reconciliation complete",
		"academy_id", academyID,
		"reference_date", today.Format("2006-01-02"),
		"candidates", len(candidates),
		"transitioned", count,
	)

	return count, nil
}
