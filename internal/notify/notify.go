// Package notify delivers best-effort payment alerts to students.
//
// Dispatch is always fire-and-forget from the lifecycle's perspective:
// callers log failures and move on, so a broken notification channel can
// never roll back a persisted payment state.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Dispatcher is the notification contract consumed by the payment core.
type Dispatcher interface {
	// PaymentDue informs the student of a newly created charge.
	PaymentDue(ctx context.Context, userID string, amount decimal.Decimal, dueDate time.Time) error

	// PaymentConfirmed informs the student their payment was received.
	PaymentConfirmed(ctx context.Context, userID string, amount decimal.Decimal) error

	// PaymentOverdue informs the student a charge passed its due date.
	PaymentOverdue(ctx context.Context, userID string, amount decimal.Decimal) error
}

// LogDispatcher writes notifications to the structured log. It is the
// default for local development and never fails.
type LogDispatcher struct{}

var _ Dispatcher = LogDispatcher{}

func (LogDispatcher) PaymentDue(_ context.Context, userID string, amount decimal.Decimal, dueDate time.Time) error {
	slog.Info("notify: payment due",
		"user_id", userID,
		"amount", amount.String(),
		"due_date", dueDate.Format("2006-01-02"),
	)
	return nil
}

func (LogDispatcher) PaymentConfirmed(_ context.Context, userID string, amount decimal.Decimal) error {
	slog.Info("notify: payment confirmed",
		"user_id", userID,
		"amount", amount.String(),
	)
	return nil
}

func (LogDispatcher) PaymentOverdue(_ context.Context, userID string, amount decimal.Decimal) error {
	slog.Info("notify: payment overdue",
		"user_id", userID,
		"amount", amount.String(),
	)
	return nil
}
