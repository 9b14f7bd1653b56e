package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pbtavares/gympay/internal/metrics"
	"github.com/pbtavares/gympay/internal/models"
)

// DefaultInstallments is the number of installments a subscription
// generates when the caller does not say otherwise (one year, monthly).
const DefaultInstallments = 12

// ScheduleInput describes a recurring subscription to expand.
type ScheduleInput struct {
	StudentID   string
	Amount      decimal.Decimal
	Description string
	StartDate   time.Time

	// Installments defaults to DefaultInstallments when zero.
	Installments int
}

// ScheduleError reports a schedule generation that failed partway.
// Installments created before the failure are NOT rolled back; Created
// tells the caller how many exist so an operator can reconcile.
type ScheduleError struct {
	Created int
	Err     error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("schedule generation failed after %d installments: %v", e.Created, e.Err)
}

func (e *ScheduleError) Unwrap() error { return e.Err }

// GenerateSchedule expands one subscription into dated pending installments.
// Installment i falls due exactly i calendar months after the start date
// (day-of-month clamped for short months), the method is left undetermined
// until the payer chooses, and all records share one recurring id embedding
// the student id.
func (s *PaymentService) GenerateSchedule(ctx context.Context, academyID string, in ScheduleInput) ([]*models.PaymentRecord, error) {
	if academyID == "" {
		return nil, &MissingScopeError{Op: "generate schedule"}
	}
	if in.StudentID == "" {
		return nil, &ValidationError{Field: "student_id", Reason: "must not be empty"}
	}
	if !in.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if in.StartDate.IsZero() {
		return nil, &ValidationError{Field: "start_date", Reason: "is required"}
	}
	if in.Installments < 0 {
		return nil, &ValidationError{Field: "installments", Reason: "must not be negative"}
	}
	count := in.Installments
	if count == 0 {
		count = DefaultInstallments
	}

	recurringID := fmt.Sprintf("rec-%s-%s", in.StudentID, uuid.New().String()[:8])
	now := s.now().UTC()

	created := make([]*models.PaymentRecord, 0, count)
	for i := 0; i < count; i++ {
		due := AddCalendarMonths(in.StartDate.UTC(), i)
		rec := &models.PaymentRecord{
			StudentID:   in.StudentID,
			Amount:      in.Amount,
			Description: fmt.Sprintf("%s (%s)", in.Description, due.Format("01/2006")),
			DueDate:     due,
			Status:      models.StatusPending,
			IsRecurring: true,
			RecurringID: recurringID,
			CreatedAt:   now,
		}
		if err := s.store.CreatePayment(ctx, academyID, rec); err != nil {
			return created, &ScheduleError{Created: len(created), Err: err}
		}
		metrics.PaymentsCreated.WithLabelValues(metrics.MethodLabel("")).Inc()
		created = append(created, rec)
	}

	slog.Info("recurring schedule generated",
		"academy_id", academyID,
		"student_id", in.StudentID,
		"recurring_id", recurringID,
		"installments", len(created),
	)

	return created, nil
}

// AddCalendarMonths returns t moved forward by n calendar months,
// preserving the day-of-month where the target month permits it and
// clamping otherwise (Jan 31 + 1 month = Feb 28, or Feb 29 in leap years).
// Naive time.AddDate would normalize Jan 31 + 1 month to Mar 2/3 and the
// schedule would drift.
func AddCalendarMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	// Anchor on the 1st so month arithmetic never overflows.
	anchor := time.Date(year, month+time.Month(n), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if last := daysInMonth(anchor.Year(), anchor.Month()); day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month.
// Day 0 of the next month normalizes to this month's last day.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
