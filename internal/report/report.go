// Package report builds date-bounded financial rollups over an academy's
// payments. It is read-only: no state transitions happen here.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pbtavares/gympay/internal/models"
	"github.com/pbtavares/gympay/internal/stats"
	"github.com/pbtavares/gympay/internal/storage"
)

// MonthKey formats a due date as the "YYYY-MM" bucket key.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// MonthTotals is the financial rollup for one calendar month.
type MonthTotals struct {
	TotalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
	PendingAmount decimal.Decimal
	OverdueAmount decimal.Decimal
}

// Report is the aggregate over one academy and date window.
type Report struct {
	AcademyID string
	From, To  time.Time

	// Totals is the overall breakdown across the window.
	Totals stats.Stats

	// Months maps "YYYY-MM" to that month's amounts, keyed by due date.
	Months map[string]MonthTotals
}

// MonthKeys returns the bucket keys in chronological order.
func (r *Report) MonthKeys() []string {
	keys := make([]string, 0, len(r.Months))
	for k := range r.Months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Builder assembles reports from store reads.
type Builder struct {
	store storage.Store
}

// NewBuilder creates a Builder over the given store.
func NewBuilder(store storage.Store) *Builder {
	return &Builder{store: store}
}

// MissingScopeError mirrors the service-level scope check so report callers
// get the same loud failure instead of a silently empty report.
type MissingScopeError struct{}

func (MissingScopeError) Error() string {
	return "report: academy scope is required"
}

// Build aggregates all payments of the academy whose due date falls inside
// [from, to]. An empty academy id fails immediately.
func (b *Builder) Build(ctx context.Context, academyID string, from, to time.Time) (*Report, error) {
	if academyID == "" {
		return nil, MissingScopeError{}
	}
	if to.Before(from) {
		return nil, fmt.Errorf("report window end %s precedes start %s",
			to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	records, err := b.store.QueryPayments(ctx, academyID, storage.PaymentQuery{
		From: from,
		To:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load payments for report: %w", err)
	}

	r := &Report{
		AcademyID: academyID,
		From:      from,
		To:        to,
		Totals:    stats.Compute(records),
		Months:    make(map[string]MonthTotals),
	}

	for _, rec := range records {
		if rec.Status == models.StatusCancelled {
			continue
		}
		key := MonthKey(rec.DueDate)
		m := r.Months[key]
		m.TotalAmount = m.TotalAmount.Add(rec.Amount)
		switch rec.Status {
		case models.StatusPaid:
			m.PaidAmount = m.PaidAmount.Add(rec.Amount)
		case models.StatusPending, models.StatusProcessing:
			m.PendingAmount = m.PendingAmount.Add(rec.Amount)
		case models.StatusOverdue:
			m.OverdueAmount = m.OverdueAmount.Add(rec.Amount)
		}
		r.Months[key] = m
	}

	return r, nil
}
