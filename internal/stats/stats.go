// Package stats computes read-only rollups over payment record sets.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/pbtavares/gympay/internal/models"
)

// Stats is the aggregate view of one payment set, typically all charges of
// one student. Cancelled records are counted in Total but deliberately
// excluded from the status breakdown and the amount sums.
type Stats struct {
	Total   int
	Paid    int
	Pending int
	Overdue int

	TotalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
	PendingAmount decimal.Decimal
	OverdueAmount decimal.Decimal

	// PaymentRate is paid/total as a percentage, 0 for an empty set.
	PaymentRate float64
}

// Compute aggregates the given records. A nil or empty slice yields the
// zero Stats with PaymentRate 0 (no division by zero).
func Compute(records []*models.PaymentRecord) Stats {
	s := Stats{
		TotalAmount:   decimal.Zero,
		PaidAmount:    decimal.Zero,
		PendingAmount: decimal.Zero,
		OverdueAmount: decimal.Zero,
	}

	for _, r := range records {
		s.Total++
		switch r.Status {
		case models.StatusPaid:
			s.Paid++
			s.PaidAmount = s.PaidAmount.Add(r.Amount)
			s.TotalAmount = s.TotalAmount.Add(r.Amount)
		case models.StatusPending, models.StatusProcessing:
			s.Pending++
			s.PendingAmount = s.PendingAmount.Add(r.Amount)
			s.TotalAmount = s.TotalAmount.Add(r.Amount)
		case models.StatusOverdue:
			s.Overdue++
			s.OverdueAmount = s.OverdueAmount.Add(r.Amount)
			s.TotalAmount = s.TotalAmount.Add(r.Amount)
		case models.StatusCancelled:
			// counted in Total only
		}
	}

	if s.Total > 0 {
		s.PaymentRate = float64(s.Paid) / float64(s.Total) * 100
	}

	return s
}
