package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV renders the report as a flat table: one header row, one row per
// month bucket, and a trailing totals row.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"month", "total_amount", "paid_amount", "pending_amount", "overdue_amount"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, key := range r.MonthKeys() {
		m := r.Months[key]
		row := []string{
			key,
			m.TotalAmount.StringFixed(2),
			m.PaidAmount.StringFixed(2),
			m.PendingAmount.StringFixed(2),
			m.OverdueAmount.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	totals := []string{
		"total",
		r.Totals.TotalAmount.StringFixed(2),
		r.Totals.PaidAmount.StringFixed(2),
		r.Totals.PendingAmount.StringFixed(2),
		r.Totals.OverdueAmount.StringFixed(2),
	}
	if err := cw.Write(totals); err != nil {
		return fmt.Errorf("failed to write csv totals: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
