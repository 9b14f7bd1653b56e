package api

import (
	"time"

	"github.com/pbtavares/gympay/internal/models"
	"github.com/pbtavares/gympay/internal/report"
	"github.com/pbtavares/gympay/internal/stats"
)

// PaymentView is the wire shape of one payment record.
type PaymentView struct {
	ID                 string       `json:"id"`
	AcademyID          string       `json:"academy_id"`
	StudentID          string       `json:"student_id"`
	Amount             string       `json:"amount"`
	Description        string       `json:"description"`
	DueDate            string       `json:"due_date"`
	PaidDate           *string      `json:"paid_date"`
	Status             string       `json:"status"`
	Method             string       `json:"method,omitempty"`
	Pix                *PixDataView `json:"pix,omitempty"`
	TransactionID      string       `json:"transaction_id,omitempty"`
	AuthorizationCode  string       `json:"authorization_code,omitempty"`
	CancellationReason string       `json:"cancellation_reason,omitempty"`
	IsRecurring        bool         `json:"is_recurring"`
	RecurringID        string       `json:"recurring_id,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// PixDataView is the wire shape of the simulated PIX payload.
type PixDataView struct {
	QRCode    string    `json:"qr_code"`
	PixKey    string    `json:"pix_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

func paymentView(p *models.PaymentRecord) *PaymentView {
	v := &PaymentView{
		ID:                 p.ID,
		AcademyID:          p.AcademyID,
		StudentID:          p.StudentID,
		Amount:             p.Amount.StringFixed(2),
		Description:        p.Description,
		DueDate:            p.DueDate.Format(dateLayout),
		Status:             string(p.Status),
		Method:             string(p.Method),
		TransactionID:      p.TransactionID,
		AuthorizationCode:  p.AuthorizationCode,
		CancellationReason: p.CancellationReason,
		IsRecurring:        p.IsRecurring,
		RecurringID:        p.RecurringID,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.PaidDate != nil {
		d := p.PaidDate.Format(dateLayout)
		v.PaidDate = &d
	}
	if p.PixData != nil {
		v.Pix = &PixDataView{
			QRCode:    p.PixData.QRCode,
			PixKey:    p.PixData.PixKey,
			ExpiresAt: p.PixData.ExpiresAt,
		}
	}
	return v
}

// StatsView is the wire shape of a student's payment rollup.
type StatsView struct {
	Total         int     `json:"total"`
	Paid          int     `json:"paid"`
	Pending       int     `json:"pending"`
	Overdue       int     `json:"overdue"`
	TotalAmount   string  `json:"total_amount"`
	PaidAmount    string  `json:"paid_amount"`
	PendingAmount string  `json:"pending_amount"`
	OverdueAmount string  `json:"overdue_amount"`
	PaymentRate   float64 `json:"payment_rate"`
}

func statsView(s stats.Stats) StatsView {
	return StatsView{
		Total:         s.Total,
		Paid:          s.Paid,
		Pending:       s.Pending,
		Overdue:       s.Overdue,
		TotalAmount:   s.TotalAmount.StringFixed(2),
		PaidAmount:    s.PaidAmount.StringFixed(2),
		PendingAmount: s.PendingAmount.StringFixed(2),
		OverdueAmount: s.OverdueAmount.StringFixed(2),
		PaymentRate:   s.PaymentRate,
	}
}

// MonthTotalsView is one month's bucket in a financial report.
type MonthTotalsView struct {
	TotalAmount   string `json:"total_amount"`
	PaidAmount    string `json:"paid_amount"`
	PendingAmount string `json:"pending_amount"`
	OverdueAmount string `json:"overdue_amount"`
}

// ReportView is the wire shape of a financial report.
type ReportView struct {
	AcademyID string                     `json:"academy_id"`
	From      string                     `json:"from"`
	To        string                     `json:"to"`
	Totals    StatsView                  `json:"totals"`
	Months    map[string]MonthTotalsView `json:"months"`
}

func reportView(r *report.Report) ReportView {
	months := make(map[string]MonthTotalsView, len(r.Months))
	for key, m := range r.Months {
		months[key] = MonthTotalsView{
			TotalAmount:   m.TotalAmount.StringFixed(2),
			PaidAmount:    m.PaidAmount.StringFixed(2),
			PendingAmount: m.PendingAmount.StringFixed(2),
			OverdueAmount: m.OverdueAmount.StringFixed(2),
		}
	}
	return ReportView{
		AcademyID: r.AcademyID,
		From:      r.From.Format(dateLayout),
		To:        r.To.Format(dateLayout),
		Totals:    statsView(r.Totals),
		Months:    months,
	}
}
