package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbtavares/gympay/internal/models"
	"github.com/pbtavares/gympay/internal/storage"
)

// stubStore serves a fixed record set, applying the due-date window the way
// any real store would.
type stubStore struct {
	records []*models.PaymentRecord
	err     error
}

var _ storage.Store = (*stubStore)(nil)

func (s *stubStore) CreatePayment(context.Context, string, *models.PaymentRecord) error {
	panic("not used")
}

func (s *stubStore) GetPayment(context.Context, string, string) (*models.PaymentRecord, error) {
	panic("not used")
}

func (s *stubStore) QueryPayments(_ context.Context, academyID string, q storage.PaymentQuery) ([]*models.PaymentRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.PaymentRecord
	for _, r := range s.records {
		if r.AcademyID != academyID {
			continue
		}
		if !q.From.IsZero() && r.DueDate.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && r.DueDate.After(q.To) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *stubStore) UpdatePayment(context.Context, string, string, storage.PaymentUpdate) error {
	panic("not used")
}

func (s *stubStore) UpdatePaymentIfStatus(context.Context, string, string, []models.Status, storage.PaymentUpdate) (bool, error) {
	panic("not used")
}

func (s *stubStore) Close() error { return nil }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rec(academy string, status models.Status, amount int64, due time.Time) *models.PaymentRecord {
	return &models.PaymentRecord{
		AcademyID: academy,
		Status:    status,
		Amount:    decimal.NewFromInt(amount),
		DueDate:   due,
	}
}

func testRecords() []*models.PaymentRecord {
	return []*models.PaymentRecord{
		rec("alpha", models.StatusPaid, 150, day(2026, time.January, 10)),
		rec("alpha", models.StatusPending, 150, day(2026, time.January, 20)),
		rec("alpha", models.StatusPaid, 200, day(2026, time.February, 10)),
		rec("alpha", models.StatusOverdue, 100, day(2026, time.February, 15)),
		rec("alpha", models.StatusCancelled, 999, day(2026, time.February, 20)),
		rec("alpha", models.StatusPaid, 300, day(2026, time.June, 1)), // outside window
		rec("beta", models.StatusPaid, 500, day(2026, time.January, 5)),
	}
}

func TestBuildRequiresScope(t *testing.T) {
	b := NewBuilder(&stubStore{})

	_, err := b.Build(context.Background(), "", day(2026, time.January, 1), day(2026, time.March, 1))
	var serr MissingScopeError
	require.ErrorAs(t, err, &serr)
}

func TestBuildRejectsInvertedWindow(t *testing.T) {
	b := NewBuilder(&stubStore{})

	_, err := b.Build(context.Background(), "alpha", day(2026, time.March, 1), day(2026, time.January, 1))
	require.Error(t, err)
}

func TestBuildMonthBuckets(t *testing.T) {
	b := NewBuilder(&stubStore{records: testRecords()})

	r, err := b.Build(context.Background(), "alpha", day(2026, time.January, 1), day(2026, time.February, 28))
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-01", "2026-02"}, r.MonthKeys())

	jan := r.Months["2026-01"]
	assert.True(t, jan.TotalAmount.Equal(decimal.NewFromInt(300)), "jan total = %s", jan.TotalAmount)
	assert.True(t, jan.PaidAmount.Equal(decimal.NewFromInt(150)))
	assert.True(t, jan.PendingAmount.Equal(decimal.NewFromInt(150)))
	assert.True(t, jan.OverdueAmount.IsZero())

	feb := r.Months["2026-02"]
	assert.True(t, feb.TotalAmount.Equal(decimal.NewFromInt(300)), "feb total = %s (cancelled must be excluded)", feb.TotalAmount)
	assert.True(t, feb.PaidAmount.Equal(decimal.NewFromInt(200)))
	assert.True(t, feb.OverdueAmount.Equal(decimal.NewFromInt(100)))

	// Overall totals cover the window, not the whole academy.
	assert.Equal(t, 5, r.Totals.Total)
	assert.Equal(t, 3, r.Totals.Paid)
	assert.True(t, r.Totals.TotalAmount.Equal(decimal.NewFromInt(600)))
}

func TestWriteCSV(t *testing.T) {
	b := NewBuilder(&stubStore{records: testRecords()})
	r, err := b.Build(context.Background(), "alpha", day(2026, time.January, 1), day(2026, time.February, 28))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4) // header + 2 months + totals
	assert.Equal(t, "month,total_amount,paid_amount,pending_amount,overdue_amount", lines[0])
	assert.Equal(t, "2026-01,300.00,150.00,150.00,0.00", lines[1])
	assert.Equal(t, "2026-02,300.00,200.00,0.00,100.00", lines[2])
	assert.Equal(t, "total,600.00,350.00,150.00,100.00", lines[3])
}
