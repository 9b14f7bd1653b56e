package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pbtavares/gympay/internal/models"
	"github.com/pbtavares/gympay/internal/storage"
)

// fakeStore is an in-memory storage.Store for service tests.
type fakeStore struct {
	mu       sync.Mutex
	seq      int
	payments map[string]*models.PaymentRecord // academyID + "/" + id

	// failCreateAfter, when > 0, makes CreatePayment fail once that many
	// creates have succeeded. Used for partial-failure tests.
	failCreateAfter int
	creates         int
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{payments: make(map[string]*models.PaymentRecord)}
}

func (f *fakeStore) key(academyID, id string) string { return academyID + "/" + id }

func (f *fakeStore) CreatePayment(_ context.Context, academyID string, p *models.PaymentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreateAfter > 0 && f.creates >= f.failCreateAfter {
		return fmt.Errorf("store unavailable")
	}
	f.creates++

	f.seq++
	if p.ID == "" {
		p.ID = fmt.Sprintf("pay-%04d", f.seq)
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	p.AcademyID = academyID
	if p.Status == "" {
		p.Status = models.StatusPending
	}

	cp := *p
	f.payments[f.key(academyID, p.ID)] = &cp
	return nil
}

func (f *fakeStore) GetPayment(_ context.Context, academyID, id string) (*models.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[f.key(academyID, id)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) QueryPayments(_ context.Context, academyID string, q storage.PaymentQuery) ([]*models.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.PaymentRecord
	for _, p := range f.payments {
		if p.AcademyID != academyID {
			continue
		}
		if q.StudentID != "" && p.StudentID != q.StudentID {
			continue
		}
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		if !q.DueBefore.IsZero() && !p.DueDate.Before(q.DueBefore) {
			continue
		}
		if !q.From.IsZero() && p.DueDate.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && p.DueDate.After(q.To) {
			continue
		}
		if q.RecurringID != "" && p.RecurringID != q.RecurringID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) UpdatePayment(_ context.Context, academyID, id string, u storage.PaymentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[f.key(academyID, id)]
	if !ok {
		return storage.ErrNotFound
	}
	applyUpdate(p, u)
	return nil
}

func (f *fakeStore) UpdatePaymentIfStatus(_ context.Context, academyID, id string, allowedPrev []models.Status, u storage.PaymentUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[f.key(academyID, id)]
	if !ok {
		return false, storage.ErrNotFound
	}
	allowed := false
	for _, st := range allowedPrev {
		if p.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	applyUpdate(p, u)
	return true, nil
}

func (f *fakeStore) Close() error { return nil }

func applyUpdate(p *models.PaymentRecord, u storage.PaymentUpdate) {
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.PaidDate != nil {
		t := *u.PaidDate
		p.PaidDate = &t
	}
	if u.Method != nil {
		p.Method = *u.Method
	}
	if u.TransactionID != nil {
		p.TransactionID = *u.TransactionID
	}
	if u.AuthorizationCode != nil {
		p.AuthorizationCode = *u.AuthorizationCode
	}
	if u.CancellationReason != nil {
		p.CancellationReason = *u.CancellationReason
	}
	if u.Amount != nil {
		p.Amount = *u.Amount
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	p.UpdatedAt = time.Now().UTC()
}

// recorderDispatcher records every notification for assertions.
type recorderDispatcher struct {
	mu        sync.Mutex
	due       []string
	confirmed []string
	overdue   []string

	// fail makes every dispatch return an error.
	fail bool
}

func (d *recorderDispatcher) PaymentDue(_ context.Context, userID string, _ decimal.Decimal, _ time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return fmt.Errorf("push service down")
	}
	d.due = append(d.due, userID)
	return nil
}

func (d *recorderDispatcher) PaymentConfirmed(_ context.Context, userID string, _ decimal.Decimal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return fmt.Errorf("push service down")
	}
	d.confirmed = append(d.confirmed, userID)
	return nil
}

func (d *recorderDispatcher) PaymentOverdue(_ context.Context, userID string, _ decimal.Decimal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return fmt.Errorf("push service down")
	}
	d.overdue = append(d.overdue, userID)
	return nil
}
