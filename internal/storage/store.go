// Package storage provides abstractions for persistent payment storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pbtavares/gympay/internal/models"
)

// ErrNotFound is returned when a payment id does not exist in the
// requested academy namespace.
var ErrNotFound = errors.New("payment not found")

// PaymentQuery filters a scoped payment query. Zero-valued fields are
// ignored, so an empty query returns every record in the academy.
type PaymentQuery struct {
	// StudentID restricts results to one student's charges.
	StudentID string

	// Status restricts results to one lifecycle state.
	Status models.Status

	// DueBefore keeps records whose due date is strictly earlier.
	DueBefore time.Time

	// From/To keep records whose due date falls in [From, To].
	From time.Time
	To   time.Time

	// RecurringID restricts results to one subscription's installments.
	RecurringID string
}

// PaymentUpdate is a partial update applied to one record. Nil fields are
// left untouched. The store refreshes UpdatedAt on every applied update.
type PaymentUpdate struct {
	Status             *models.Status
	PaidDate           *time.Time
	Method             *models.Method
	TransactionID      *string
	AuthorizationCode  *string
	CancellationReason *string
	Amount             *decimal.Decimal
	Description        *string
}

// Store defines the interface for payment persistence.
// This abstraction allows swapping storage backends (SQLite, Firestore-style
// document stores, PostgreSQL) without changing the service layer.
//
// Every method takes the academy namespace explicitly; implementations must
// never fall back to a default scope.
type Store interface {
	// CreatePayment persists a new record and returns the assigned ID.
	// The record's ID, CreatedAt and UpdatedAt fields are populated.
	CreatePayment(ctx context.Context, academyID string, p *models.PaymentRecord) error

	// GetPayment retrieves a record by id.
	// Returns ErrNotFound if no such record exists in the academy.
	GetPayment(ctx context.Context, academyID, id string) (*models.PaymentRecord, error)

	// QueryPayments returns all records in the academy matching the query,
	// ordered by due date ascending.
	QueryPayments(ctx context.Context, academyID string, q PaymentQuery) ([]*models.PaymentRecord, error)

	// UpdatePayment applies a partial update to one record.
	// Returns ErrNotFound if the record does not exist.
	UpdatePayment(ctx context.Context, academyID, id string, u PaymentUpdate) error

	// UpdatePaymentIfStatus applies the update only if the record's current
	// status is one of allowedPrev at write time. It reports whether the
	// update was applied; a false return with nil error means the guard
	// failed (the record moved on concurrently).
	UpdatePaymentIfStatus(ctx context.Context, academyID, id string, allowedPrev []models.Status, u PaymentUpdate) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}
