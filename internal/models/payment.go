package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	// StatusPending means the charge exists and is awaiting payment.
	StatusPending Status = "pending"

	// StatusProcessing means a gateway authorization is outstanding.
	StatusProcessing Status = "processing"

	// StatusPaid is terminal: payment was received and confirmed.
	StatusPaid Status = "paid"

	// StatusOverdue means the due date elapsed without payment.
	// Not terminal; an overdue payment can still be confirmed.
	StatusOverdue Status = "overdue"

	// StatusCancelled is terminal: the charge was explicitly cancelled.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Method is how a payment is (or will be) settled. The empty string is
// permitted while the payer has not yet chosen, e.g. recurring installments
// generated up front.
type Method string

const (
	MethodPix        Method = "pix"
	MethodCreditCard Method = "credit_card"
	MethodDebitCard  Method = "debit_card"
	MethodBankSlip   Method = "bank_slip"
	MethodCash       Method = "cash"
)

// Valid reports whether m is a known method or empty (undetermined).
func (m Method) Valid() bool {
	switch m {
	case "", MethodPix, MethodCreditCard, MethodDebitCard, MethodBankSlip, MethodCash:
		return true
	}
	return false
}

// PixData holds the simulated PIX charge payload. Present only when the
// payment method is pix.
type PixData struct {
	// QRCode is the copy-and-paste payload the payer scans or pastes.
	QRCode string

	// PixKey is the receiving key the charge was issued against.
	PixKey string

	// ExpiresAt is when the QR payload stops being payable
	// (24h after charge creation).
	ExpiresAt time.Time
}

// PaymentRecord is a single charge against a student. It is created by the
// payment service (instant charges) or the schedule generator (recurring
// installments), mutated only through status transitions, and never deleted
// by this core.
type PaymentRecord struct {
	// ID is the unique identifier, assigned by the store on creation.
	ID string

	// AcademyID is the tenant namespace the record belongs to.
	// Every read and write is scoped by it.
	AcademyID string

	// StudentID is the owner of the charge.
	StudentID string

	// Amount is the charged value. Always strictly positive.
	Amount decimal.Decimal

	// Description is the human-readable charge label.
	Description string

	// DueDate is when the payment falls due. Required.
	DueDate time.Time

	// PaidDate is set exactly when the record transitions to paid.
	PaidDate *time.Time

	// Status is the current lifecycle state. See the Status constants.
	Status Status

	// Method is how the charge is settled. Empty while undetermined.
	Method Method

	// PixData is the simulated PIX payload. Non-nil implies Method == pix.
	PixData *PixData

	// TransactionID and AuthorizationCode are set by the card gateway
	// on approval.
	TransactionID     string
	AuthorizationCode string

	// CancellationReason is non-empty exactly when Status == cancelled.
	CancellationReason string

	// IsRecurring marks installments produced by the schedule generator.
	IsRecurring bool

	// RecurringID is shared by all installments of one subscription.
	// It embeds the student ID for traceability.
	RecurringID string

	// CreatedAt is set on creation; UpdatedAt refreshed on every mutation.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payable reports whether the record can still transition to paid.
func (p *PaymentRecord) Payable() bool {
	return !p.Status.Terminal()
}
