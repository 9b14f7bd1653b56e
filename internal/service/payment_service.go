// Package service implements the payment lifecycle: charge creation, card
// checkout, confirmation, cancellation, recurring schedules and the overdue
// reconciliation sweep.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pbtavares/gympay/internal/gateway"
	"github.com/pbtavares/gympay/internal/metrics"
	"github.com/pbtavares/gympay/internal/models"
	"github.com/pbtavares/gympay/internal/notify"
	"github.com/pbtavares/gympay/internal/stats"
	"github.com/pbtavares/gympay/internal/storage"
)

// PixExpiry is how long a generated PIX payload stays payable.
const PixExpiry = 24 * time.Hour

// PaymentService orchestrates the payment state machine. It is an explicit
// value with injected dependencies; construct one per process and share it.
type PaymentService struct {
	store      storage.Store
	dispatcher notify.Dispatcher
	authorizer gateway.CardAuthorizer
	now        func() time.Time
}

// ServiceOption configures a PaymentService.
type ServiceOption func(*PaymentService)

// WithClock replaces the time source. Tests use this to pin "now".
func WithClock(now func() time.Time) ServiceOption {
	return func(s *PaymentService) { s.now = now }
}

// NewPaymentService creates a PaymentService with the given collaborators.
func NewPaymentService(store storage.Store, dispatcher notify.Dispatcher, authorizer gateway.CardAuthorizer, opts ...ServiceOption) *PaymentService {
	s := &PaymentService{
		store:      store,
		dispatcher: dispatcher,
		authorizer: authorizer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePaymentInput describes a new instant charge.
type CreatePaymentInput struct {
	StudentID   string
	Amount      decimal.Decimal
	Description string
	DueDate     time.Time
	Method      models.Method
}

// CreateInstantPayment validates the input, persists a new pending charge
// and sends a best-effort "payment due" notification. For PIX charges the
// record carries a generated QR payload with a 24h expiry.
func (s *PaymentService) CreateInstantPayment(ctx context.Context, academyID string, in CreatePaymentInput) (*models.PaymentRecord, error) {
	if academyID == "" {
		return nil, &MissingScopeError{Op: "create payment"}
	}
	if in.StudentID == "" {
		return nil, &ValidationError{Field: "student_id", Reason: "must not be empty"}
	}
	if !in.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if in.DueDate.IsZero() {
		return nil, &ValidationError{Field: "due_date", Reason: "is required"}
	}
	if in.Method == "" || !in.Method.Valid() {
		return nil, &ValidationError{Field: "method", Reason: fmt.Sprintf("unknown payment method %q", in.Method)}
	}

	now := s.now().UTC()
	rec := &models.PaymentRecord{
		StudentID:   in.StudentID,
		Amount:      in.Amount,
		Description: in.Description,
		DueDate:     in.DueDate.UTC(),
		Status:      models.StatusPending,
		Method:      in.Method,
		CreatedAt:   now,
	}
	if in.Method == models.MethodPix {
		rec.PixData = newPixData(in.Amount, now)
	}

	if err := s.store.CreatePayment(ctx, academyID, rec); err != nil {
		return nil, fmt.Errorf("failed to persist payment: %w", err)
	}
	metrics.PaymentsCreated.WithLabelValues(metrics.MethodLabel(string(rec.Method))).Inc()
	slog.Info("payment created",
		"academy_id", academyID,
		"payment_id", rec.ID,
		"student_id", rec.StudentID,
		"method", rec.Method,
		"amount", rec.Amount.String(),
	)

	// Best-effort: a failed notification never rolls back the charge.
	s.notifyDue(ctx, rec)

	return rec, nil
}

// PayWithCard runs the (simulated) card authorization for a charge and, on
// approval, confirms it with the synthesized transaction id and
// authorization code. A denial leaves the record untouched.
func (s *PaymentService) PayWithCard(ctx context.Context, academyID, paymentID string, card gateway.CardDetails, method models.Method) (*models.PaymentRecord, error) {
	if academyID == "" {
		return nil, &MissingScopeError{Op: "pay with card"}
	}
	if paymentID == "" {
		return nil, &ValidationError{Field: "payment_id", Reason: "must not be empty"}
	}
	if method == "" {
		method = models.MethodCreditCard
	}
	if method != models.MethodCreditCard && method != models.MethodDebitCard {
		return nil, &ValidationError{Field: "method", Reason: fmt.Sprintf("%q is not a card method", method)}
	}

	rec, err := s.store.GetPayment(ctx, academyID, paymentID)
	if err != nil {
		return nil, err
	}
	if rec.Status == models.StatusPaid {
		// Already settled; nothing to charge.
		return rec, nil
	}
	if rec.Status == models.StatusCancelled {
		return nil, &ConflictError{PaymentID: rec.ID, Status: string(rec.Status)}
	}

	result, err := s.authorizer.Authorize(ctx, rec, card)
	if err != nil {
		metrics.GatewayDecisions.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !result.Approved {
		switch result.ErrorReason {
		case gateway.ReasonDeniedByIssuer:
			metrics.GatewayDecisions.WithLabelValues("denied").Inc()
			slog.Info("card authorization denied",
				"academy_id", academyID,
				"payment_id", rec.ID,
			)
			return nil, &GatewayDeniedError{Reason: result.ErrorReason}
		default:
			metrics.GatewayDecisions.WithLabelValues("invalid").Inc()
			return nil, &ValidationError{Field: "card", Reason: result.ErrorReason}
		}
	}
	metrics.GatewayDecisions.WithLabelValues("approved").Inc()

	return s.confirm(ctx, academyID, rec, confirmation{
		transactionID:     result.TransactionID,
		authorizationCode: result.AuthorizationCode,
		method:            method,
	})
}

// ConfirmPayment marks a pending, processing or overdue charge as paid.
// It is the single entry point to the paid state. Confirming an
// already-paid record is an idempotent no-op; confirming a cancelled one
// is a conflict.
//
// Used for payments settled outside the card gateway: PIX confirmations
// arriving from the payer's bank, cash or bank-slip settlements recorded
// at the front desk.
func (s *PaymentService) ConfirmPayment(ctx context.Context, academyID, paymentID string) (*models.PaymentRecord, error) {
	if academyID == "" {
		return nil, &MissingScopeError{Op: "confirm payment"}
	}
	if paymentID == "" {
		return nil, &ValidationError{Field: "payment_id", Reason: "must not be empty"}
	}

	rec, err := s.store.GetPayment(ctx, academyID, paymentID)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, academyID, rec, confirmation{})
}

// confirmation carries the optional gateway artifacts of a confirmation.
type confirmation struct {
	transactionID     string
	authorizationCode string
	method            models.Method
}

// confirm performs the guarded transition to paid. The store-side status
// guard makes confirmation safe against concurrent reconciliation: a record
// swept to overdue between our read and write is still confirmable, and a
// record paid by a racing confirm is reported as already done.
func (s *PaymentService) confirm(ctx context.Context, academyID string, rec *models.PaymentRecord, c confirmation) (*models.PaymentRecord, error) {
	if rec.Status == models.StatusPaid {
		return rec, nil
	}
	if rec.Status == models.StatusCancelled {
		return nil, &ConflictError{PaymentID: rec.ID, Status: string(rec.Status)}
	}

	paidAt := s.now().UTC()
	paid := models.StatusPaid
	update := storage.PaymentUpdate{
		Status:   &paid,
		PaidDate: &paidAt,
	}
	if c.transactionID != "" {
		update.TransactionID = &c.transactionID
		update.AuthorizationCode = &c.authorizationCode
	}
	if c.method != "" {
		update.Method = &c.method
	}

	nonTerminal := []models.Status{models.StatusPending, models.StatusProcessing, models.StatusOverdue}
	applied, err := s.store.UpdatePaymentIfStatus(ctx, academyID, rec.ID, nonTerminal, update)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}
	if !applied {
		// Lost the race; find out to whom.
		current, err := s.store.GetPayment(ctx, academyID, rec.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.StatusPaid {
			return current, nil
		}
		return nil, &ConflictError{PaymentID: current.ID, Status: string(current.Status)}
	}

	rec.Status = models.StatusPaid
	rec.PaidDate = &paidAt
	rec.UpdatedAt = paidAt
	if c.transactionID != "" {
		rec.TransactionID = c.transactionID
		rec.AuthorizationCode = c.authorizationCode
	}
	if c.method != "" {
		rec.Method = c.method
	}

	metrics.PaymentsConfirmed.Inc()
	slog.Info("payment confirmed",
		"academy_id", academyID,
		"payment_id", rec.ID,
		"student_id", rec.StudentID,
		"amount", rec.Amount.String(),
	)
	s.notifyConfirmed(ctx, rec)

	return rec, nil
}

// CancelPayment cancels a non-terminal charge. The reason is mandatory.
// Cancelling an already-cancelled record is a no-op; cancelling a paid one
// is a conflict.
func (s *PaymentService) CancelPayment(ctx context.Context, academyID, paymentID, reason string) (*models.PaymentRecord, error) {
	if academyID == "" {
		return nil, &MissingScopeError{Op: "cancel payment"}
	}
	if paymentID == "" {
		return nil, &ValidationError{Field: "payment_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "reason", Reason: "cancellation requires a reason"}
	}

	rec, err := s.store.GetPayment(ctx, academyID, paymentID)
	if err != nil {
		return nil, err
	}
	if rec.Status == models.StatusCancelled {
		return rec, nil
	}
	if rec.Status == models.StatusPaid {
		return nil, &ConflictError{PaymentID: rec.ID, Status: string(rec.Status)}
	}

	cancelled := models.StatusCancelled
	update := storage.PaymentUpdate{
		Status:             &cancelled,
		CancellationReason: &reason,
	}
	nonTerminal := []models.Status{models.StatusPending, models.StatusProcessing, models.StatusOverdue}
	applied, err := s.store.UpdatePaymentIfStatus(ctx, academyID, rec.ID, nonTerminal, update)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel payment: %w", err)
	}
	if !applied {
		current, err := s.store.GetPayment(ctx, academyID, rec.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.StatusCancelled {
			return current, nil
		}
		return nil, &ConflictError{PaymentID: current.ID, Status: string(current.Status)}
	}

	rec.Status = models.StatusCancelled
	rec.CancellationReason = reason
	rec.UpdatedAt = s.now().UTC()

	metrics.PaymentsCancelled.Inc()
	slog.Info("payment cancelled",
		"academy_id", academyID,
		"payment_id", rec.ID,
		"reason", reason,
	)

	return rec, nil
}

// GetPayment returns one record by id.
func (s *PaymentService) GetPayment(ctx context.Context, academyID, paymentID string) (*models.PaymentRecord, error) {
	if academyID == "" {
		return nil, &MissingScopeError{Op: "get payment"}
	}
	return s.store.GetPayment(ctx, academyID, paymentID)
}

// ListStudentPayments returns all charges of one student, due date ascending.
func (s *PaymentService) ListStudentPayments(ctx context.Context, academyID, studentID string) ([]*models.PaymentRecord, error) {
	if academyID == "" {
		return nil, &MissingScopeError{Op: "list student payments"}
	}
	if studentID == "" {
		return nil, &ValidationError{Field: "student_id", Reason: "must not be empty"}
	}
	return s.store.QueryPayments(ctx, academyID, storage.PaymentQuery{StudentID: studentID})
}

// StudentStats aggregates one student's payment set.
func (s *PaymentService) StudentStats(ctx context.Context, academyID, studentID string) (stats.Stats, error) {
	records, err := s.ListStudentPayments(ctx, academyID, studentID)
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.Compute(records), nil
}

// IsNotFound reports whether err is the store's missing-record condition.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

// newPixData builds the simulated PIX charge payload. The QR string mimics
// the BR Code copy-and-paste shape but is a placeholder, not a signed
// payload.
func newPixData(amount decimal.Decimal, createdAt time.Time) *models.PixData {
	key := uuid.New().String()
	amt := amount.StringFixed(2)
	qr := fmt.Sprintf(
		"00020126580014br.gov.bcb.pix0136%s52040000530398654%02d%s5802BR6304%s",
		key, len(amt), amt, strings.ToUpper(uuid.New().String()[:4]),
	)
	return &models.PixData{
		QRCode:    qr,
		PixKey:    key,
		ExpiresAt: createdAt.Add(PixExpiry),
	}
}

func (s *PaymentService) notifyDue(ctx context.Context, rec *models.PaymentRecord) {
	if err := s.dispatcher.PaymentDue(ctx, rec.StudentID, rec.Amount, rec.DueDate); err != nil {
		metrics.NotificationFailures.WithLabelValues("due").Inc()
		slog.Warn("failed to notify payment due",
			"payment_id", rec.ID,
			"student_id", rec.StudentID,
			"error", err,
		)
	}
}

func (s *PaymentService) notifyConfirmed(ctx context.Context, rec *models.PaymentRecord) {
	if err := s.dispatcher.PaymentConfirmed(ctx, rec.StudentID, rec.Amount); err != nil {
		metrics.NotificationFailures.WithLabelValues("confirmed").Inc()
		slog.Warn("failed to notify payment confirmed",
			"payment_id", rec.ID,
			"student_id", rec.StudentID,
			"error", err,
		)
	}
}
