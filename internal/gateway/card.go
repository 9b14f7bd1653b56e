// Package gateway simulates the card-payment gateway boundary.
//
// There is no real network protocol behind it: validation and the
// approve/deny decision run in process, but the decision is hidden behind
// the Decider interface so production can stay probabilistic while tests
// inject deterministic outcomes.
package gateway

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pbtavares/gympay/internal/models"
)

// Denial reasons returned in Result.ErrorReason. Stable strings so callers
// can branch without parsing free text.
const (
	ReasonInvalidCardNumber = "invalid_card_number"
	ReasonInvalidCvv        = "invalid_cvv"
	ReasonInvalidExpiry     = "invalid_expiry"
	ReasonDeniedByIssuer    = "denied_by_issuer"
)

// CardDetails are the fields the payer submits for a card charge.
type CardDetails struct {
	Number     string
	HolderName string
	Cvv        string
	// Expiry is "MM/YY" or "MM/YYYY".
	Expiry string
}

// Result is the outcome of one authorization attempt. When Approved is
// false, ErrorReason holds one of the Reason* constants.
type Result struct {
	Approved          bool
	TransactionID     string
	AuthorizationCode string
	ErrorReason       string
}

// CardAuthorizer validates card details and decides whether the issuer
// approves the charge. The error return is reserved for gateway
// availability problems; denials come back in the Result.
type CardAuthorizer interface {
	Authorize(ctx context.Context, p *models.PaymentRecord, card CardDetails) (*Result, error)
}

// Decider is the approve/deny strategy behind the simulated issuer.
type Decider interface {
	// Approve returns the issuer verdict. An error means the gateway
	// itself was unreachable (retryable), not a denial.
	Approve(ctx context.Context) (bool, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context) (bool, error)

func (f DeciderFunc) Approve(ctx context.Context) (bool, error) { return f(ctx) }

// RandomDecider approves with the given probability, emulating issuer
// response variance.
type RandomDecider struct {
	// ApprovalRate is in [0, 1]; the production default is 0.9.
	ApprovalRate float64
}

func (d RandomDecider) Approve(context.Context) (bool, error) {
	return rand.Float64() < d.ApprovalRate, nil
}

// SimulatedAuthorizer is the in-process stand-in for a real card gateway.
type SimulatedAuthorizer struct {
	decider Decider
	now     func() time.Time
}

// Option configures a SimulatedAuthorizer.
type Option func(*SimulatedAuthorizer)

// WithDecider replaces the approval strategy.
func WithDecider(d Decider) Option {
	return func(a *SimulatedAuthorizer) { a.decider = d }
}

// WithClock replaces the processing-time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *SimulatedAuthorizer) { a.now = now }
}

// NewSimulatedAuthorizer builds an authorizer with a 90% random approval
// strategy unless options say otherwise.
func NewSimulatedAuthorizer(opts ...Option) *SimulatedAuthorizer {
	a := &SimulatedAuthorizer{
		decider: RandomDecider{ApprovalRate: 0.9},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ CardAuthorizer = (*SimulatedAuthorizer)(nil)

// Authorize validates the card fields in a fixed order (first failure wins)
// and then asks the decider for the issuer verdict. On approval it
// synthesizes a transaction id and authorization code unique to this call.
func (a *SimulatedAuthorizer) Authorize(ctx context.Context, _ *models.PaymentRecord, card CardDetails) (*Result, error) {
	if len(digitsOnly(card.Number)) < 16 {
		return &Result{ErrorReason: ReasonInvalidCardNumber}, nil
	}
	if len(card.Cvv) < 3 {
		return &Result{ErrorReason: ReasonInvalidCvv}, nil
	}
	if !expiryInFuture(card.Expiry, a.now()) {
		return &Result{ErrorReason: ReasonInvalidExpiry}, nil
	}

	approved, err := a.decider.Approve(ctx)
	if err != nil {
		return nil, fmt.Errorf("issuer decision: %w", err)
	}
	if !approved {
		return &Result{ErrorReason: ReasonDeniedByIssuer}, nil
	}

	return &Result{
		Approved:          true,
		TransactionID:     "txn_" + uuid.New().String(),
		AuthorizationCode: "auth_" + uuid.New().String()[:8],
	}, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// expiryInFuture parses "MM/YY" or "MM/YYYY" and reports whether the card
// is valid strictly after now. A card expires at the end of its month.
func expiryInFuture(expiry string, now time.Time) bool {
	parts := strings.Split(strings.TrimSpace(expiry), "/")
	if len(parts) != 2 {
		return false
	}

	var month, year int
	if _, err := fmt.Sscanf(parts[0], "%d", &month); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &year); err != nil {
		return false
	}
	if month < 1 || month > 12 {
		return false
	}
	if year < 100 {
		year += 2000
	}

	// First instant of the month after expiry.
	end := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return now.Before(end)
}
