package service

import (
	"errors"
	"fmt"
)

// ErrGatewayUnavailable signals that the card gateway could not be reached.
// Callers may retry; it is distinct from a definitive denial.
var ErrGatewayUnavailable = errors.New("card gateway unavailable")

// ValidationError reports malformed caller input. It is returned before any
// I/O happens and is never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MissingScopeError reports that an operation requiring an academy namespace
// was called without one. This is a caller bug and fails before any I/O.
type MissingScopeError struct {
	Op string
}

func (e *MissingScopeError) Error() string {
	return fmt.Sprintf("%s: academy scope is required", e.Op)
}

// GatewayDeniedError reports that the card issuer declined the authorization.
// The payment is left untouched; this is a business outcome, not a fault.
type GatewayDeniedError struct {
	Reason string
}

func (e *GatewayDeniedError) Error() string {
	return fmt.Sprintf("card authorization denied: %s", e.Reason)
}

// ConflictError reports a transition attempted against a terminal record,
// e.g. confirming a cancelled payment or cancelling a paid one.
type ConflictError struct {
	PaymentID string
	Status    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("payment %s is %s and cannot transition", e.PaymentID, e.Status)
}
