package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrGatewayUnavailable marks a retryable failure talking to the payment gateway.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrSignatureInvalid marks a payment callback whose signature did not verify.
	ErrSignatureInvalid = errors.New("payment signature invalid")
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// ValidationError describes user-correctable input problems.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for building a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError is returned when an order is no longer in the status a
// transition expects. Current holds the stored order when it is known.
type TransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
	Current *Order
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Duplicate reports whether the order already sits in the requested status.
func (e *TransitionError) Duplicate() bool { return e.From == e.To }

// Conflict reports whether the order reached a different terminal status.
func (e *TransitionError) Conflict() bool { return e.From.Terminal() && e.From != e.To }
