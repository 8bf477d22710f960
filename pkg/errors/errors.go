package errors

import (
	"fmt"
	"strings"

	"github.com/vitrineshop/marketapi/internal/domain"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when authentication fails
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict is returned when a write loses a race (e.g. a cart line was
// already consumed by another purchase, or an idempotency key was reused
// with a different payload)
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when input validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrIncompleteShippingSelection is returned when checkout is attempted
// without a shipping selection for every quotable store in the cart
type ErrIncompleteShippingSelection struct {
	MissingStores []string
}

func (e *ErrIncompleteShippingSelection) Error() string {
	return fmt.Sprintf("missing shipping selection for stores: %s", strings.Join(e.MissingStores, ", "))
}

// ErrInvalidStateTransition is returned when an invalid status transition is attempted
type ErrInvalidStateTransition struct {
	From domain.PurchaseStatus
	To   domain.PurchaseStatus
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrUpstream is returned when an external collaborator (payment processor,
// shipping aggregator) fails or is unreachable
type ErrUpstream struct {
	Service string
	Err     error
}

func (e *ErrUpstream) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s request failed", e.Service)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Err
}
