/*
errors.go - Error taxonomy for both ledgers

PURPOSE:
  Every failure a ledger operation can report to its caller is one of the
  kinds below. Callers branch with errors.Is against the sentinels, or
  errors.As against the structured types for details.

ERROR KINDS:
  NotFoundError           referenced id absent            -> ErrNotFound
  ConflictError           duplicate unique business key   -> ErrConflict
  ValidationError         missing/invalid input field     -> ErrValidation
  InvalidStateError       status forbids the transition   -> ErrInvalidState
  InsufficientStockError  issue exceeds current stock     -> ErrInsufficientStock
  NegativeStockError      adjustment would go below zero  -> ErrNegativeStock
  ErrConcurrentModification  a compare-and-swap update lost a race

USAGE:
  if errors.Is(err, domain.ErrInsufficientStock) { ... }

  var nf *domain.NotFoundError
  if errors.As(err, &nf) { log(nf.Entity, nf.ID) }
*/
package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNegativeStock     = errors.New("negative stock")

	// ErrConcurrentModification is returned when a row changed between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a duplicate unique business key.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateError reports a status that forbids the requested action.
type InvalidStateError struct {
	Entity string
	ID     string
	State  string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %q in state %s", e.Action, e.Entity, e.ID, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

type InsufficientStockError struct {
	MaterialID string
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for material %q: available %s, requested %s",
		e.MaterialID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type NegativeStockError struct {
	MaterialID string
	Current    decimal.Decimal
	Change     decimal.Decimal
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("adjustment of %s on material %q would leave stock at %s",
		e.Change, e.MaterialID, e.Current.Add(e.Change))
}

func (e *NegativeStockError) Unwrap() error { return ErrNegativeStock }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to the caller's input or the
// current state of the data, rather than a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrNegativeStock)
}

// Kind returns a short machine-readable name for the error kind.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrNegativeStock):
		return "negative_stock"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	default:
		return "internal"
	}
}
