/*
errors.go - Centralized error types for the ledger

PURPOSE:

	All error types in one place. The ledger service never panics across its
	boundary: every failure is one of these, and Classify/Messages turn any of
	them into the structured {success, reason, errors[]} result that the UI
	and reporting collaborators consume.

ERROR CATEGORIES:
 1. Validation errors - one message per failing field, collected
 2. Lock errors - period closed, edit window expired
 3. Lifecycle errors - already closed / already open
 4. Lookup errors - unknown ids, referenced reference data
 5. Persistence errors - the store call itself failed
*/
package billing

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned (wrapped in ValidationError) for bad form data.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrPeriodClosed is returned when writing into a closed period.
	ErrPeriodClosed = errors.New("period is closed")

	// ErrEditLocked is returned when a production may no longer be mutated.
	ErrEditLocked = errors.New("production is locked for editing")

	// ErrAlreadyClosed is returned when closing a closed period.
	ErrAlreadyClosed = errors.New("period is already closed")

	// ErrAlreadyOpen is returned when reopening an open period.
	ErrAlreadyOpen = errors.New("period is already open")

	// ErrForbidden is returned when the actor's role may not perform the call.
	ErrForbidden = errors.New("operation not permitted for this role")

	// ErrInUse is returned when deleting reference data still referenced by productions.
	ErrInUse = errors.New("record is referenced by productions")

	// ErrDuplicatePeriod is returned by stores when a (client, start, end)
	// period already exists.
	ErrDuplicatePeriod = errors.New("period already exists for client and boundaries")

	// ErrPersistence marks failures of the underlying store.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError collects every failing field message.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// LockReason tells the user why a production cannot be changed.
type LockReason string

const (
	LockPeriodClosed LockReason = "period_closed"
	LockNotSameDay   LockReason = "not_same_day"
)

// EditLockedError is returned when a production may not be mutated.
type EditLockedError struct {
	ProductionID ProductionID
	Reason       LockReason
}

func (e *EditLockedError) Error() string {
	switch e.Reason {
	case LockPeriodClosed:
		return fmt.Sprintf("production %s is locked: its period is closed", e.ProductionID)
	default:
		return fmt.Sprintf("production %s is locked: productions can only be changed on the day they were created", e.ProductionID)
	}
}

// Unwrap exposes ErrEditLocked, plus ErrPeriodClosed when that is the cause.
func (e *EditLockedError) Unwrap() []error {
	if e.Reason == LockPeriodClosed {
		return []error{ErrEditLocked, ErrPeriodClosed}
	}
	return []error{ErrEditLocked}
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "client", "project", "period", "production", "production type"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError wraps a failed store call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// =============================================================================
// RESULT MAPPING
// =============================================================================

// FailureReason is the typed cause carried by a failed operation result.
type FailureReason string

const (
	ReasonNone          FailureReason = ""
	ReasonValidation    FailureReason = "validation"
	ReasonNotFound      FailureReason = "not_found"
	ReasonPeriodClosed  FailureReason = "period_closed"
	ReasonEditLocked    FailureReason = "edit_locked"
	ReasonAlreadyClosed FailureReason = "already_closed"
	ReasonAlreadyOpen   FailureReason = "already_open"
	ReasonForbidden     FailureReason = "forbidden"
	ReasonInUse         FailureReason = "in_use"
	ReasonPersistence   FailureReason = "persistence"
)

// Classify maps an error returned by the ledger to its failure reason.
// Errors of unknown origin are treated as persistence failures.
func Classify(err error) FailureReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrValidation):
		return ReasonValidation
	case errors.Is(err, ErrEditLocked):
		return ReasonEditLocked
	case errors.Is(err, ErrPeriodClosed):
		return ReasonPeriodClosed
	case errors.Is(err, ErrAlreadyClosed):
		return ReasonAlreadyClosed
	case errors.Is(err, ErrAlreadyOpen):
		return ReasonAlreadyOpen
	case errors.Is(err, ErrForbidden):
		return ReasonForbidden
	case errors.Is(err, ErrInUse):
		return ReasonInUse
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	default:
		return ReasonPersistence
	}
}

// Messages returns the human-readable messages for err.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return append([]string(nil), verr.Messages...)
	}
	return []string{err.Error()}
}

// IsClientError returns true if the error is due to the caller's input or
// the record's state rather than the store.
func IsClientError(err error) bool {
	r := Classify(err)
	return r != ReasonNone && r != ReasonPersistence
}
