/*
errors.go - Centralized error taxonomy for the workflow core

PURPOSE:
  All rejection categories in one place. Every error a caller can receive
  from this package unwraps to exactly one of the sentinels below, so
  transport layers can map outcomes with errors.Is and never by string.

ERROR CATEGORIES:
  1. Validation errors  - Malformed input (empty items, bad quantity/price)
  2. Permission errors  - Role, ownership, or self-approval violations
  3. State errors       - Operation not legal in the request's current status
  4. Conflict errors    - Duplicate decisions, duplicate purchase orders
  5. Generation errors  - Purchase order creation failed mid-approval

USAGE:
  Callers discriminate with errors.Is:

    if errors.Is(err, procure.ErrAlreadyDecided) {
        // surface as a conflict, not a failure
    }

  The structured types (PermissionError, StateError, ...) name the exact
  precondition that failed and unwrap to their sentinel.

SEE ALSO:
  - authz.go: Produces PermissionError
  - workflow.go: Produces StateError, AlreadyDecidedError, POGenerationError
  - api/handlers.go: Maps sentinels to HTTP status codes
*/
package procure

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input: empty item lists,
	// non-positive quantities, negative prices, unknown enum values.
	ErrValidation = errors.New("validation failed")

	// ErrPermissionDenied is returned when the caller's role or identity does
	// not allow the attempted action, including self-approval attempts.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidState is returned when the request's status does not permit
	// the operation (editing after level 1, deciding out of order, deciding
	// a terminal request with no prior decision at that level).
	ErrInvalidState = errors.New("invalid request state")

	// ErrAlreadyDecided is returned when a decision already exists for the
	// (request, level) being decided. Safe to treat as idempotent conflict.
	ErrAlreadyDecided = errors.New("level already decided")

	// ErrNotFound is returned when a referenced request, approval, or
	// purchase order does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePO is returned when a purchase order already exists for a
	// request. The store's uniqueness constraint is the source of truth.
	ErrDuplicatePO = errors.New("purchase order already exists")

	// ErrPOGenerationFailed is returned when the final approval could not
	// produce its purchase order. The whole decision rolls back and the
	// request stays decidable.
	ErrPOGenerationFailed = errors.New("purchase order generation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the failed precondition
// =============================================================================

// ValidationError names the rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PermissionError names who was denied what, and why.
type PermissionError struct {
	Identity UserID
	Action   Action
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s denied for %s: %s", e.Action, e.Identity, e.Reason)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// StateError names the operation that was illegal in the current status.
type StateError struct {
	RequestID RequestID
	Status    RequestStatus
	Operation string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s request %s in status %s", e.Operation, e.RequestID, e.Status)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// AlreadyDecidedError carries the existing decision for the conflicting level.
type AlreadyDecidedError struct {
	RequestID RequestID
	Level     ApprovalLevel
	Decision  Decision
	DecidedBy UserID
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("request %s level %d already %s by %s",
		e.RequestID, e.Level, e.Decision, e.DecidedBy)
}

func (e *AlreadyDecidedError) Unwrap() error { return ErrAlreadyDecided }

// NotFoundError names the missing resource.
type NotFoundError struct {
	Kind string // "request", "purchase_order", "approval"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// POGenerationError wraps the cause of a failed purchase order generation.
type POGenerationError struct {
	RequestID RequestID
	Cause     error
}

func (e *POGenerationError) Error() string {
	return fmt.Sprintf("generating purchase order for request %s: %v", e.RequestID, e.Cause)
}

func (e *POGenerationError) Unwrap() error { return ErrPOGenerationFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is the caller's fault rather than
// a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrAlreadyDecided) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicatePO)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// CodeOf maps an error to its stable machine-readable code. Unrecognized
// errors map to "internal".
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicatePO):
		return "duplicate_po"
	case errors.Is(err, ErrPOGenerationFailed):
		return "po_generation_failed"
	}
	return "internal"
}
