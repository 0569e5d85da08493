/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error kinds in one place. Every failure the engine reports is one of
  the sentinels below, possibly wrapped in a structured error that carries
  the rule that failed. Callers use errors.Is for the kind and errors.As
  for the details.

ERROR KINDS:
  ErrInvalidRange         end date before start date
  ErrNotFound             missing employee, request or holiday
  ErrForbidden            authorization denial (role pair or self-action)
  ErrAlreadyFinalized     transition attempted on a non-pending request
  ErrInsufficientBalance  debit exceeds balance at approval time
  ErrTransient            lock/transaction contention, safe to retry

RECOVERY:
  Only ErrTransient is retried (see IsRetryable). Everything else is
  surfaced to the caller as-is and ends the single operation.

SEE ALSO:
  - ledger.go: InsufficientBalanceError
  - locker.go: TransientError
  - api/errors.go: HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidRange        = errors.New("invalid range: end before start")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrAlreadyFinalized    = errors.New("request already finalized")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransient           = errors.New("transient contention, retry")

	// ErrInvalidAmount is returned for negative ledger amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidComment is returned when a comment exceeds the length bound.
	ErrInvalidComment = errors.New("invalid comment")

	ErrInvalidRole      = errors.New("invalid role")
	ErrDuplicateHoliday = errors.New("holiday already exists on this date")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRangeError reports a date range whose end precedes its start.
type InvalidRangeError struct {
	Start Date
	End   Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: end %s is before start %s", e.End, e.Start)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "employee", "request", "holiday"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ForbiddenReason distinguishes why an action was denied. Callers only see
// ErrForbidden; the reason is for logs and messages.
type ForbiddenReason string

const (
	ReasonRolePair         ForbiddenReason = "role_pair"
	ReasonSelfAction       ForbiddenReason = "self_action"
	ReasonNotSelf          ForbiddenReason = "not_self"
	ReasonSubmitNotAllowed ForbiddenReason = "submit_not_allowed"
	ReasonAdminOnly        ForbiddenReason = "admin_only"
)

// ForbiddenError reports an authorization denial.
type ForbiddenError struct {
	ActorID string
	Action  string
	Reason  ForbiddenReason
	Detail  string
}

func (e *ForbiddenError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("forbidden (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("forbidden (%s): actor %s may not %s", e.Reason, e.ActorID, e.Action)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// AlreadyFinalizedError reports a transition on a terminal request.
type AlreadyFinalizedError struct {
	RequestID string
	Status    string
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("request %s is already %s", e.RequestID, e.Status)
}

func (e *AlreadyFinalizedError) Unwrap() error { return ErrAlreadyFinalized }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID EntityID
	Available  int
	Requested  int
}

func (e *InsufficientBalanceError) Shortfall() int { return e.Requested - e.Available }

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, requested %d, shortfall %d",
		e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// TransientError reports contention on a key. The operation had no effect.
type TransientError struct {
	Key string
	Err error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient contention on %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("transient contention on %s", e.Key)
}

func (e *TransientError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransient}
	}
	return []error{ErrTransient, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsClientError returns true if the error is due to invalid client input
// or a business rule, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidComment) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrAlreadyFinalized) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateHoliday)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
