/*
errors.go - Centralized error types for the accounting engine

PURPOSE:
  All engine errors in one place for consistency and discoverability.
  Each rule violation has a sentinel (for errors.Is) and a structured
  type carrying enough detail to render an actionable message. Silent
  clamping is not an option; violations are rejected with specifics.

ERROR CATEGORIES:
  1. Validation errors - entry rule violations (input, overlap, break, limits)
  2. Lifecycle errors  - illegal transitions, insufficient balance
  3. Store errors      - missing rows, duplicate keys

USAGE:
  _, err := validator.ValidateAndNormalize(candidate, existing)
  var overlap *OverlapError
  if errors.As(err, &overlap) {
      // overlap.ConflictingIDs names the colliding entries
  }

SEE ALSO:
  - entry.go: Returns validation errors
  - request.go: Returns lifecycle errors
  - store.go: Store contract using the store sentinels
*/
package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed or missing fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOverlap is returned when an entry's [start, end) interval collides
	// with an existing entry on the same employee and date.
	ErrOverlap = errors.New("overlapping time entry")

	// ErrInsufficientBreak is returned when an explicit break is below the
	// regulatory minimum for the worked span.
	ErrInsufficientBreak = errors.New("insufficient break")

	// ErrDailyLimitExceeded is returned when worked time exceeds the daily
	// ceiling. Regulatory, enforced, never just warned.
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")

	// ErrWeeklyLimitExceeded is returned when a submission would push the
	// week's total over the weekly ceiling.
	ErrWeeklyLimitExceeded = errors.New("weekly limit exceeded")

	// ErrInvalidTransition is returned for a leave status change outside the
	// allowed state machine. Indicates a caller bug or stale client state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInsufficientBalance is returned when approval would drive the leave
	// balance negative.
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrNotAuthorized is returned when the acting user lacks approval
	// authority over the request.
	ErrNotAuthorized = errors.New("actor not authorized")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrEntryNotFound is returned when a referenced time entry doesn't exist.
	ErrEntryNotFound = errors.New("time entry not found")

	// ErrRequestNotFound is returned when a referenced leave request doesn't exist.
	ErrRequestNotFound = errors.New("leave request not found")

	// ErrDuplicateEmail is returned when an employee email is already taken.
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrDuplicateIdempotencyKey is returned when a balance movement with the
	// same idempotency key already exists. Expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrEmployeeDisabled is returned when mutating data of a disabled employee.
	ErrEmployeeDisabled = errors.New("employee is disabled")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the detail a caller needs to render a message
// =============================================================================

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// OverlapError carries the ids of the entries the candidate collides with.
type OverlapError struct {
	EmployeeID     EmployeeID
	Date           Date
	ConflictingIDs []EntryID
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlapping time entry for %s on %s (conflicts: %v)",
		e.EmployeeID, e.Date, e.ConflictingIDs)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// InsufficientBreakError reports the explicit break against the required minimum.
type InsufficientBreakError struct {
	ProvidedMinutes int
	RequiredMinutes int
	SpanHours       decimal.Decimal
}

func (e *InsufficientBreakError) Error() string {
	return fmt.Sprintf("insufficient break: %d min provided, %d min required for a %sh span",
		e.ProvidedMinutes, e.RequiredMinutes, e.SpanHours)
}

func (e *InsufficientBreakError) Unwrap() error { return ErrInsufficientBreak }

// DailyLimitExceededError reports worked time against the daily ceiling.
type DailyLimitExceededError struct {
	Date        Date
	WorkedHours decimal.Decimal
	LimitHours  decimal.Decimal
}

func (e *DailyLimitExceededError) Error() string {
	return fmt.Sprintf("daily limit exceeded on %s: worked %sh, limit %sh",
		e.Date, e.WorkedHours, e.LimitHours)
}

func (e *DailyLimitExceededError) Unwrap() error { return ErrDailyLimitExceeded }

// WeeklyLimitExceededError reports the week's total against the weekly ceiling.
type WeeklyLimitExceededError struct {
	WeekStart   Date
	WorkedHours decimal.Decimal
	LimitHours  decimal.Decimal
}

func (e *WeeklyLimitExceededError) Error() string {
	return fmt.Sprintf("weekly limit exceeded for week of %s: worked %sh, limit %sh",
		e.WeekStart, e.WorkedHours, e.LimitHours)
}

func (e *WeeklyLimitExceededError) Unwrap() error { return ErrWeeklyLimitExceeded }

// InvalidTransitionError names the attempted edge.
type InvalidTransitionError struct {
	RequestID RequestID
	From      RequestStatus
	To        RequestStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for request %s: %s -> %s", e.RequestID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// InsufficientBalanceError reports the shortage in days.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Available  int
	Requested  int
	Shortfall  int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance for %s: available %d, requested %d, shortfall %d",
		e.EmployeeID, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a rule violation the user can
// correct, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrInsufficientBreak) ||
		errors.Is(err, ErrDailyLimitExceeded) ||
		errors.Is(err, ErrWeeklyLimitExceeded) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrEmployeeDisabled)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}

// IsConflict returns true for duplicate-key style failures.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrOverlap)
}
