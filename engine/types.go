/*
Package engine implements the time & leave accounting core.

PURPOSE:
  This package contains the business rules for working-time records and
  leave bookkeeping: entry validation and normalization, the leave-request
  state machine with balance movements, and period aggregation. It is a
  library boundary: persistence, HTTP, and notification delivery are
  collaborators behind interfaces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: identity, manager/substitute links, leave balance
  - EntryCandidate / TimeEntry: a submitted entry and its normalized form
  - LeaveRequest: a dated request walking the PENDING -> terminal lifecycle
  - Actor: who performs an operation (employee, manager, admin, system)

DESIGN PRINCIPLES:
  1. Purity: validators and aggregation are functions of their inputs
  2. Precision: decimal.Decimal for hour totals, whole minutes internally
  3. Type safety: distinct ID types for employees, entries, requests
  4. Explicitness: violations are rejected with structured errors, never
     silently corrected

SEE ALSO:
  - config.go: Rule configuration consumed by the validators
  - entry.go: Validation and normalization pipeline
  - request.go: Leave lifecycle service
  - aggregate.go: Period summaries
*/
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type EntryID string
type RequestID string

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID         EmployeeID
	Name       string
	Email      string
	Department string

	// Optional self-references. Neither may point at the employee itself.
	ManagerID    *EmployeeID
	SubstituteID *EmployeeID

	// LeaveBalance is the current annual leave balance in whole days. It is
	// mutated only through the leave lifecycle and rollover, each mutation
	// paired with a BalanceMovement.
	LeaveBalance int

	// RulesetID names the factory preset governing this employee's hours.
	// Empty means the server default.
	RulesetID string

	HireDate Date

	// Disabled employees are kept for referential integrity; they cannot
	// submit entries or requests.
	Disabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e Employee) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return &InvalidInputError{Field: "name", Reason: "must not be empty"}
	}
	if !strings.Contains(e.Email, "@") {
		return &InvalidInputError{Field: "email", Reason: "must be an email address"}
	}
	if e.ManagerID != nil && *e.ManagerID == e.ID {
		return &InvalidInputError{Field: "manager_id", Reason: "employee cannot be their own manager"}
	}
	if e.SubstituteID != nil && *e.SubstituteID == e.ID {
		return &InvalidInputError{Field: "substitute_id", Reason: "employee cannot be their own substitute"}
	}
	if e.LeaveBalance < 0 {
		return &InvalidInputError{Field: "leave_balance", Reason: "must not be negative"}
	}
	return nil
}

// =============================================================================
// TIME ENTRY - Candidate and normalized forms
// =============================================================================

// EntryCandidate is a submitted entry before normalization. BreakMinutes is
// a pointer: nil means "not supplied", which is what triggers automatic
// break derivation.
type EntryCandidate struct {
	EmployeeID   EmployeeID
	Date         Date
	Start        time.Time
	End          time.Time
	BreakMinutes *int
	Project      string
	Notes        string
}

// TimeEntry is a normalized, persistable entry. Start/End keep their
// submitted offsets; interval comparisons convert to UTC.
type TimeEntry struct {
	ID           EntryID
	EmployeeID   EmployeeID
	Date         Date
	Start        time.Time
	End          time.Time
	BreakMinutes int
	Project      string
	Notes        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SpanMinutes is the raw end-start span in whole minutes.
func (t TimeEntry) SpanMinutes() int {
	return int(t.End.Sub(t.Start) / time.Minute)
}

// WorkedMinutes is span minus break.
func (t TimeEntry) WorkedMinutes() int {
	return t.SpanMinutes() - t.BreakMinutes
}

// WorkedHours is worked time as exact decimal hours (465 min -> 7.75).
func (t TimeEntry) WorkedHours() decimal.Decimal {
	return HoursFromMinutes(t.WorkedMinutes())
}

// Interval returns the entry's [start, end) bounds in UTC, the canonical
// timezone used for every overlap comparison.
func (t TimeEntry) Interval() (time.Time, time.Time) {
	return t.Start.UTC(), t.End.UTC()
}

// HoursFromMinutes converts whole minutes to decimal hours without float
// drift.
func HoursFromMinutes(m int) decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(decimal.NewFromInt(60))
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted except the
// explicitly allowed approved -> cancelled edge.
func (s RequestStatus) Terminal() bool { return s != StatusPending }

type LeaveRequest struct {
	ID         RequestID
	EmployeeID EmployeeID
	Type       string // configured leave type code
	Start      Date
	End        Date // inclusive, Start <= End

	Status RequestStatus

	// Optional stand-in while the employee is away.
	SubstituteID *EmployeeID

	Notes string

	// Transition audit trail.
	ApprovedBy      *EmployeeID
	ApprovedAt      *time.Time
	RejectionReason *string
	CancelledBy     *EmployeeID
	CancelledAt     *time.Time

	// DeductedDays records the day-count actually taken from the balance at
	// approval, so a later cancellation restores exactly that number even if
	// the working-day calendar changed in between.
	DeductedDays *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Period returns the request's inclusive date range.
func (r LeaveRequest) Period() Period { return Period{Start: r.Start, End: r.End} }

// =============================================================================
// ACTOR - Who is performing an operation
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

type Actor struct {
	ID   EmployeeID
	Role Role
}

// SystemActor is used by background jobs (rollover, scenario seeding).
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// HasApprovalAuthority reports whether the actor may approve or reject
// requests of the given employee: admins and the system always, a manager
// only for their own reports.
func (a Actor) HasApprovalAuthority(emp Employee) bool {
	switch a.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleManager:
		return emp.ManagerID != nil && *emp.ManagerID == a.ID
	default:
		return false
	}
}
