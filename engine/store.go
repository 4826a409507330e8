/*
store.go - Persistence interface consumed by the engine services

PURPOSE:
  Defines the contract between business logic and the database. The engine
  never touches SQL; services read and write through these interfaces and
  implementations decide the mechanics (SQLite, PostgreSQL, in-memory).

KEY INTERFACES:
  Store:        Aggregate persistence (employees, entries, requests, movements)
  TxStore:      Store plus WithTx for atomic read-validate-write sequences
  HolidayStore: Holiday table CRUD for store-backed calendars

ATOMICITY CONTRACT:
  A leave transition persists the request's status change, the employee's
  balance change, and the balance movement in ONE transaction. The engine
  requires this of the store; it cannot provide it itself because its
  validators are deliberately side-effect-free. WithTx is also what
  serializes concurrent per-employee mutations: overlap and balance checks
  run inside the same transaction as their writes.

SCOPED READS:
  EntriesForDate exists because overlap detection needs the employee's
  already-persisted entries for one calendar date, never a global scan.

IMPLEMENTATIONS:
  - engine/store:   in-memory, snapshot rollback (tests, demos)
  - store/sqlite:   SQLite with WAL, constraint backstops
  - store/postgres: pgx pool, same contract

SEE ALSO:
  - request.go: Uses WithTx for transitions
  - ledger.go: BalanceMovement appended through this interface
*/
package engine

import "context"

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// Employees. SaveEmployee inserts or updates; a taken email returns
	// ErrDuplicateEmail, a missing id on read returns ErrEmployeeNotFound.
	SaveEmployee(ctx context.Context, emp Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context, includeDisabled bool) ([]Employee, error)

	// Time entries. EntriesForDate returns the normalized entries for one
	// employee and calendar date, ordered by start.
	SaveEntry(ctx context.Context, entry TimeEntry) error
	GetEntry(ctx context.Context, id EntryID) (*TimeEntry, error)
	DeleteEntry(ctx context.Context, id EntryID) error
	EntriesForDate(ctx context.Context, employeeID EmployeeID, date Date) ([]TimeEntry, error)
	EntriesInRange(ctx context.Context, employeeID EmployeeID, from, to Date) ([]TimeEntry, error)

	// Leave requests.
	SaveRequest(ctx context.Context, req LeaveRequest) error
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error)

	// Balance movements. Append-only; duplicate idempotency keys return
	// ErrDuplicateIdempotencyKey. Movements come back ordered by creation.
	AppendMovement(ctx context.Context, mv BalanceMovement) error
	MovementsForEmployee(ctx context.Context, employeeID EmployeeID) ([]BalanceMovement, error)
}

// RequestFilter narrows ListRequests. Nil fields match everything.
type RequestFilter struct {
	EmployeeID  *EmployeeID
	Status      *RequestStatus
	Overlapping *Period
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// HOLIDAY STORE
// =============================================================================

// HolidayStore manages the holiday table behind a store-backed calendar.
// The SQL stores implement both this and HolidayCalendar.
type HolidayStore interface {
	SaveHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context, year int) ([]Holiday, error)
}
