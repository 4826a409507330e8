/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements engine.TxStore, engine.HolidayStore, and engine.HolidayCalendar
  on a single SQLite file. The default deployment runs on this store; the
  postgres package implements the same contract for shared deployments.

KEY TABLES:
  employees:         One row per employee, live leave balance included
  time_entries:      Normalized entries keyed by (employee, date)
  leave_requests:    Full lifecycle state of each request
  balance_movements: Append-only ledger of balance changes
  holidays:          Non-working days for the working-day calendar

CONSTRAINT BACKSTOPS:
  The engine validates before writing, but two invariants are also
  enforced by the schema so no code path can break them:
  - employees.email is UNIQUE (case-insensitive)
  - balance_movements.idempotency_key is UNIQUE
  Violations map to engine.ErrDuplicateEmail and
  engine.ErrDuplicateIdempotencyKey.

TRANSACTIONS:
  WithTx wraps fn in BEGIN/COMMIT and hands it a view whose reads and
  writes all run on the same database transaction. The engine relies on
  this for its read-validate-write sequences (overlap checks, balance
  deductions).

WAL MODE:
  The database is opened with WAL so readers do not block the writer.
  A process-wide RWMutex serializes writers; PostgreSQL deployments get
  this from the database instead.

USAGE:
  store, err := sqlite.New("./data/timekeep.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). Use ":memory:" for throwaway
  databases in tests.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/timekeep/engine"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Employees (live balance included; the movement ledger is the audit trail)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL COLLATE NOCASE UNIQUE,
		department TEXT,
		manager_id TEXT,
		substitute_id TEXT,
		leave_balance INTEGER NOT NULL DEFAULT 0,
		ruleset_id TEXT,
		hire_date TEXT,
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Time entries; (employee_id, date) is the overlap-check hot path
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		project TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_employee_date
		ON time_entries(employee_id, date);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		substitute_id TEXT,
		notes TEXT,
		approved_by TEXT,
		approved_at TEXT,
		rejection_reason TEXT,
		cancelled_by TEXT,
		cancelled_at TEXT,
		deducted_days INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);
	-- ISO dates compare lexicographically, so range scans work on TEXT
	CREATE INDEX IF NOT EXISTS idx_requests_dates
		ON leave_requests(start_date, end_date);

	-- Balance movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS balance_movements (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		days INTEGER NOT NULL,
		kind TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		actor_id TEXT,
		effective_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_employee
		ON balance_movements(employee_id, created_at);

	-- Holidays
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every query helper
// can run standalone or inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp engine.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveEmployee(ctx, s.db, emp)
}

func (s *Store) saveEmployee(ctx context.Context, db dbtx, emp engine.Employee) error {
	query := `
		INSERT INTO employees
		(id, name, email, department, manager_id, substitute_id, leave_balance,
		 ruleset_id, hire_date, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department = excluded.department,
			manager_id = excluded.manager_id,
			substitute_id = excluded.substitute_id,
			leave_balance = excluded.leave_balance,
			ruleset_id = excluded.ruleset_id,
			hire_date = excluded.hire_date,
			disabled = excluded.disabled,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Email,
		nullString(emp.Department),
		nullEmployeeID(emp.ManagerID),
		nullEmployeeID(emp.SubstituteID),
		emp.LeaveBalance,
		nullString(emp.RulesetID),
		nullDate(emp.HireDate),
		emp.Disabled,
		emp.CreatedAt.UTC().Format(time.RFC3339),
		emp.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, name, email, department, manager_id, substitute_id,
	leave_balance, ruleset_id, hire_date, disabled, created_at, updated_at`

func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployee(ctx, s.db, id)
}

func (s *Store) getEmployee(ctx context.Context, db dbtx, id engine.EmployeeID) (*engine.Employee, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)

	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &emp, nil
}

func (s *Store) ListEmployees(ctx context.Context, includeDisabled bool) ([]engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEmployees(ctx, s.db, includeDisabled)
}

func (s *Store) listEmployees(ctx context.Context, db dbtx, includeDisabled bool) ([]engine.Employee, error) {
	query := "SELECT " + employeeColumns + " FROM employees"
	if !includeDisabled {
		query += " WHERE disabled = FALSE"
	}
	query += " ORDER BY name, id"

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []engine.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func scanEmployee(sc scanner) (engine.Employee, error) {
	var (
		emp                   engine.Employee
		department, rulesetID sql.NullString
		managerID, substitute sql.NullString
		hireDate              sql.NullString
		createdAt, updatedAt  string
	)

	err := sc.Scan(&emp.ID, &emp.Name, &emp.Email, &department, &managerID,
		&substitute, &emp.LeaveBalance, &rulesetID, &hireDate, &emp.Disabled,
		&createdAt, &updatedAt)
	if err != nil {
		return emp, err
	}

	emp.Department = department.String
	emp.RulesetID = rulesetID.String
	emp.ManagerID = employeeIDPtr(managerID)
	emp.SubstituteID = employeeIDPtr(substitute)
	if hireDate.Valid {
		emp.HireDate, _ = engine.ParseDate(hireDate.String)
	}
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	emp.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return emp, nil
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

func (s *Store) SaveEntry(ctx context.Context, entry engine.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveEntry(ctx, s.db, entry)
}

func (s *Store) saveEntry(ctx context.Context, db dbtx, entry engine.TimeEntry) error {
	query := `
		INSERT INTO time_entries
		(id, employee_id, date, start_at, end_at, break_minutes, project, notes,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			break_minutes = excluded.break_minutes,
			project = excluded.project,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		entry.ID, entry.EmployeeID, entry.Date.String(),
		entry.Start.Format(time.RFC3339), entry.End.Format(time.RFC3339),
		entry.BreakMinutes, entry.Project, nullString(entry.Notes),
		entry.CreatedAt.UTC().Format(time.RFC3339),
		entry.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

const entryColumns = `id, employee_id, date, start_at, end_at, break_minutes,
	project, notes, created_at, updated_at`

func (s *Store) GetEntry(ctx context.Context, id engine.EntryID) (*engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntry(ctx, s.db, id)
}

func (s *Store) getEntry(ctx context.Context, db dbtx, id engine.EntryID) (*engine.TimeEntry, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM time_entries WHERE id = ?", id)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return &entry, nil
}

func (s *Store) DeleteEntry(ctx context.Context, id engine.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteEntry(ctx, s.db, id)
}

func (s *Store) deleteEntry(ctx context.Context, db dbtx, id engine.EntryID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM time_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrEntryNotFound
	}
	return nil
}

func (s *Store) EntriesForDate(ctx context.Context, employeeID engine.EmployeeID, date engine.Date) ([]engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesForDate(ctx, s.db, employeeID, date)
}

func (s *Store) entriesForDate(ctx context.Context, db dbtx, employeeID engine.EmployeeID, date engine.Date) ([]engine.TimeEntry, error) {
	query := "SELECT " + entryColumns + ` FROM time_entries
		WHERE employee_id = ? AND date = ? ORDER BY start_at`
	return s.queryEntries(ctx, db, query, employeeID, date.String())
}

func (s *Store) EntriesInRange(ctx context.Context, employeeID engine.EmployeeID, from, to engine.Date) ([]engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesInRange(ctx, s.db, employeeID, from, to)
}

func (s *Store) entriesInRange(ctx context.Context, db dbtx, employeeID engine.EmployeeID, from, to engine.Date) ([]engine.TimeEntry, error) {
	query := "SELECT " + entryColumns + ` FROM time_entries
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date, start_at`
	return s.queryEntries(ctx, db, query, employeeID, from.String(), to.String())
}

func (s *Store) queryEntries(ctx context.Context, db dbtx, query string, args ...any) ([]engine.TimeEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []engine.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(sc scanner) (engine.TimeEntry, error) {
	var (
		entry                engine.TimeEntry
		date, startAt, endAt string
		notes                sql.NullString
		createdAt, updatedAt string
	)

	err := sc.Scan(&entry.ID, &entry.EmployeeID, &date, &startAt, &endAt,
		&entry.BreakMinutes, &entry.Project, &notes, &createdAt, &updatedAt)
	if err != nil {
		return entry, err
	}

	entry.Date, _ = engine.ParseDate(date)
	entry.Start, _ = time.Parse(time.RFC3339, startAt)
	entry.End, _ = time.Parse(time.RFC3339, endAt)
	entry.Notes = notes.String
	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return entry, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (s *Store) SaveRequest(ctx context.Context, req engine.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRequest(ctx, s.db, req)
}

func (s *Store) saveRequest(ctx context.Context, db dbtx, req engine.LeaveRequest) error {
	query := `
		INSERT INTO leave_requests
		(id, employee_id, type, start_date, end_date, status, substitute_id, notes,
		 approved_by, approved_at, rejection_reason, cancelled_by, cancelled_at,
		 deducted_days, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			substitute_id = excluded.substitute_id,
			notes = excluded.notes,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			rejection_reason = excluded.rejection_reason,
			cancelled_by = excluded.cancelled_by,
			cancelled_at = excluded.cancelled_at,
			deducted_days = excluded.deducted_days,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		req.ID, req.EmployeeID, req.Type,
		req.Start.String(), req.End.String(), req.Status,
		nullEmployeeID(req.SubstituteID), nullString(req.Notes),
		nullEmployeeID(req.ApprovedBy), nullTime(req.ApprovedAt),
		nullStringPtr(req.RejectionReason),
		nullEmployeeID(req.CancelledBy), nullTime(req.CancelledAt),
		nullInt(req.DeductedDays),
		req.CreatedAt.UTC().Format(time.RFC3339),
		req.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

const requestColumns = `id, employee_id, type, start_date, end_date, status,
	substitute_id, notes, approved_by, approved_at, rejection_reason,
	cancelled_by, cancelled_at, deducted_days, created_at, updated_at`

func (s *Store) GetRequest(ctx context.Context, id engine.RequestID) (*engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRequest(ctx, s.db, id)
}

func (s *Store) getRequest(ctx context.Context, db dbtx, id engine.RequestID) (*engine.LeaveRequest, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &req, nil
}

func (s *Store) ListRequests(ctx context.Context, filter engine.RequestFilter) ([]engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRequests(ctx, s.db, filter)
}

func (s *Store) listRequests(ctx context.Context, db dbtx, filter engine.RequestFilter) ([]engine.LeaveRequest, error) {
	query := "SELECT " + requestColumns + " FROM leave_requests WHERE 1=1"
	var args []any

	if filter.EmployeeID != nil {
		query += " AND employee_id = ?"
		args = append(args, *filter.EmployeeID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.Overlapping != nil {
		query += " AND start_date <= ? AND end_date >= ?"
		args = append(args, filter.Overlapping.End.String(), filter.Overlapping.Start.String())
	}
	query += " ORDER BY created_at, id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []engine.LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(sc scanner) (engine.LeaveRequest, error) {
	var (
		req                     engine.LeaveRequest
		startDate, endDate      string
		substitute, approvedBy  sql.NullString
		cancelledBy             sql.NullString
		notes, rejectionReason  sql.NullString
		approvedAt, cancelledAt sql.NullString
		deductedDays            sql.NullInt64
		createdAt, updatedAt    string
	)

	err := sc.Scan(&req.ID, &req.EmployeeID, &req.Type, &startDate, &endDate,
		&req.Status, &substitute, &notes, &approvedBy, &approvedAt,
		&rejectionReason, &cancelledBy, &cancelledAt, &deductedDays,
		&createdAt, &updatedAt)
	if err != nil {
		return req, err
	}

	req.Start, _ = engine.ParseDate(startDate)
	req.End, _ = engine.ParseDate(endDate)
	req.SubstituteID = employeeIDPtr(substitute)
	req.Notes = notes.String
	req.ApprovedBy = employeeIDPtr(approvedBy)
	req.ApprovedAt = timePtr(approvedAt)
	if rejectionReason.Valid {
		reason := rejectionReason.String
		req.RejectionReason = &reason
	}
	req.CancelledBy = employeeIDPtr(cancelledBy)
	req.CancelledAt = timePtr(cancelledAt)
	if deductedDays.Valid {
		days := int(deductedDays.Int64)
		req.DeductedDays = &days
	}
	req.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	req.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return req, nil
}

// =============================================================================
// BALANCE MOVEMENTS
// =============================================================================

func (s *Store) AppendMovement(ctx context.Context, mv engine.BalanceMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendMovement(ctx, s.db, mv)
}

func (s *Store) appendMovement(ctx context.Context, db dbtx, mv engine.BalanceMovement) error {
	query := `
		INSERT INTO balance_movements
		(id, employee_id, days, kind, reference_id, reason, idempotency_key,
		 actor_id, effective_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		mv.ID, mv.EmployeeID, mv.Days, mv.Kind,
		nullString(mv.ReferenceID), nullString(mv.Reason),
		nullString(mv.IdempotencyKey), nullString(string(mv.ActorID)),
		mv.EffectiveAt.String(),
		mv.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

func (s *Store) MovementsForEmployee(ctx context.Context, employeeID engine.EmployeeID) ([]engine.BalanceMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movementsForEmployee(ctx, s.db, employeeID)
}

func (s *Store) movementsForEmployee(ctx context.Context, db dbtx, employeeID engine.EmployeeID) ([]engine.BalanceMovement, error) {
	query := `
		SELECT id, employee_id, days, kind, reference_id, reason, idempotency_key,
		       actor_id, effective_at, created_at
		FROM balance_movements
		WHERE employee_id = ?
		ORDER BY created_at, id
	`

	rows, err := db.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []engine.BalanceMovement
	for rows.Next() {
		var (
			mv                      engine.BalanceMovement
			referenceID, reason     sql.NullString
			idempotencyKey, actorID sql.NullString
			effectiveAt, createdAt  string
		)
		if err := rows.Scan(&mv.ID, &mv.EmployeeID, &mv.Days, &mv.Kind,
			&referenceID, &reason, &idempotencyKey, &actorID,
			&effectiveAt, &createdAt); err != nil {
			return nil, err
		}
		mv.ReferenceID = referenceID.String
		mv.Reason = reason.String
		mv.IdempotencyKey = idempotencyKey.String
		mv.ActorID = engine.EmployeeID(actorID.String)
		mv.EffectiveAt, _ = engine.ParseDate(effectiveAt)
		mv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

// =============================================================================
// TRANSACTIONS (engine.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. The view passed to fn
// runs every read and write on that transaction.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txView{parent: s, tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txView struct {
	parent *Store
	tx     *sql.Tx
}

func (tv *txView) SaveEmployee(ctx context.Context, emp engine.Employee) error {
	return tv.parent.saveEmployee(ctx, tv.tx, emp)
}

func (tv *txView) GetEmployee(ctx context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	return tv.parent.getEmployee(ctx, tv.tx, id)
}

func (tv *txView) ListEmployees(ctx context.Context, includeDisabled bool) ([]engine.Employee, error) {
	return tv.parent.listEmployees(ctx, tv.tx, includeDisabled)
}

func (tv *txView) SaveEntry(ctx context.Context, entry engine.TimeEntry) error {
	return tv.parent.saveEntry(ctx, tv.tx, entry)
}

func (tv *txView) GetEntry(ctx context.Context, id engine.EntryID) (*engine.TimeEntry, error) {
	return tv.parent.getEntry(ctx, tv.tx, id)
}

func (tv *txView) DeleteEntry(ctx context.Context, id engine.EntryID) error {
	return tv.parent.deleteEntry(ctx, tv.tx, id)
}

func (tv *txView) EntriesForDate(ctx context.Context, employeeID engine.EmployeeID, date engine.Date) ([]engine.TimeEntry, error) {
	return tv.parent.entriesForDate(ctx, tv.tx, employeeID, date)
}

func (tv *txView) EntriesInRange(ctx context.Context, employeeID engine.EmployeeID, from, to engine.Date) ([]engine.TimeEntry, error) {
	return tv.parent.entriesInRange(ctx, tv.tx, employeeID, from, to)
}

func (tv *txView) SaveRequest(ctx context.Context, req engine.LeaveRequest) error {
	return tv.parent.saveRequest(ctx, tv.tx, req)
}

func (tv *txView) GetRequest(ctx context.Context, id engine.RequestID) (*engine.LeaveRequest, error) {
	return tv.parent.getRequest(ctx, tv.tx, id)
}

func (tv *txView) ListRequests(ctx context.Context, filter engine.RequestFilter) ([]engine.LeaveRequest, error) {
	return tv.parent.listRequests(ctx, tv.tx, filter)
}

func (tv *txView) AppendMovement(ctx context.Context, mv engine.BalanceMovement) error {
	return tv.parent.appendMovement(ctx, tv.tx, mv)
}

func (tv *txView) MovementsForEmployee(ctx context.Context, employeeID engine.EmployeeID) ([]engine.BalanceMovement, error) {
	return tv.parent.movementsForEmployee(ctx, tv.tx, employeeID)
}

// =============================================================================
// HOLIDAYS (engine.HolidayStore + engine.HolidayCalendar)
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h engine.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, name) DO UPDATE SET
			recurring = excluded.recurring
	`

	_, err := s.db.ExecContext(ctx, query,
		h.ID, h.Date.String(), h.Name, h.Recurring,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// ListHolidays returns the holidays for a year, recurring ones materialized
// on that year's date. Year 0 returns every stored row as-is.
func (s *Store) ListHolidays(ctx context.Context, year int) ([]engine.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, date, name, recurring FROM holidays"
	var args []any
	if year != 0 {
		query += " WHERE recurring = TRUE OR strftime('%Y', date) = ?"
		args = append(args, fmt.Sprintf("%d", year))
	}
	query += " ORDER BY date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []engine.Holiday
	for rows.Next() {
		var (
			h       engine.Holiday
			dateStr string
		)
		if err := rows.Scan(&h.ID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		h.Date, _ = engine.ParseDate(dateStr)
		if year != 0 && h.Recurring {
			h.Date = engine.NewDate(year, h.Date.Month(), h.Date.Day())
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// IsHoliday checks a single date against the holiday table.
func (s *Store) IsHoliday(date engine.Date) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COUNT(*) FROM holidays
		WHERE (recurring = FALSE AND date = ?)
		   OR (recurring = TRUE AND strftime('%m-%d', date) = ?)
	`

	var count int
	err := s.db.QueryRow(query, date.String(), date.Time.Format("01-02")).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// Holidays implements engine.HolidayCalendar.
func (s *Store) Holidays(year int) []engine.Holiday {
	holidays, err := s.ListHolidays(context.Background(), year)
	if err != nil {
		return nil
	}
	return holidays
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demos and tests).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"balance_movements", "leave_requests", "time_entries", "holidays", "employees"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullEmployeeID(id *engine.EmployeeID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func employeeIDPtr(ns sql.NullString) *engine.EmployeeID {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	id := engine.EmployeeID(ns.String)
	return &id
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullDate(d engine.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
