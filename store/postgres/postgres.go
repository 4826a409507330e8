/*
Package postgres provides the PostgreSQL-backed implementation of the
storage interfaces.

PURPOSE:
  Implements engine.TxStore, engine.HolidayStore, and engine.HolidayCalendar
  on a pgx connection pool. Same contract as store/sqlite; pick this one
  when several service instances share a database.

CONCURRENCY:
  There is no process-wide mutex here. WithTx opens a SERIALIZABLE
  transaction, so concurrent read-validate-write sequences against the
  same employee conflict at commit instead of silently interleaving.

SCHEMA NOTES:
  Entry start/end are stored as RFC 3339 text rather than timestamptz:
  timestamptz normalizes to UTC and would drop the submitted offset,
  which the engine preserves. Dates use native DATE columns.

SEE ALSO:
  - engine/store.go: Interface definitions
  - store/sqlite: Single-file deployment twin
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/timekeep/engine"
)

// Store implements the storage interfaces using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, verifies the connection, and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		department TEXT,
		manager_id TEXT,
		substitute_id TEXT,
		leave_balance INTEGER NOT NULL DEFAULT 0,
		ruleset_id TEXT,
		hire_date DATE,
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS employees_email_unique
		ON employees (lower(email));

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date DATE NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		project TEXT NOT NULL,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS time_entries_employee_date
		ON time_entries (employee_id, date);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		substitute_id TEXT,
		notes TEXT,
		approved_by TEXT,
		approved_at TIMESTAMPTZ,
		rejection_reason TEXT,
		cancelled_by TEXT,
		cancelled_at TIMESTAMPTZ,
		deducted_days INTEGER,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS leave_requests_employee
		ON leave_requests (employee_id);
	CREATE INDEX IF NOT EXISTS leave_requests_status
		ON leave_requests (status);
	CREATE INDEX IF NOT EXISTS leave_requests_dates
		ON leave_requests (start_date, end_date);

	CREATE TABLE IF NOT EXISTS balance_movements (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		days INTEGER NOT NULL,
		kind TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		actor_id TEXT,
		effective_at DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS balance_movements_employee
		ON balance_movements (employee_id, created_at);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date DATE NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (date, name)
	);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp engine.Employee) error {
	return saveEmployee(ctx, s.pool, emp)
}

func saveEmployee(ctx context.Context, q querier, emp engine.Employee) error {
	query := `
		INSERT INTO employees
		(id, name, email, department, manager_id, substitute_id, leave_balance,
		 ruleset_id, hire_date, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			department = EXCLUDED.department,
			manager_id = EXCLUDED.manager_id,
			substitute_id = EXCLUDED.substitute_id,
			leave_balance = EXCLUDED.leave_balance,
			ruleset_id = EXCLUDED.ruleset_id,
			hire_date = EXCLUDED.hire_date,
			disabled = EXCLUDED.disabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err := q.Exec(ctx, query,
		string(emp.ID), emp.Name, emp.Email,
		textOrNil(emp.Department),
		idOrNil(emp.ManagerID),
		idOrNil(emp.SubstituteID),
		emp.LeaveBalance,
		textOrNil(emp.RulesetID),
		dateOrNil(emp.HireDate),
		emp.Disabled,
		emp.CreatedAt.UTC(),
		emp.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "email") {
			return engine.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, name, email, department, manager_id, substitute_id,
	leave_balance, ruleset_id, hire_date, disabled, created_at, updated_at`

func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	return getEmployee(ctx, s.pool, id)
}

func getEmployee(ctx context.Context, q querier, id engine.EmployeeID) (*engine.Employee, error) {
	row := q.QueryRow(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = $1", string(id))

	emp, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &emp, nil
}

func (s *Store) ListEmployees(ctx context.Context, includeDisabled bool) ([]engine.Employee, error) {
	return listEmployees(ctx, s.pool, includeDisabled)
}

func listEmployees(ctx context.Context, q querier, includeDisabled bool) ([]engine.Employee, error) {
	query := "SELECT " + employeeColumns + " FROM employees"
	if !includeDisabled {
		query += " WHERE disabled = FALSE"
	}
	query += " ORDER BY name, id"

	rows, err := q.Query(ctx, query)
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

func scanEmployee(row pgx.Row) (engine.Employee, error) {
	var (
		emp                   engine.Employee
		department, rulesetID *string
		managerID, substitute *string
		hireDate              *time.Time
	)

	err := row.Scan(&emp.ID, &emp.Name, &emp.Email, &department, &managerID,
		&substitute, &emp.LeaveBalance, &rulesetID, &hireDate, &emp.Disabled,
		&emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		return emp, err
	}

	emp.Department = deref(department)
	emp.RulesetID = deref(rulesetID)
	emp.ManagerID = toEmployeeID(managerID)
	emp.SubstituteID = toEmployeeID(substitute)
	if hireDate != nil {
		emp.HireDate = engine.DateOf(*hireDate)
	}
	return emp, nil
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

func (s *Store) SaveEntry(ctx context.Context, entry engine.TimeEntry) error {
	return saveEntry(ctx, s.pool, entry)
}

func saveEntry(ctx context.Context, q querier, entry engine.TimeEntry) error {
	query := `
		INSERT INTO time_entries
		(id, employee_id, date, start_at, end_at, break_minutes, project, notes,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			break_minutes = EXCLUDED.break_minutes,
			project = EXCLUDED.project,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`

	_, err := q.Exec(ctx, query,
		string(entry.ID), string(entry.EmployeeID), entry.Date.Time,
		entry.Start.Format(time.RFC3339), entry.End.Format(time.RFC3339),
		entry.BreakMinutes, entry.Project, textOrNil(entry.Notes),
		entry.CreatedAt.UTC(), entry.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

const entryColumns = `id, employee_id, date, start_at, end_at, break_minutes,
	project, notes, created_at, updated_at`

func (s *Store) GetEntry(ctx context.Context, id engine.EntryID) (*engine.TimeEntry, error) {
	return getEntry(ctx, s.pool, id)
}

func getEntry(ctx context.Context, q querier, id engine.EntryID) (*engine.TimeEntry, error) {
	row := q.QueryRow(ctx,
		"SELECT "+entryColumns+" FROM time_entries WHERE id = $1", string(id))

	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return &entry, nil
}

func (s *Store) DeleteEntry(ctx context.Context, id engine.EntryID) error {
	return deleteEntry(ctx, s.pool, id)
}

func deleteEntry(ctx context.Context, q querier, id engine.EntryID) error {
	tag, err := q.Exec(ctx, "DELETE FROM time_entries WHERE id = $1", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrEntryNotFound
	}
	return nil
}

func (s *Store) EntriesForDate(ctx context.Context, employeeID engine.EmployeeID, date engine.Date) ([]engine.TimeEntry, error) {
	return entriesForDate(ctx, s.pool, employeeID, date)
}

func entriesForDate(ctx context.Context, q querier, employeeID engine.EmployeeID, date engine.Date) ([]engine.TimeEntry, error) {
	query := "SELECT " + entryColumns + ` FROM time_entries
		WHERE employee_id = $1 AND date = $2 ORDER BY start_at`
	return queryEntries(ctx, q, query, string(employeeID), date.Time)
}

func (s *Store) EntriesInRange(ctx context.Context, employeeID engine.EmployeeID, from, to engine.Date) ([]engine.TimeEntry, error) {
	return entriesInRange(ctx, s.pool, employeeID, from, to)
}

func entriesInRange(ctx context.Context, q querier, employeeID engine.EmployeeID, from, to engine.Date) ([]engine.TimeEntry, error) {
	query := "SELECT " + entryColumns + ` FROM time_entries
		WHERE employee_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date, start_at`
	return queryEntries(ctx, q, query, string(employeeID), from.Time, to.Time)
}

func queryEntries(ctx context.Context, q querier, query string, args ...any) ([]engine.TimeEntry, error) {
	rows, err := q.Query(ctx, query, args...)
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

func scanEntry(row pgx.Row) (engine.TimeEntry, error) {
	var (
		entry          engine.TimeEntry
		date           time.Time
		startAt, endAt string
		notes          *string
	)

	err := row.Scan(&entry.ID, &entry.EmployeeID, &date, &startAt, &endAt,
		&entry.BreakMinutes, &entry.Project, &notes, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return entry, err
	}

	entry.Date = engine.DateOf(date)
	entry.Start, _ = time.Parse(time.RFC3339, startAt)
	entry.End, _ = time.Parse(time.RFC3339, endAt)
	entry.Notes = deref(notes)
	return entry, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (s *Store) SaveRequest(ctx context.Context, req engine.LeaveRequest) error {
	return saveRequest(ctx, s.pool, req)
}

func saveRequest(ctx context.Context, q querier, req engine.LeaveRequest) error {
	query := `
		INSERT INTO leave_requests
		(id, employee_id, type, start_date, end_date, status, substitute_id, notes,
		 approved_by, approved_at, rejection_reason, cancelled_by, cancelled_at,
		 deducted_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			status = EXCLUDED.status,
			substitute_id = EXCLUDED.substitute_id,
			notes = EXCLUDED.notes,
			approved_by = EXCLUDED.approved_by,
			approved_at = EXCLUDED.approved_at,
			rejection_reason = EXCLUDED.rejection_reason,
			cancelled_by = EXCLUDED.cancelled_by,
			cancelled_at = EXCLUDED.cancelled_at,
			deducted_days = EXCLUDED.deducted_days,
			updated_at = EXCLUDED.updated_at
	`

	_, err := q.Exec(ctx, query,
		string(req.ID), string(req.EmployeeID), req.Type,
		req.Start.Time, req.End.Time, string(req.Status),
		idOrNil(req.SubstituteID), textOrNil(req.Notes),
		idOrNil(req.ApprovedBy), req.ApprovedAt,
		req.RejectionReason,
		idOrNil(req.CancelledBy), req.CancelledAt,
		req.DeductedDays,
		req.CreatedAt.UTC(), req.UpdatedAt.UTC(),
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
	return getRequest(ctx, s.pool, id)
}

func getRequest(ctx context.Context, q querier, id engine.RequestID) (*engine.LeaveRequest, error) {
	row := q.QueryRow(ctx,
		"SELECT "+requestColumns+" FROM leave_requests WHERE id = $1", string(id))

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &req, nil
}

func (s *Store) ListRequests(ctx context.Context, filter engine.RequestFilter) ([]engine.LeaveRequest, error) {
	return listRequests(ctx, s.pool, filter)
}

func listRequests(ctx context.Context, q querier, filter engine.RequestFilter) ([]engine.LeaveRequest, error) {
	query := "SELECT " + requestColumns + " FROM leave_requests WHERE TRUE"
	var args []any

	if filter.EmployeeID != nil {
		args = append(args, string(*filter.EmployeeID))
		query += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Overlapping != nil {
		args = append(args, filter.Overlapping.End.Time)
		query += fmt.Sprintf(" AND start_date <= $%d", len(args))
		args = append(args, filter.Overlapping.Start.Time)
		query += fmt.Sprintf(" AND end_date >= $%d", len(args))
	}
	query += " ORDER BY created_at, id"

	rows, err := q.Query(ctx, query, args...)
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

func scanRequest(row pgx.Row) (engine.LeaveRequest, error) {
	var (
		req                    engine.LeaveRequest
		startDate, endDate     time.Time
		substitute, approvedBy *string
		cancelledBy, notes     *string
	)

	err := row.Scan(&req.ID, &req.EmployeeID, &req.Type, &startDate, &endDate,
		&req.Status, &substitute, &notes, &approvedBy, &req.ApprovedAt,
		&req.RejectionReason, &cancelledBy, &req.CancelledAt, &req.DeductedDays,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return req, err
	}

	req.Start = engine.DateOf(startDate)
	req.End = engine.DateOf(endDate)
	req.SubstituteID = toEmployeeID(substitute)
	req.Notes = deref(notes)
	req.ApprovedBy = toEmployeeID(approvedBy)
	req.CancelledBy = toEmployeeID(cancelledBy)
	return req, nil
}

// =============================================================================
// BALANCE MOVEMENTS
// =============================================================================

func (s *Store) AppendMovement(ctx context.Context, mv engine.BalanceMovement) error {
	return appendMovement(ctx, s.pool, mv)
}

func appendMovement(ctx context.Context, q querier, mv engine.BalanceMovement) error {
	query := `
		INSERT INTO balance_movements
		(id, employee_id, days, kind, reference_id, reason, idempotency_key,
		 actor_id, effective_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := q.Exec(ctx, query,
		string(mv.ID), string(mv.EmployeeID), mv.Days, string(mv.Kind),
		textOrNil(mv.ReferenceID), textOrNil(mv.Reason),
		textOrNil(mv.IdempotencyKey), textOrNil(string(mv.ActorID)),
		mv.EffectiveAt.Time, mv.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "idempotency") {
			return engine.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

func (s *Store) MovementsForEmployee(ctx context.Context, employeeID engine.EmployeeID) ([]engine.BalanceMovement, error) {
	return movementsForEmployee(ctx, s.pool, employeeID)
}

func movementsForEmployee(ctx context.Context, q querier, employeeID engine.EmployeeID) ([]engine.BalanceMovement, error) {
	query := `
		SELECT id, employee_id, days, kind, reference_id, reason, idempotency_key,
		       actor_id, effective_at, created_at
		FROM balance_movements
		WHERE employee_id = $1
		ORDER BY created_at, id
	`

	rows, err := q.Query(ctx, query, string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []engine.BalanceMovement
	for rows.Next() {
		var (
			mv                      engine.BalanceMovement
			referenceID, reason     *string
			idempotencyKey, actorID *string
			effectiveAt             time.Time
		)
		if err := rows.Scan(&mv.ID, &mv.EmployeeID, &mv.Days, &mv.Kind,
			&referenceID, &reason, &idempotencyKey, &actorID,
			&effectiveAt, &mv.CreatedAt); err != nil {
			return nil, err
		}
		mv.ReferenceID = deref(referenceID)
		mv.Reason = deref(reason)
		mv.IdempotencyKey = deref(idempotencyKey)
		mv.ActorID = engine.EmployeeID(deref(actorID))
		mv.EffectiveAt = engine.DateOf(effectiveAt)
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

// =============================================================================
// TRANSACTIONS (engine.TxStore)
// =============================================================================

// WithTx executes fn within a SERIALIZABLE transaction. Conflicting
// concurrent transactions fail at commit rather than interleave.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txView{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txView struct {
	tx pgx.Tx
}

func (tv *txView) SaveEmployee(ctx context.Context, emp engine.Employee) error {
	return saveEmployee(ctx, tv.tx, emp)
}

func (tv *txView) GetEmployee(ctx context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	return getEmployee(ctx, tv.tx, id)
}

func (tv *txView) ListEmployees(ctx context.Context, includeDisabled bool) ([]engine.Employee, error) {
	return listEmployees(ctx, tv.tx, includeDisabled)
}

func (tv *txView) SaveEntry(ctx context.Context, entry engine.TimeEntry) error {
	return saveEntry(ctx, tv.tx, entry)
}

func (tv *txView) GetEntry(ctx context.Context, id engine.EntryID) (*engine.TimeEntry, error) {
	return getEntry(ctx, tv.tx, id)
}

func (tv *txView) DeleteEntry(ctx context.Context, id engine.EntryID) error {
	return deleteEntry(ctx, tv.tx, id)
}

func (tv *txView) EntriesForDate(ctx context.Context, employeeID engine.EmployeeID, date engine.Date) ([]engine.TimeEntry, error) {
	return entriesForDate(ctx, tv.tx, employeeID, date)
}

func (tv *txView) EntriesInRange(ctx context.Context, employeeID engine.EmployeeID, from, to engine.Date) ([]engine.TimeEntry, error) {
	return entriesInRange(ctx, tv.tx, employeeID, from, to)
}

func (tv *txView) SaveRequest(ctx context.Context, req engine.LeaveRequest) error {
	return saveRequest(ctx, tv.tx, req)
}

func (tv *txView) GetRequest(ctx context.Context, id engine.RequestID) (*engine.LeaveRequest, error) {
	return getRequest(ctx, tv.tx, id)
}

func (tv *txView) ListRequests(ctx context.Context, filter engine.RequestFilter) ([]engine.LeaveRequest, error) {
	return listRequests(ctx, tv.tx, filter)
}

func (tv *txView) AppendMovement(ctx context.Context, mv engine.BalanceMovement) error {
	return appendMovement(ctx, tv.tx, mv)
}

func (tv *txView) MovementsForEmployee(ctx context.Context, employeeID engine.EmployeeID) ([]engine.BalanceMovement, error) {
	return movementsForEmployee(ctx, tv.tx, employeeID)
}

// =============================================================================
// HOLIDAYS (engine.HolidayStore + engine.HolidayCalendar)
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h engine.Holiday) error {
	query := `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date, name) DO UPDATE SET
			recurring = EXCLUDED.recurring
	`

	_, err := s.pool.Exec(ctx, query,
		h.ID, h.Date.Time, h.Name, h.Recurring, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM holidays WHERE id = $1", id)
	return err
}

// ListHolidays returns the holidays for a year, recurring ones materialized
// on that year's date. Year 0 returns every stored row as-is.
func (s *Store) ListHolidays(ctx context.Context, year int) ([]engine.Holiday, error) {
	query := "SELECT id, date, name, recurring FROM holidays"
	var args []any
	if year != 0 {
		query += " WHERE recurring = TRUE OR EXTRACT(YEAR FROM date) = $1"
		args = append(args, year)
	}
	query += " ORDER BY date"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []engine.Holiday
	for rows.Next() {
		var (
			h    engine.Holiday
			date time.Time
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		h.Date = engine.DateOf(date)
		if year != 0 && h.Recurring {
			h.Date = engine.NewDate(year, h.Date.Month(), h.Date.Day())
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// IsHoliday checks a single date against the holiday table.
func (s *Store) IsHoliday(date engine.Date) bool {
	query := `
		SELECT COUNT(*) FROM holidays
		WHERE (recurring = FALSE AND date = $1)
		   OR (recurring = TRUE AND to_char(date, 'MM-DD') = $2)
	`

	var count int
	err := s.pool.QueryRow(context.Background(), query,
		date.Time, date.Time.Format("01-02")).Scan(&count)
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
	tables := []string{"balance_movements", "leave_requests", "time_entries", "holidays", "employees"}
	for _, table := range tables {
		if _, err := s.pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func idOrNil(id *engine.EmployeeID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func dateOrNil(d engine.Date) *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func toEmployeeID(s *string) *engine.EmployeeID {
	if s == nil || *s == "" {
		return nil
	}
	id := engine.EmployeeID(*s)
	return &id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isUniqueViolation(err error, constraintPart string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return strings.Contains(pgErr.ConstraintName, constraintPart)
	}
	return false
}
