/*
handlers.go - HTTP API handlers for the time accounting engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the engine services.

ENDPOINTS:
  Employees:
    GET    /api/employees               List employees
    POST   /api/employees               Create employee (writes opening grant)
    GET    /api/employees/{id}          Get employee details
    PUT    /api/employees/{id}          Update employee
    DELETE /api/employees/{id}          Soft-disable employee
    POST   /api/employees/{id}/enable   Re-enable employee
    GET    /api/employees/{id}/balance  Pending-aware balance view
    GET    /api/employees/{id}/movements Balance ledger history

  Time entries:
    GET    /api/employees/{id}/entries  List entries (?date= or ?from=&to=)
    POST   /api/employees/{id}/entries  Submit entry
    PUT    /api/entries/{id}            Update entry
    DELETE /api/entries/{id}            Delete entry

  Leave requests:
    GET    /api/employees/{id}/requests List requests (?status=)
    POST   /api/employees/{id}/requests Submit leave request
    GET    /api/requests/pending        All pending requests
    POST   /api/requests/{id}/approve   Approve (deducts balance)
    POST   /api/requests/{id}/reject    Reject with reason
    POST   /api/requests/{id}/cancel    Cancel (restores if approved)

  Reports:
    GET    /api/employees/{id}/summary        Monthly aggregation (?month=)
    GET    /api/employees/{id}/summary/export Monthly summary as .xlsx

  Admin:
    POST   /api/admin/rollover          Year-end balance close
    POST   /api/admin/reset             Database reset (dev only)

ACTORS:
  Bodies may carry actor_id naming who performs the operation. The role
  is derived from data: the employee themself, their manager, or (for
  unknown/absent IDs and the literal "admin") an administrator. There is
  no authentication; see the deployment notes before exposing this.

ERROR HANDLING:
  Engine errors map to HTTP status by kind:
  - 400: Validation errors, rule violations the caller can correct
  - 403: Actor lacks authority
  - 404: Missing records
  - 409: Overlaps, duplicate keys, impossible transitions
  - 500: Infrastructure failures

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/timekeep/engine"
	"github.com/warp/timekeep/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is what the handlers need from persistence: the transactional
// engine contract, holiday management, and a dev-only reset.
type Store interface {
	engine.TxStore
	engine.HolidayStore
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Entries  *engine.EntryService
	Leave    *engine.LeaveService
	Rulesets *factory.Library
	Logger   *slog.Logger

	rulesetFactory *factory.RulesetFactory

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store and services.
func NewHandler(store Store, entries *engine.EntryService, leave *engine.LeaveService, rulesets *factory.Library, logger *slog.Logger) *Handler {
	if rulesets == nil {
		rulesets = factory.DefaultLibrary()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:          store,
		Entries:        entries,
		Leave:          leave,
		Rulesets:       rulesets,
		Logger:         logger,
		rulesetFactory: factory.NewRulesetFactory(),
	}
}

// entitlementFor resolves an employee's entitlement policy via their ruleset.
func (h *Handler) entitlementFor(emp engine.Employee) engine.EntitlementPolicy {
	return h.Rulesets.ForEmployee(emp).Entitlement
}

// resolveActor derives the acting identity for an operation on target.
// Unknown or absent IDs act as the administrator; a known employee acts
// as themself, or as a manager when the target reports to them.
func (h *Handler) resolveActor(ctx context.Context, actorID string, target *engine.Employee) engine.Actor {
	switch actorID {
	case "", "admin":
		return engine.Actor{ID: "admin", Role: engine.RoleAdmin}
	case "system":
		return engine.SystemActor
	}

	id := engine.EmployeeID(actorID)
	if _, err := h.Store.GetEmployee(ctx, id); err != nil {
		return engine.Actor{ID: id, Role: engine.RoleAdmin}
	}
	if target != nil && target.ManagerID != nil && *target.ManagerID == id {
		return engine.Actor{ID: id, Role: engine.RoleManager}
	}
	return engine.Actor{ID: id, Role: engine.RoleEmployee}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees. Disabled ones only with
// ?include_disabled=true.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("include_disabled") == "true"

	employees, err := h.Store.ListEmployees(r.Context(), includeDisabled)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates a new employee. The opening leave balance is the
// hire-year entitlement from the employee's ruleset, recorded as the first
// ledger movement.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	hireDate := engine.Today()
	if req.HireDate != "" {
		var err error
		hireDate, err = engine.ParseDate(req.HireDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
			return
		}
	}

	if req.RulesetID != "" {
		if _, ok := h.Rulesets.Get(req.RulesetID); !ok {
			writeError(w, http.StatusBadRequest, "Unknown ruleset: "+req.RulesetID, nil)
			return
		}
	}

	now := time.Now()
	emp := engine.Employee{
		ID:           engine.EmployeeID(req.ID),
		Name:         req.Name,
		Email:        req.Email,
		Department:   req.Department,
		ManagerID:    idPtr(req.ManagerID),
		SubstituteID: idPtr(req.SubstituteID),
		RulesetID:    req.RulesetID,
		HireDate:     hireDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if emp.ID == "" {
		emp.ID = engine.EmployeeID(uuid.NewString())
	}
	if err := emp.Validate(); err != nil {
		writeEngineError(w, err)
		return
	}

	grant := engine.OpeningGrant(emp, h.entitlementFor(emp), engine.Actor{ID: "admin", Role: engine.RoleAdmin})
	emp.LeaveBalance = grant.Days

	err := h.Store.WithTx(r.Context(), func(tx engine.Store) error {
		if emp.ManagerID != nil {
			if _, err := tx.GetEmployee(r.Context(), *emp.ManagerID); err != nil {
				return &engine.InvalidInputError{Field: "manager_id", Reason: "unknown employee " + string(*emp.ManagerID)}
			}
		}
		if emp.SubstituteID != nil {
			if _, err := tx.GetEmployee(r.Context(), *emp.SubstituteID); err != nil {
				return &engine.InvalidInputError{Field: "substitute_id", Reason: "unknown employee " + string(*emp.SubstituteID)}
			}
		}
		if err := tx.SaveEmployee(r.Context(), emp); err != nil {
			return err
		}
		if grant.Days > 0 {
			return tx.AppendMovement(r.Context(), grant)
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// UpdateEmployee updates mutable employee fields. The balance is not one
// of them; it only moves through the leave lifecycle and rollover.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	var req UpdateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Store.WithTx(r.Context(), func(tx engine.Store) error {
		emp, err := tx.GetEmployee(r.Context(), id)
		if err != nil {
			return err
		}

		if req.Name != nil {
			emp.Name = *req.Name
		}
		if req.Email != nil {
			emp.Email = *req.Email
		}
		if req.Department != nil {
			emp.Department = *req.Department
		}
		if req.ManagerID != nil {
			emp.ManagerID = idPtr(req.ManagerID)
			if emp.ManagerID != nil {
				if _, err := tx.GetEmployee(r.Context(), *emp.ManagerID); err != nil {
					return &engine.InvalidInputError{Field: "manager_id", Reason: "unknown employee " + string(*emp.ManagerID)}
				}
			}
		}
		if req.SubstituteID != nil {
			emp.SubstituteID = idPtr(req.SubstituteID)
			if emp.SubstituteID != nil {
				if _, err := tx.GetEmployee(r.Context(), *emp.SubstituteID); err != nil {
					return &engine.InvalidInputError{Field: "substitute_id", Reason: "unknown employee " + string(*emp.SubstituteID)}
				}
			}
		}
		if req.RulesetID != nil {
			if *req.RulesetID != "" {
				if _, ok := h.Rulesets.Get(*req.RulesetID); !ok {
					return &engine.InvalidInputError{Field: "ruleset_id", Reason: "unknown ruleset " + *req.RulesetID}
				}
			}
			emp.RulesetID = *req.RulesetID
		}

		if err := emp.Validate(); err != nil {
			return err
		}
		emp.UpdatedAt = time.Now()
		if err := tx.SaveEmployee(r.Context(), *emp); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
	}
}

// DisableEmployee soft-disables an employee. Records are never deleted;
// entries and requests keep referring to them.
func (h *Handler) DisableEmployee(w http.ResponseWriter, r *http.Request) {
	h.setDisabled(w, r, true)
}

// EnableEmployee reverses a soft-disable.
func (h *Handler) EnableEmployee(w http.ResponseWriter, r *http.Request) {
	h.setDisabled(w, r, false)
}

func (h *Handler) setDisabled(w http.ResponseWriter, r *http.Request, disabled bool) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	err := h.Store.WithTx(r.Context(), func(tx engine.Store) error {
		emp, err := tx.GetEmployee(r.Context(), id)
		if err != nil {
			return err
		}
		emp.Disabled = disabled
		emp.UpdatedAt = time.Now()
		if err := tx.SaveEmployee(r.Context(), *emp); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
	}
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalance returns the pending-aware balance view for an employee.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	view, err := h.Leave.BalanceView(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		EmployeeID:      string(view.EmployeeID),
		Balance:         view.Balance,
		PendingDays:     view.PendingDays,
		AfterPending:    view.AfterPending,
		PendingRequests: view.PendingRequests,
	})
}

// ListMovements returns the balance ledger for an employee, oldest first.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetEmployee(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	movements, err := h.Store.MovementsForEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get movements", err)
		return
	}

	dtos := make([]MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toMovementDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TIME ENTRY HANDLERS
// =============================================================================

// ListEntries returns an employee's entries for ?date=YYYY-MM-DD, or for
// the ?from=&to= range.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	q := r.URL.Query()

	var entries []engine.TimeEntry
	var err error

	switch {
	case q.Get("date") != "":
		date, perr := engine.ParseDate(q.Get("date"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", perr)
			return
		}
		entries, err = h.Store.EntriesForDate(r.Context(), id, date)

	case q.Get("from") != "" && q.Get("to") != "":
		from, perr := engine.ParseDate(q.Get("from"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", perr)
			return
		}
		to, perr := engine.ParseDate(q.Get("to"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", perr)
			return
		}
		entries, err = h.Store.EntriesInRange(r.Context(), id, from, to)

	default:
		// Current month when nothing is specified.
		today := engine.Today()
		period := engine.MonthOf(today.Year(), today.Month())
		entries, err = h.Store.EntriesInRange(r.Context(), id, period.Start, period.End)
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SubmitEntry records a working period for an employee.
func (h *Handler) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	var req SubmitEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	candidate, err := h.entryCandidate(id, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	actor := h.actorForEmployee(r.Context(), req.ActorID, id)
	entry, err := h.Entries.Submit(r.Context(), actor, candidate)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// UpdateEntry replaces an entry's times, break, or project.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))

	var req SubmitEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	current, err := h.Store.GetEntry(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	candidate, cerr := h.entryCandidate(current.EmployeeID, req)
	if cerr != nil {
		writeError(w, http.StatusBadRequest, cerr.Error(), nil)
		return
	}

	actor := h.actorForEmployee(r.Context(), req.ActorID, current.EmployeeID)
	entry, err := h.Entries.Update(r.Context(), actor, id, candidate)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// DeleteEntry removes an entry.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))

	current, err := h.Store.GetEntry(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	actor := h.actorForEmployee(r.Context(), r.URL.Query().Get("actor_id"), current.EmployeeID)
	if err := h.Entries.Delete(r.Context(), actor, id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "entry_id": string(id)})
}

// entryCandidate parses the wire representation into an EntryCandidate.
func (h *Handler) entryCandidate(employeeID engine.EmployeeID, req SubmitEntryRequest) (engine.EntryCandidate, error) {
	var c engine.EntryCandidate

	date, err := engine.ParseDate(req.Date)
	if err != nil {
		return c, errors.New("invalid date format (use YYYY-MM-DD)")
	}
	start, err := engine.ParseStamp(req.Start)
	if err != nil {
		return c, errors.New("invalid start (use RFC 3339, e.g. 2026-08-10T09:00:00+02:00)")
	}
	end, err := engine.ParseStamp(req.End)
	if err != nil {
		return c, errors.New("invalid end (use RFC 3339)")
	}

	return engine.EntryCandidate{
		EmployeeID:   employeeID,
		Date:         date,
		Start:        start,
		End:          end,
		BreakMinutes: req.BreakMinutes,
		Project:      req.Project,
		Notes:        req.Notes,
	}, nil
}

// actorForEmployee resolves the actor for an operation on employeeID,
// defaulting to the employee acting for themself.
func (h *Handler) actorForEmployee(ctx context.Context, actorID string, employeeID engine.EmployeeID) engine.Actor {
	if actorID == "" {
		return engine.Actor{ID: employeeID, Role: engine.RoleEmployee}
	}
	target, err := h.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		target = nil
	}
	return h.resolveActor(ctx, actorID, target)
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// ListEmployeeRequests returns an employee's leave requests, optionally
// filtered by ?status=.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	filter := engine.RequestFilter{EmployeeID: &id}
	if s := r.URL.Query().Get("status"); s != "" {
		status := engine.RequestStatus(s)
		filter.Status = &status
	}

	requests, err := h.Store.ListRequests(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}

	dtos := make([]LeaveRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toLeaveRequestDTO(req, engine.RequestDays(req.Period(), h.Leave.Calendar))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SubmitLeave opens a PENDING leave request.
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	var req SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := engine.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := engine.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	actor := h.actorForEmployee(r.Context(), req.ActorID, id)
	created, err := h.Leave.Submit(r.Context(), actor, id, req.Type,
		engine.Period{Start: start, End: end}, idPtr(req.SubstituteID), req.Notes)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	days := engine.RequestDays(created.Period(), h.Leave.Calendar)
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(*created, days))
}

// ListPendingRequests returns all pending requests awaiting a decision,
// enriched with employee names.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	status := engine.StatusPending
	requests, err := h.Store.ListRequests(r.Context(), engine.RequestFilter{Status: &status})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get pending requests", err)
		return
	}

	dtos := make([]LeaveRequestDTO, 0, len(requests))
	for _, req := range requests {
		dto := toLeaveRequestDTO(req, engine.RequestDays(req.Period(), h.Leave.Calendar))
		if emp, err := h.Store.GetEmployee(r.Context(), req.EmployeeID); err == nil {
			dto.EmployeeName = emp.Name
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": dtos})
}

// ApproveRequest approves a pending request, deducting the day-count.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, func(ctx context.Context, actor engine.Actor, id engine.RequestID, _ string) (*engine.LeaveRequest, error) {
		return h.Leave.Approve(ctx, actor, id)
	})
}

// RejectRequest rejects a pending request with a reason.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, func(ctx context.Context, actor engine.Actor, id engine.RequestID, reason string) (*engine.LeaveRequest, error) {
		return h.Leave.Reject(ctx, actor, id, reason)
	})
}

// CancelRequest cancels a pending or approved request.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, func(ctx context.Context, actor engine.Actor, id engine.RequestID, reason string) (*engine.LeaveRequest, error) {
		return h.Leave.Cancel(ctx, actor, id, reason)
	})
}

func (h *Handler) decideRequest(w http.ResponseWriter, r *http.Request, decide func(context.Context, engine.Actor, engine.RequestID, string) (*engine.LeaveRequest, error)) {
	id := engine.RequestID(chi.URLParam(r, "id"))

	var req DecisionRequest
	json.NewDecoder(r.Body).Decode(&req)

	current, err := h.Store.GetRequest(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	target, err := h.Store.GetEmployee(r.Context(), current.EmployeeID)
	if err != nil {
		target = nil
	}

	actor := h.resolveActor(r.Context(), req.ActorID, target)
	decided, err := decide(r.Context(), actor, id, req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	days := engine.RequestDays(decided.Period(), h.Leave.Calendar)
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*decided, days))
}

// =============================================================================
// MONTHLY SUMMARY HANDLERS
// =============================================================================

// GetSummary returns the monthly aggregation for ?month=YYYY-MM
// (default: the current month).
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, _, err := h.buildSummary(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(*summary))
}

// buildSummary assembles the aggregation input for the requested month.
func (h *Handler) buildSummary(r *http.Request) (*engine.PeriodSummary, *engine.Employee, error) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	month := engine.Today()
	if m := r.URL.Query().Get("month"); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			return nil, nil, &engine.InvalidInputError{Field: "month", Reason: "use YYYY-MM"}
		}
		month = engine.DateOf(t)
	}
	period := engine.MonthOf(month.Year(), month.Month())

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	entries, err := h.Store.EntriesInRange(r.Context(), id, period.Start, period.End)
	if err != nil {
		return nil, nil, err
	}
	requests, err := h.Store.ListRequests(r.Context(), engine.RequestFilter{
		EmployeeID:  &id,
		Overlapping: &period,
	})
	if err != nil {
		return nil, nil, err
	}

	summary := engine.Aggregate(engine.AggregationInput{
		EmployeeID:    id,
		Period:        period,
		Entries:       entries,
		LeaveRequests: requests,
		Calendar:      h.Leave.Calendar,
		Config:        h.Rulesets.ForEmployee(*emp).Config,
	})
	return &summary, emp, nil
}

// =============================================================================
// RULESET HANDLERS
// =============================================================================

// ListRulesets returns the configured rulesets.
func (h *Handler) ListRulesets(w http.ResponseWriter, r *http.Request) {
	var dtos []RulesetDTO
	for _, id := range h.Rulesets.IDs() {
		rs, _ := h.Rulesets.Get(id)
		dtos = append(dtos, RulesetDTO{
			ID:     rs.ID,
			Name:   rs.Name,
			Config: h.rulesetFactory.ToJSON(rs),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRuleset returns a single ruleset.
func (h *Handler) GetRuleset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rs, ok := h.Rulesets.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Ruleset not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, RulesetDTO{
		ID:     rs.ID,
		Name:   rs.Name,
		Config: h.rulesetFactory.ToJSON(rs),
	})
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns holidays, materialized for ?year= when given.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := 0
	if y := r.URL.Query().Get("year"); y != "" {
		t, err := time.Parse("2006", y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = t.Year()
	}

	holidays, err := h.Store.ListHolidays(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}

	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
}

// CreateHoliday adds a single holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Date == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Date and name are required", nil)
		return
	}

	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	holiday := engine.Holiday{
		ID:        uuid.NewString(),
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// ImportHolidays ingests an iCalendar feed from the request body and
// stores every holiday in it.
func (h *Handler) ImportHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := engine.ParseICSHolidays(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid iCalendar payload", err)
		return
	}

	for _, hol := range holidays {
		if err := h.Store.SaveHoliday(r.Context(), hol); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to store holiday "+hol.Name, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "imported",
		"count":  len(holidays),
	})
}

// DeleteHoliday removes a holiday.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteHoliday(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerRollover runs the year-end balance close for every employee.
// Defaults to closing the previous calendar year.
func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	var req RolloverRequest
	json.NewDecoder(r.Body).Decode(&req)

	year := req.Year
	if year == 0 {
		year = engine.Today().Year() - 1
	}

	report, err := h.Leave.RunRollover(r.Context(), func(emp engine.Employee) engine.EntitlementPolicy {
		return h.entitlementFor(emp)
	}, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Rollover failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"year":      report.Year,
		"processed": report.Processed,
		"skipped":   report.Skipped,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case engine.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrNotAuthorized):
		status = http.StatusForbidden
	case engine.IsConflict(err), errors.Is(err, engine.ErrInvalidTransition):
		status = http.StatusConflict
	case engine.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: errorCode(err)})
}

// errorCode gives clients a stable identifier per rule violation.
func errorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrOverlap):
		return "overlap"
	case errors.Is(err, engine.ErrInsufficientBreak):
		return "insufficient_break"
	case errors.Is(err, engine.ErrDailyLimitExceeded):
		return "daily_limit_exceeded"
	case errors.Is(err, engine.ErrWeeklyLimitExceeded):
		return "weekly_limit_exceeded"
	case errors.Is(err, engine.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, engine.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, engine.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, engine.ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, engine.ErrDuplicateIdempotencyKey):
		return "duplicate_idempotency_key"
	case errors.Is(err, engine.ErrEmployeeDisabled):
		return "employee_disabled"
	case engine.IsNotFound(err):
		return "not_found"
	case errors.Is(err, engine.ErrInvalidInput), errors.Is(err, engine.ErrInvalidPeriod):
		return "invalid_input"
	default:
		return "internal"
	}
}
