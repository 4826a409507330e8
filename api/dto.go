/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMATS:
  Dates travel as "YYYY-MM-DD". Entry start/end travel as RFC 3339 with
  the submitter's UTC offset. Hour totals are decimal strings ("7.75")
  to keep quarter-hour precision exact.

VALIDATION:
  Validation is done in the engine, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/ruleset.go: RulesetJSON type
*/
package api

import (
	"time"

	"github.com/warp/timekeep/engine"
	"github.com/warp/timekeep/factory"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Department   string  `json:"department,omitempty"`
	ManagerID    *string `json:"manager_id,omitempty"`
	SubstituteID *string `json:"substitute_id,omitempty"`
	LeaveBalance int     `json:"leave_balance"`
	RulesetID    string  `json:"ruleset_id,omitempty"`
	HireDate     string  `json:"hire_date,omitempty"`
	Disabled     bool    `json:"disabled"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee. The opening
// leave balance comes from the employee's ruleset, not from the client.
type CreateEmployeeRequest struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Department   string  `json:"department,omitempty"`
	ManagerID    *string `json:"manager_id,omitempty"`
	SubstituteID *string `json:"substitute_id,omitempty"`
	RulesetID    string  `json:"ruleset_id,omitempty"`
	HireDate     string  `json:"hire_date,omitempty"`
}

// UpdateEmployeeRequest is the request to update mutable employee fields.
// Omitted pointers leave the current value untouched.
type UpdateEmployeeRequest struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Department   *string `json:"department,omitempty"`
	ManagerID    *string `json:"manager_id,omitempty"`
	SubstituteID *string `json:"substitute_id,omitempty"`
	RulesetID    *string `json:"ruleset_id,omitempty"`
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

// EntryDTO represents a normalized time entry.
type EntryDTO struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employee_id"`
	Date         string `json:"date"`
	Start        string `json:"start"`
	End          string `json:"end"`
	BreakMinutes int    `json:"break_minutes"`
	WorkedHours  string `json:"worked_hours"`
	Project      string `json:"project"`
	Notes        string `json:"notes,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// SubmitEntryRequest is the request to record a working period.
// break_minutes null (or absent) triggers automatic break derivation.
type SubmitEntryRequest struct {
	ActorID      string `json:"actor_id,omitempty"`
	Date         string `json:"date"`
	Start        string `json:"start"`
	End          string `json:"end"`
	BreakMinutes *int   `json:"break_minutes,omitempty"`
	Project      string `json:"project,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// LeaveRequestDTO represents a leave request with its full decision trail.
type LeaveRequestDTO struct {
	ID              string  `json:"id"`
	EmployeeID      string  `json:"employee_id"`
	EmployeeName    string  `json:"employee_name,omitempty"`
	Type            string  `json:"type"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	Days            int     `json:"days"`
	Status          string  `json:"status"`
	SubstituteID    *string `json:"substitute_id,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	ApprovedBy      *string `json:"approved_by,omitempty"`
	ApprovedAt      string  `json:"approved_at,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	CancelledBy     *string `json:"cancelled_by,omitempty"`
	CancelledAt     string  `json:"cancelled_at,omitempty"`
	DeductedDays    *int    `json:"deducted_days,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// SubmitLeaveRequest is the request to open a leave request.
type SubmitLeaveRequest struct {
	ActorID      string  `json:"actor_id,omitempty"`
	Type         string  `json:"type"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	SubstituteID *string `json:"substitute_id,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

// DecisionRequest carries the deciding actor for approve/reject/cancel.
type DecisionRequest struct {
	ActorID string `json:"actor_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// =============================================================================
// BALANCE
// =============================================================================

// BalanceDTO is the pending-aware balance view.
type BalanceDTO struct {
	EmployeeID      string `json:"employee_id"`
	Balance         int    `json:"balance"`
	PendingDays     int    `json:"pending_days"`
	AfterPending    int    `json:"after_pending"`
	PendingRequests int    `json:"pending_requests"`
}

// MovementDTO represents one balance ledger row.
type MovementDTO struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	Days        int    `json:"days"`
	Kind        string `json:"kind"`
	ReferenceID string `json:"reference_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ActorID     string `json:"actor_id,omitempty"`
	EffectiveAt string `json:"effective_at"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

// SummaryDTO is the monthly aggregation result.
type SummaryDTO struct {
	EmployeeID    string            `json:"employee_id"`
	PeriodStart   string            `json:"period_start"`
	PeriodEnd     string            `json:"period_end"`
	CalendarDays  int               `json:"calendar_days"`
	WorkingDays   int               `json:"working_days"`
	WorkedHours   string            `json:"worked_hours"`
	OvertimeHours string            `json:"overtime_hours"`
	LeaveDays     int               `json:"leave_days"`
	ByProject     []ProjectShareDTO `json:"by_project"`
	Weeks         []WeekTotalDTO    `json:"weeks"`
}

// ProjectShareDTO is one project's slice of the period.
type ProjectShareDTO struct {
	Project string `json:"project"`
	Hours   string `json:"hours"`
	Share   string `json:"share_percent"`
}

// WeekTotalDTO is one week's sub-total.
type WeekTotalDTO struct {
	WeekStart string `json:"week_start"`
	Hours     string `json:"hours"`
}

// =============================================================================
// RULESETS, HOLIDAYS, SCENARIOS
// =============================================================================

// RulesetDTO represents a ruleset in API responses.
type RulesetDTO struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Config factory.RulesetJSON `json:"config"`
}

// HolidayDTO represents a company holiday.
type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// CreateHolidayRequest is the request to add a holiday.
type CreateHolidayRequest struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// RolloverRequest is the request to trigger the year-end close.
type RolloverRequest struct {
	Year int `json:"year"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e engine.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:           string(e.ID),
		Name:         e.Name,
		Email:        e.Email,
		Department:   e.Department,
		ManagerID:    idStr(e.ManagerID),
		SubstituteID: idStr(e.SubstituteID),
		LeaveBalance: e.LeaveBalance,
		RulesetID:    e.RulesetID,
		Disabled:     e.Disabled,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.String()
	}
	return dto
}

func toEntryDTO(e engine.TimeEntry) EntryDTO {
	return EntryDTO{
		ID:           string(e.ID),
		EmployeeID:   string(e.EmployeeID),
		Date:         e.Date.String(),
		Start:        e.Start.Format(time.RFC3339),
		End:          e.End.Format(time.RFC3339),
		BreakMinutes: e.BreakMinutes,
		WorkedHours:  e.WorkedHours().String(),
		Project:      e.Project,
		Notes:        e.Notes,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
}

func toLeaveRequestDTO(r engine.LeaveRequest, days int) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:              string(r.ID),
		EmployeeID:      string(r.EmployeeID),
		Type:            r.Type,
		StartDate:       r.Start.String(),
		EndDate:         r.End.String(),
		Days:            days,
		Status:          string(r.Status),
		SubstituteID:    idStr(r.SubstituteID),
		Notes:           r.Notes,
		ApprovedBy:      idStr(r.ApprovedBy),
		RejectionReason: r.RejectionReason,
		CancelledBy:     idStr(r.CancelledBy),
		DeductedDays:    r.DeductedDays,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
	if r.ApprovedAt != nil {
		dto.ApprovedAt = r.ApprovedAt.Format(time.RFC3339)
	}
	if r.CancelledAt != nil {
		dto.CancelledAt = r.CancelledAt.Format(time.RFC3339)
	}
	return dto
}

func toMovementDTO(m engine.BalanceMovement) MovementDTO {
	return MovementDTO{
		ID:          string(m.ID),
		EmployeeID:  string(m.EmployeeID),
		Days:        m.Days,
		Kind:        string(m.Kind),
		ReferenceID: m.ReferenceID,
		Reason:      m.Reason,
		ActorID:     string(m.ActorID),
		EffectiveAt: m.EffectiveAt.String(),
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
}

func toSummaryDTO(s engine.PeriodSummary) SummaryDTO {
	dto := SummaryDTO{
		EmployeeID:    string(s.EmployeeID),
		PeriodStart:   s.Period.Start.String(),
		PeriodEnd:     s.Period.End.String(),
		CalendarDays:  s.CalendarDays,
		WorkingDays:   s.WorkingDays,
		WorkedHours:   s.WorkedHours.String(),
		OvertimeHours: s.OvertimeHours.String(),
		LeaveDays:     s.LeaveDays,
		ByProject:     []ProjectShareDTO{},
		Weeks:         []WeekTotalDTO{},
	}
	for _, p := range s.ByProject {
		dto.ByProject = append(dto.ByProject, ProjectShareDTO{
			Project: p.Project,
			Hours:   p.Hours.String(),
			Share:   p.Share.String(),
		})
	}
	for _, w := range s.Weeks {
		dto.Weeks = append(dto.Weeks, WeekTotalDTO{
			WeekStart: w.WeekStart.String(),
			Hours:     w.Hours.String(),
		})
	}
	return dto
}

func toHolidayDTO(h engine.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        h.ID,
		Date:      h.Date.String(),
		Name:      h.Name,
		Recurring: h.Recurring,
	}
}

func idStr(id *engine.EmployeeID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func idPtr(s *string) *engine.EmployeeID {
	if s == nil || *s == "" {
		return nil
	}
	id := engine.EmployeeID(*s)
	return &id
}
