/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates employees, time
	entries, and leave requests that demonstrate specific features.

AVAILABLE SCENARIOS:

	first-week:      New hire's first week, mixed breaks and projects
	holiday-crunch:  Contractor month with a worked public holiday (overtime)
	vacation-season: Manager with two reports, one approved + one pending request
	cancelled-trip:  Approved leave cancelled, balance restored
	part-time-week:  Part-timer whose pending request exceeds the balance

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create employees (opening grants come from their rulesets)
 3. Submit entries and requests through the services, so every rule runs

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "vacation-season"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	All data is seeded relative to today so summaries stay current.

SEE ALSO:
  - handlers.go: Employee/entry/request handlers
  - ../factory/ruleset.go: The preset rulesets scenarios assign
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/warp/timekeep/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "first-week",
		Name:        "First Week",
		Description: "New hire logs a week of entries: automatic and explicit breaks, project splits, prorated opening balance",
	},
	{
		ID:          "holiday-crunch",
		Name:        "Holiday Crunch",
		Description: "Contractor works a full month including a public holiday, producing overtime in the monthly summary",
	},
	{
		ID:          "vacation-season",
		Name:        "Vacation Season",
		Description: "Manager with two reports: one vacation approved and deducted, one still pending",
	},
	{
		ID:          "cancelled-trip",
		Name:        "Cancelled Trip",
		Description: "Approved vacation cancelled afterwards; the deducted days come back",
	},
	{
		ID:          "part-time-week",
		Name:        "Part-Time Week",
		Description: "Part-timer under reduced ceilings with a pending request larger than the remaining balance",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "first-week":
		err = h.loadFirstWeekScenario(ctx)
	case "holiday-crunch":
		err = h.loadHolidayCrunchScenario(ctx)
	case "vacation-season":
		err = h.loadVacationSeasonScenario(ctx)
	case "cancelled-trip":
		err = h.loadCancelledTripScenario(ctx)
	case "part-time-week":
		err = h.loadPartTimeWeekScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadFirstWeekScenario seeds a recent hire on the standard ruleset with one
// completed week. The hire date falls in the current year, so the opening
// grant is prorated.
func (h *Handler) loadFirstWeekScenario(ctx context.Context) error {
	monday := engine.WeekStart(engine.Today().AddDays(-7))

	ana := engine.Employee{
		ID:         "emp-ana",
		Name:       "Ana Sommer",
		Email:      "ana.sommer@example.com",
		Department: "Engineering",
		RulesetID:  "fulltime-standard",
		HireDate:   monday,
	}
	if err := h.seedEmployee(ctx, ana); err != nil {
		return err
	}

	// Mon/Tue/Thu rely on the automatic 30-minute break, Wednesday records
	// an explicit 45, Friday is short enough to need none.
	days := []struct {
		offset         int
		startH, startM int
		endH, endM     int
		breakMin       *int
		project        string
	}{
		{0, 8, 0, 16, 30, nil, ""},
		{1, 8, 30, 17, 0, nil, "ACME-PORTAL"},
		{2, 8, 0, 16, 45, intPtr(45), "ACME-PORTAL"},
		{3, 8, 0, 16, 30, nil, ""},
		{4, 9, 0, 13, 0, nil, ""},
	}
	for _, d := range days {
		if err := h.seedEntry(ctx, ana.ID, monday.AddDays(d.offset),
			d.startH, d.startM, d.endH, d.endM, d.breakMin, d.project); err != nil {
			return err
		}
	}
	return nil
}

// loadHolidayCrunchScenario seeds a contractor who worked every weekday of
// last month, public holiday included. The summary counts the holiday's
// hours above the working-day baseline, so the month shows overtime.
func (h *Handler) loadHolidayCrunchScenario(ctx context.Context) error {
	today := engine.Today()
	firstOfPrev := engine.NewDate(today.Year(), today.Month(), 1).AddMonths(-1)
	period := engine.MonthOf(firstOfPrev.Year(), firstOfPrev.Month())

	// A mid-month weekday holiday. The store-backed calendar picks it up
	// for working-day counts.
	holidayDate := period.Start.AddDays(16)
	for holidayDate.IsWeekend() {
		holidayDate = holidayDate.AddDays(1)
	}
	if err := h.Store.SaveHoliday(ctx, engine.Holiday{
		ID:   uuid.NewString(),
		Date: holidayDate,
		Name: "Company Foundation Day",
	}); err != nil {
		return err
	}

	bruno := engine.Employee{
		ID:         "emp-bruno",
		Name:       "Bruno Keller",
		Email:      "bruno.keller@example.com",
		Department: "Consulting",
		RulesetID:  "contractor",
		HireDate:   engine.NewDate(today.Year()-2, time.March, 1),
	}
	if err := h.seedEmployee(ctx, bruno); err != nil {
		return err
	}

	// Ten worked hours every weekday: 07:00-18:00 minus a one-hour break.
	for d := period.Start; d.BeforeOrEqual(period.End); d = d.AddDays(1) {
		if d.IsWeekend() {
			continue
		}
		if err := h.seedEntry(ctx, bruno.ID, d, 7, 0, 18, 0, intPtr(60), "CLIENT-MERIDIAN"); err != nil {
			return err
		}
	}
	return nil
}

// loadVacationSeasonScenario seeds a manager with two reports. Erin's
// request is approved (and deducted), Frank's is still waiting.
func (h *Handler) loadVacationSeasonScenario(ctx context.Context) error {
	today := engine.Today()
	lastYear := engine.NewDate(today.Year()-1, time.February, 1)
	managerID := engine.EmployeeID("mgr-dana")
	frankID := engine.EmployeeID("emp-frank")

	team := []engine.Employee{
		{
			ID:         managerID,
			Name:       "Dana Roth",
			Email:      "dana.roth@example.com",
			Department: "Engineering",
			RulesetID:  "fulltime-standard",
			HireDate:   engine.NewDate(today.Year()-4, time.September, 1),
		},
		{
			ID:           "emp-erin",
			Name:         "Erin Vogt",
			Email:        "erin.vogt@example.com",
			Department:   "Engineering",
			ManagerID:    &managerID,
			SubstituteID: &frankID,
			RulesetID:    "fulltime-standard",
			HireDate:     lastYear,
		},
		{
			ID:         frankID,
			Name:       "Frank Lindner",
			Email:      "frank.lindner@example.com",
			Department: "Engineering",
			ManagerID:  &managerID,
			RulesetID:  "fulltime-standard",
			HireDate:   lastYear,
		},
	}
	for _, emp := range team {
		if err := h.seedEmployee(ctx, emp); err != nil {
			return err
		}
	}

	// A few entries so Erin's month is not empty.
	monday := engine.WeekStart(today.AddDays(-7))
	for i := 0; i < 4; i++ {
		if err := h.seedEntry(ctx, "emp-erin", monday.AddDays(i), 8, 0, 16, 30, nil, ""); err != nil {
			return err
		}
	}

	// Erin: first full week of next month, approved by Dana.
	erinStart := firstMondayOfNextMonth(today)
	erin := engine.Actor{ID: "emp-erin", Role: engine.RoleEmployee}
	req, err := h.Leave.Submit(ctx, erin, "emp-erin", "vacation",
		engine.Period{Start: erinStart, End: erinStart.AddDays(4)}, &frankID, "Hiking in the Dolomites")
	if err != nil {
		return err
	}
	dana := engine.Actor{ID: managerID, Role: engine.RoleManager}
	if _, err := h.Leave.Approve(ctx, dana, req.ID); err != nil {
		return err
	}

	// Frank: the week after, still pending.
	frankStart := erinStart.AddDays(7)
	frank := engine.Actor{ID: frankID, Role: engine.RoleEmployee}
	_, err = h.Leave.Submit(ctx, frank, frankID, "vacation",
		engine.Period{Start: frankStart, End: frankStart.AddDays(4)}, nil, "Surf camp")
	return err
}

// loadCancelledTripScenario walks a request through approve and cancel so
// the movement ledger shows the deduction and the restore.
func (h *Handler) loadCancelledTripScenario(ctx context.Context) error {
	today := engine.Today()
	managerID := engine.EmployeeID("mgr-hugo")

	team := []engine.Employee{
		{
			ID:         managerID,
			Name:       "Hugo Brandt",
			Email:      "hugo.brandt@example.com",
			Department: "Operations",
			RulesetID:  "fulltime-standard",
			HireDate:   engine.NewDate(today.Year()-5, time.April, 1),
		},
		{
			ID:         "emp-greta",
			Name:       "Greta Winkler",
			Email:      "greta.winkler@example.com",
			Department: "Operations",
			ManagerID:  &managerID,
			RulesetID:  "fulltime-standard",
			HireDate:   engine.NewDate(today.Year()-2, time.January, 10),
		},
	}
	for _, emp := range team {
		if err := h.seedEmployee(ctx, emp); err != nil {
			return err
		}
	}

	start := firstMondayOfNextMonth(today)
	greta := engine.Actor{ID: "emp-greta", Role: engine.RoleEmployee}
	req, err := h.Leave.Submit(ctx, greta, "emp-greta", "vacation",
		engine.Period{Start: start, End: start.AddDays(2)}, nil, "City trip")
	if err != nil {
		return err
	}
	hugo := engine.Actor{ID: managerID, Role: engine.RoleManager}
	if _, err := h.Leave.Approve(ctx, hugo, req.ID); err != nil {
		return err
	}
	_, err = h.Leave.Cancel(ctx, greta, req.ID, "Trip fell through")
	return err
}

// loadPartTimeWeekScenario seeds a part-timer whose ceilings are 4h/20h and
// whose pending request asks for more days than the balance holds; the
// approval attempt is the demo.
func (h *Handler) loadPartTimeWeekScenario(ctx context.Context) error {
	today := engine.Today()

	paula := engine.Employee{
		ID:         "emp-paula",
		Name:       "Paula Steiner",
		Email:      "paula.steiner@example.com",
		Department: "Support",
		RulesetID:  "parttime-20h",
		HireDate:   engine.NewDate(today.Year(), time.January, 1),
	}
	if err := h.seedEmployee(ctx, paula); err != nil {
		return err
	}

	monday := engine.WeekStart(today.AddDays(-7))
	for i := 0; i < 5; i++ {
		if err := h.seedEntry(ctx, paula.ID, monday.AddDays(i), 9, 0, 13, 0, nil, ""); err != nil {
			return err
		}
	}

	// Five consecutive weeks: 25 working days against a 20-day balance.
	start := firstMondayOfNextMonth(today)
	actor := engine.Actor{ID: paula.ID, Role: engine.RoleEmployee}
	_, err := h.Leave.Submit(ctx, actor, paula.ID, "vacation",
		engine.Period{Start: start, End: start.AddDays(32)}, nil, "Sabbatical attempt")
	return err
}

// =============================================================================
// SEED HELPERS
// =============================================================================

// seedEmployee stores an employee the same way CreateEmployee does: the
// opening grant from their ruleset becomes the balance plus the first
// ledger movement.
func (h *Handler) seedEmployee(ctx context.Context, emp engine.Employee) error {
	now := time.Now()
	emp.CreatedAt = now
	emp.UpdatedAt = now
	if err := emp.Validate(); err != nil {
		return err
	}

	grant := engine.OpeningGrant(emp, h.entitlementFor(emp), engine.SystemActor)
	emp.LeaveBalance = grant.Days

	return h.Store.WithTx(ctx, func(tx engine.Store) error {
		if err := tx.SaveEmployee(ctx, emp); err != nil {
			return err
		}
		if grant.Days > 0 {
			return tx.AppendMovement(ctx, grant)
		}
		return nil
	})
}

// seedEntry submits one entry through the full validation path, acting as
// the employee.
func (h *Handler) seedEntry(ctx context.Context, employeeID engine.EmployeeID, date engine.Date, startH, startM, endH, endM int, breakMin *int, project string) error {
	loc := time.FixedZone("CEST", 2*60*60)
	_, err := h.Entries.Submit(ctx, engine.Actor{ID: employeeID, Role: engine.RoleEmployee}, engine.EntryCandidate{
		EmployeeID:   employeeID,
		Date:         date,
		Start:        date.At(startH, startM, loc),
		End:          date.At(endH, endM, loc),
		BreakMinutes: breakMin,
		Project:      project,
	})
	return err
}

// firstMondayOfNextMonth is where future-leave seeds start, so freshly
// loaded scenarios always have upcoming requests.
func firstMondayOfNextMonth(today engine.Date) engine.Date {
	d := engine.NewDate(today.Year(), today.Month(), 1).AddMonths(1)
	for d.Weekday() != time.Monday {
		d = d.AddDays(1)
	}
	return d
}

func intPtr(i int) *int { return &i }
