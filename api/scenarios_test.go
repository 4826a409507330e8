/*
scenarios_test.go - Tests for the demo scenario loaders

PURPOSE:
	Loads each scenario directly and checks the state it promises:
	employees with their opening grants, normalized entries, decided
	requests, and the ledger rows behind every balance.

	Scenarios seed relative to today, so assertions stick to facts
	that hold on any run date. Ledger rows created within the same
	second share a created_at, so tests count kinds instead of
	relying on row order.
*/
package api

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/warp/timekeep/engine"
	"github.com/warp/timekeep/factory"
	"github.com/warp/timekeep/store/sqlite"
)

// setupTestHandler wires a Handler the same way cmd/server does, against a
// throwaway database and a discarded logger.
func setupTestHandler(t *testing.T) *Handler {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "timekeep.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rulesets := factory.DefaultLibrary()
	dispatcher := engine.NewSlogDispatcher(logger)
	perEmployee := func(emp engine.Employee) engine.Config {
		return rulesets.ForEmployee(emp).Config
	}

	entries := engine.NewEntryService(store, rulesets.Default().Config, dispatcher, logger)
	entries.Rules = perEmployee

	leave := engine.NewLeaveService(store, rulesets.Default().Config, store, dispatcher, logger)
	leave.Rules = perEmployee

	return NewHandler(store, entries, leave, rulesets, logger)
}

func countKinds(movements []engine.BalanceMovement) map[engine.MovementKind]int {
	kinds := make(map[engine.MovementKind]int)
	for _, m := range movements {
		kinds[m.Kind]++
	}
	return kinds
}

func TestScenario_FirstWeek(t *testing.T) {
	// GIVEN: A fresh handler
	// WHEN: Loading the first-week scenario
	// THEN: Ana has five normalized entries and a prorated opening grant

	h := setupTestHandler(t)
	ctx := context.Background()

	if err := h.loadFirstWeekScenario(ctx); err != nil {
		t.Fatalf("Failed to load first-week scenario: %v", err)
	}

	emp, err := h.Store.GetEmployee(ctx, "emp-ana")
	if err != nil {
		t.Fatalf("Failed to get employee: %v", err)
	}
	if emp.RulesetID != "fulltime-standard" {
		t.Errorf("Expected ruleset 'fulltime-standard', got %q", emp.RulesetID)
	}
	// The opening grant is prorated by the hire month, so only its bounds
	// are stable across run dates.
	if emp.LeaveBalance <= 0 || emp.LeaveBalance > 30 {
		t.Errorf("Expected a prorated opening balance in 1..30, got %d", emp.LeaveBalance)
	}

	monday := engine.WeekStart(engine.Today().AddDays(-7))
	entries, err := h.Store.EntriesInRange(ctx, "emp-ana", monday, monday.AddDays(6))
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(entries))
	}

	// Monday: the automatic 30-minute break and the default project.
	if entries[0].BreakMinutes != 30 {
		t.Errorf("Expected the automatic 30-minute break on Monday, got %d", entries[0].BreakMinutes)
	}
	if entries[0].Project != "INTERNAL" {
		t.Errorf("Expected the default project INTERNAL, got %q", entries[0].Project)
	}
	if got := entries[0].WorkedHours().String(); got != "8" {
		t.Errorf("Expected 8 worked hours on Monday, got %s", got)
	}

	if entries[1].Project != "ACME-PORTAL" {
		t.Errorf("Expected project ACME-PORTAL on Tuesday, got %q", entries[1].Project)
	}
	// Wednesday keeps its explicit 45-minute break.
	if entries[2].BreakMinutes != 45 {
		t.Errorf("Expected the explicit 45-minute break on Wednesday, got %d", entries[2].BreakMinutes)
	}
	// Friday stays under the break threshold: no break, four hours.
	if entries[4].BreakMinutes != 0 {
		t.Errorf("Expected no break on the short Friday, got %d", entries[4].BreakMinutes)
	}
	if got := entries[4].WorkedHours().String(); got != "4" {
		t.Errorf("Expected 4 worked hours on Friday, got %s", got)
	}

	movements, err := h.Store.MovementsForEmployee(ctx, "emp-ana")
	if err != nil {
		t.Fatalf("Failed to get movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("Expected 1 opening movement, got %d", len(movements))
	}
	if movements[0].Kind != engine.MovementGrant {
		t.Errorf("Expected a grant movement, got %s", movements[0].Kind)
	}
	if movements[0].Days != emp.LeaveBalance {
		t.Errorf("Opening grant of %d should equal the balance of %d", movements[0].Days, emp.LeaveBalance)
	}
	if movements[0].IdempotencyKey != "opening-emp-ana" {
		t.Errorf("Unexpected idempotency key %q", movements[0].IdempotencyKey)
	}
}

func TestScenario_HolidayCrunch(t *testing.T) {
	// GIVEN: A fresh handler
	// WHEN: Loading the holiday-crunch scenario
	// THEN: Bruno worked every weekday of last month, holiday included,
	//       and the month's summary shows the holiday as overtime

	h := setupTestHandler(t)
	ctx := context.Background()

	if err := h.loadHolidayCrunchScenario(ctx); err != nil {
		t.Fatalf("Failed to load holiday-crunch scenario: %v", err)
	}

	today := engine.Today()
	firstOfPrev := engine.NewDate(today.Year(), today.Month(), 1).AddMonths(-1)
	period := engine.MonthOf(firstOfPrev.Year(), firstOfPrev.Month())

	weekdays := 0
	for d := period.Start; d.BeforeOrEqual(period.End); d = d.AddDays(1) {
		if !d.IsWeekend() {
			weekdays++
		}
	}

	entries, err := h.Store.EntriesInRange(ctx, "emp-bruno", period.Start, period.End)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != weekdays {
		t.Fatalf("Expected %d entries (one per weekday), got %d", weekdays, len(entries))
	}
	for _, e := range entries {
		if got := e.WorkedHours().String(); got != "10" {
			t.Fatalf("Expected 10 worked hours on %s, got %s", e.Date, got)
		}
		if e.Project != "CLIENT-MERIDIAN" {
			t.Fatalf("Expected project CLIENT-MERIDIAN, got %q", e.Project)
		}
	}

	holidays, err := h.Store.ListHolidays(ctx, 0)
	if err != nil {
		t.Fatalf("Failed to list holidays: %v", err)
	}
	if len(holidays) != 1 || holidays[0].Name != "Company Foundation Day" {
		t.Fatalf("Expected exactly the foundation day holiday, got %+v", holidays)
	}

	// Contractors start at zero entitlement: no balance, no ledger.
	bruno, err := h.Store.GetEmployee(ctx, "emp-bruno")
	if err != nil {
		t.Fatalf("Failed to get employee: %v", err)
	}
	if bruno.LeaveBalance != 0 {
		t.Errorf("Expected a zero balance for the contractor, got %d", bruno.LeaveBalance)
	}
	movements, err := h.Store.MovementsForEmployee(ctx, "emp-bruno")
	if err != nil {
		t.Fatalf("Failed to get movements: %v", err)
	}
	if len(movements) != 0 {
		t.Errorf("Expected no movements for a zero grant, got %d", len(movements))
	}

	// The worked holiday is the only day above the working-day baseline.
	summary := engine.Aggregate(engine.AggregationInput{
		EmployeeID: "emp-bruno",
		Period:     period,
		Entries:    entries,
		Calendar:   h.Leave.Calendar,
		Config:     h.Rulesets.ForEmployee(*bruno).Config,
	})
	if summary.WorkingDays != weekdays-1 {
		t.Errorf("Expected %d working days (holiday excluded), got %d", weekdays-1, summary.WorkingDays)
	}
	if got := summary.OvertimeHours.String(); got != "10" {
		t.Errorf("Expected 10 overtime hours from the worked holiday, got %s", got)
	}
}

func TestScenario_VacationSeason(t *testing.T) {
	// GIVEN: A fresh handler
	// WHEN: Loading the vacation-season scenario
	// THEN: Erin's request is approved and deducted, Frank's is pending

	h := setupTestHandler(t)
	ctx := context.Background()

	if err := h.loadVacationSeasonScenario(ctx); err != nil {
		t.Fatalf("Failed to load vacation-season scenario: %v", err)
	}

	employees, err := h.Store.ListEmployees(ctx, false)
	if err != nil {
		t.Fatalf("Failed to list employees: %v", err)
	}
	if len(employees) != 3 {
		t.Fatalf("Expected 3 employees, got %d", len(employees))
	}

	// Erin was hired Feb 1 of last year: 11 remaining months of a 30-day
	// year prorate to 28, minus the 5 approved days.
	erin, err := h.Store.GetEmployee(ctx, "emp-erin")
	if err != nil {
		t.Fatalf("Failed to get employee: %v", err)
	}
	if erin.LeaveBalance != 23 {
		t.Errorf("Expected balance 23 (28 prorated - 5 deducted), got %d", erin.LeaveBalance)
	}

	erinID := engine.EmployeeID("emp-erin")
	erinRequests, err := h.Store.ListRequests(ctx, engine.RequestFilter{EmployeeID: &erinID})
	if err != nil {
		t.Fatalf("Failed to list requests: %v", err)
	}
	if len(erinRequests) != 1 {
		t.Fatalf("Expected 1 request for Erin, got %d", len(erinRequests))
	}
	approved := erinRequests[0]
	if approved.Status != engine.StatusApproved {
		t.Errorf("Expected Erin's request approved, got %s", approved.Status)
	}
	if approved.DeductedDays == nil || *approved.DeductedDays != 5 {
		t.Errorf("Expected 5 deducted days, got %v", approved.DeductedDays)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != "mgr-dana" {
		t.Errorf("Expected approval by mgr-dana, got %v", approved.ApprovedBy)
	}

	erinMovements, err := h.Store.MovementsForEmployee(ctx, erinID)
	if err != nil {
		t.Fatalf("Failed to get movements: %v", err)
	}
	kinds := countKinds(erinMovements)
	if kinds[engine.MovementGrant] != 1 || kinds[engine.MovementDeduction] != 1 {
		t.Errorf("Expected one grant and one deduction, got %v", kinds)
	}

	entries, err := h.Store.EntriesInRange(ctx, erinID, engine.WeekStart(engine.Today().AddDays(-7)), engine.Today())
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("Expected 4 entries for Erin, got %d", len(entries))
	}

	// Frank's request is the only one still in the pending queue.
	pending := engine.StatusPending
	queue, err := h.Store.ListRequests(ctx, engine.RequestFilter{Status: &pending})
	if err != nil {
		t.Fatalf("Failed to list pending requests: %v", err)
	}
	if len(queue) != 1 || queue[0].EmployeeID != "emp-frank" {
		t.Fatalf("Expected only Frank's pending request, got %+v", queue)
	}
}

func TestScenario_CancelledTrip(t *testing.T) {
	// GIVEN: A fresh handler
	// WHEN: Loading the cancelled-trip scenario
	// THEN: The ledger shows grant, deduction and restore netting out to 30

	h := setupTestHandler(t)
	ctx := context.Background()

	if err := h.loadCancelledTripScenario(ctx); err != nil {
		t.Fatalf("Failed to load cancelled-trip scenario: %v", err)
	}

	greta, err := h.Store.GetEmployee(ctx, "emp-greta")
	if err != nil {
		t.Fatalf("Failed to get employee: %v", err)
	}
	if greta.LeaveBalance != 30 {
		t.Errorf("Expected the balance restored to 30, got %d", greta.LeaveBalance)
	}

	gretaID := engine.EmployeeID("emp-greta")
	requests, err := h.Store.ListRequests(ctx, engine.RequestFilter{EmployeeID: &gretaID})
	if err != nil {
		t.Fatalf("Failed to list requests: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(requests))
	}
	req := requests[0]
	if req.Status != engine.StatusCancelled {
		t.Errorf("Expected status cancelled, got %s", req.Status)
	}
	if req.DeductedDays == nil || *req.DeductedDays != 3 {
		t.Errorf("Expected 3 deducted days on record, got %v", req.DeductedDays)
	}
	if req.CancelledBy == nil || *req.CancelledBy != "emp-greta" {
		t.Errorf("Expected cancellation by emp-greta, got %v", req.CancelledBy)
	}
	if req.CancelledAt == nil {
		t.Error("Expected a cancellation timestamp")
	}

	movements, err := h.Store.MovementsForEmployee(ctx, gretaID)
	if err != nil {
		t.Fatalf("Failed to get movements: %v", err)
	}
	if len(movements) != 3 {
		t.Fatalf("Expected grant, deduction and restore, got %d movements", len(movements))
	}
	kinds := countKinds(movements)
	if kinds[engine.MovementGrant] != 1 || kinds[engine.MovementDeduction] != 1 || kinds[engine.MovementRestore] != 1 {
		t.Errorf("Unexpected ledger composition: %v", kinds)
	}
	if got := engine.BalanceFromMovements(0, movements); got != 30 {
		t.Errorf("Expected the ledger to replay to 30, got %d", got)
	}
}

func TestScenario_PartTimeWeek(t *testing.T) {
	// GIVEN: A fresh handler
	// WHEN: Loading the part-time-week scenario
	// THEN: Paula's pending request overdraws her 20-day balance

	h := setupTestHandler(t)
	ctx := context.Background()

	if err := h.loadPartTimeWeekScenario(ctx); err != nil {
		t.Fatalf("Failed to load part-time-week scenario: %v", err)
	}

	paula, err := h.Store.GetEmployee(ctx, "emp-paula")
	if err != nil {
		t.Fatalf("Failed to get employee: %v", err)
	}
	if paula.LeaveBalance != 20 {
		t.Errorf("Expected the part-time balance of 20, got %d", paula.LeaveBalance)
	}

	monday := engine.WeekStart(engine.Today().AddDays(-7))
	entries, err := h.Store.EntriesInRange(ctx, "emp-paula", monday, monday.AddDays(6))
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if got := e.WorkedHours().String(); got != "4" {
			t.Fatalf("Expected 4 worked hours on %s, got %s", e.Date, got)
		}
	}

	// Five weeks of leave are 25 working days against 20 held.
	view, err := h.Leave.BalanceView(ctx, "emp-paula")
	if err != nil {
		t.Fatalf("Failed to compute balance view: %v", err)
	}
	if view.Balance != 20 || view.PendingDays != 25 || view.AfterPending != -5 || view.PendingRequests != 1 {
		t.Errorf("Expected 20 held / 25 pending / -5 projected, got %+v", view)
	}
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	// GIVEN: Every registered scenario
	// WHEN: Loading each one on a clean database
	// THEN: All loaders succeed

	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			h := setupTestHandler(t)
			ctx := context.Background()

			var err error
			switch s.ID {
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
				t.Fatalf("No loader for scenario %q", s.ID)
			}
			if err != nil {
				t.Fatalf("Failed to load scenario %q: %v", s.ID, err)
			}
		})
	}
}
