package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timekeep/engine"
	"github.com/warp/timekeep/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// berlin is the submission zone used throughout: entries keep their offset,
// comparisons happen in UTC.
var berlin = time.FixedZone("CEST", 2*60*60)

// monday is a fixed reference Monday so week math is deterministic.
var monday = engine.NewDate(2026, time.March, 2)

func newTestEntryService(t *testing.T) (*engine.EntryService, *store.TxMemory) {
	t.Helper()
	st := store.NewTxMemory()
	svc := engine.NewEntryService(st, engine.DefaultConfig(), nil, nil)
	return svc, st
}

func testEmployee(id engine.EmployeeID) engine.Employee {
	return engine.Employee{
		ID:       id,
		Name:     "Test Employee " + string(id),
		Email:    string(id) + "@example.com",
		HireDate: engine.NewDate(2023, time.January, 9),
	}
}

func saveEmployee(t *testing.T, st engine.Store, emp engine.Employee) engine.Employee {
	t.Helper()
	require.NoError(t, st.SaveEmployee(context.Background(), emp))
	return emp
}

func selfActor(id engine.EmployeeID) engine.Actor {
	return engine.Actor{ID: id, Role: engine.RoleEmployee}
}

// candidateAt builds a candidate on the given date with wall-clock start and
// end in the berlin zone and no explicit break.
func candidateAt(emp engine.EmployeeID, date engine.Date, startH, startM, endH, endM int) engine.EntryCandidate {
	return engine.EntryCandidate{
		EmployeeID: emp,
		Date:       date,
		Start:      date.At(startH, startM, berlin),
		End:        date.At(endH, endM, berlin),
	}
}

func breakMinutes(m int) *int { return &m }

// recordingDispatcher captures every event for assertions.
type recordingDispatcher struct {
	events []engine.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev engine.Event) error {
	d.events = append(d.events, ev)
	return nil
}

// failingDispatcher simulates a broken delivery channel.
type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, engine.Event) error {
	return errors.New("smtp connection refused")
}

// =============================================================================
// VALIDATOR - Normalization
// =============================================================================

func TestValidator_Normalize_RoundsAndDerivesBreak(t *testing.T) {
	// GIVEN: An 8:58-17:02 entry with no break and no project
	// WHEN: Validating under the default rules (15 min nearest rounding)
	// THEN: Times snap to 9:00-17:00, the standard break is deducted, and
	//       the default project is assigned

	v := engine.NewValidator(engine.DefaultConfig())
	entry, err := v.ValidateAndNormalize(candidateAt("emp-1", monday, 8, 58, 17, 2), nil)
	require.NoError(t, err)

	assert.Equal(t, monday.At(9, 0, berlin), entry.Start)
	assert.Equal(t, monday.At(17, 0, berlin), entry.End)
	assert.Equal(t, 30, entry.BreakMinutes, "8h span is above the 6h threshold")
	assert.Equal(t, "INTERNAL", entry.Project)
	assert.Equal(t, "7.5", entry.WorkedHours().String())
	assert.Empty(t, entry.ID, "the validator does not assign IDs")
}

func TestValidator_Normalize_KeepsExplicitProject(t *testing.T) {
	v := engine.NewValidator(engine.DefaultConfig())
	candidate := candidateAt("emp-1", monday, 9, 0, 12, 0)
	candidate.Project = "  ACME-PORTAL "

	entry, err := v.ValidateAndNormalize(candidate, nil)
	require.NoError(t, err)
	assert.Equal(t, "ACME-PORTAL", entry.Project)
}

func TestValidator_Normalize_RoundingMethodDown(t *testing.T) {
	// GIVEN: A ruleset that truncates to the step
	// WHEN: Validating a 9:14-17:14 entry
	// THEN: Both stamps round down

	cfg := engine.DefaultConfig()
	cfg.RoundingMethod = engine.RoundDown

	entry, err := engine.NewValidator(cfg).ValidateAndNormalize(candidateAt("emp-1", monday, 9, 14, 17, 14), nil)
	require.NoError(t, err)

	assert.Equal(t, monday.At(9, 0, berlin), entry.Start)
	assert.Equal(t, monday.At(17, 0, berlin), entry.End)
}

func TestValidator_Normalize_ZeroLengthAfterRounding(t *testing.T) {
	// GIVEN: A 9:00-9:05 entry under 15 minute rounding
	// WHEN: Both stamps snap to the same grid point
	// THEN: The entry is rejected instead of persisted with zero span

	v := engine.NewValidator(engine.DefaultConfig())
	_, err := v.ValidateAndNormalize(candidateAt("emp-1", monday, 9, 0, 9, 5), nil)

	var invalid *engine.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "end", invalid.Field)
}

// =============================================================================
// VALIDATOR - Break rules
// =============================================================================

func TestValidator_Break_NoneBelowThreshold(t *testing.T) {
	// GIVEN: A 4h entry with no explicit break
	// WHEN: Validating with automatic deduction on
	// THEN: No break is derived below the 6h threshold

	v := engine.NewValidator(engine.DefaultConfig())
	entry, err := v.ValidateAndNormalize(candidateAt("emp-1", monday, 9, 0, 13, 0), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, entry.BreakMinutes)
	assert.Equal(t, "4", entry.WorkedHours().String())
}

func TestValidator_Break_ExplicitValueKept(t *testing.T) {
	// GIVEN: A 9:00-17:00 entry with an explicit 45 minute break
	// WHEN: Validating
	// THEN: The explicit value wins over the standard 30 minutes

	v := engine.NewValidator(engine.DefaultConfig())
	candidate := candidateAt("emp-1", monday, 9, 0, 17, 0)
	candidate.BreakMinutes = breakMinutes(45)

	entry, err := v.ValidateAndNormalize(candidate, nil)
	require.NoError(t, err)
	assert.Equal(t, 45, entry.BreakMinutes)
	assert.Equal(t, "7.25", entry.WorkedHours().String())
}

func TestValidator_Break_ExplicitBelowMinimumRejected(t *testing.T) {
	// GIVEN: An 8h entry declaring only a 15 minute break
	// WHEN: Validating
	// THEN: The break is rejected, not silently raised to the minimum

	v := engine.NewValidator(engine.DefaultConfig())
	candidate := candidateAt("emp-1", monday, 9, 0, 17, 0)
	candidate.BreakMinutes = breakMinutes(15)

	_, err := v.ValidateAndNormalize(candidate, nil)

	var insufficient *engine.InsufficientBreakError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 15, insufficient.ProvidedMinutes)
	assert.Equal(t, 30, insufficient.RequiredMinutes)
	assert.Equal(t, "8", insufficient.SpanHours.String())
	assert.ErrorIs(t, err, engine.ErrInsufficientBreak)
}

func TestValidator_Break_ExplicitZeroBelowThresholdAllowed(t *testing.T) {
	// GIVEN: A 4h entry explicitly declaring zero break
	// WHEN: Validating
	// THEN: Zero is legal below the threshold

	v := engine.NewValidator(engine.DefaultConfig())
	candidate := candidateAt("emp-1", monday, 9, 0, 13, 0)
	candidate.BreakMinutes = breakMinutes(0)

	entry, err := v.ValidateAndNormalize(candidate, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.BreakMinutes)
}

func TestValidator_Break_AutomaticDeductionDisabled(t *testing.T) {
	// GIVEN: A ruleset with automatic break deduction off
	// WHEN: Validating an 8h entry with no break
	// THEN: No break is derived and 8h worked sits exactly at the ceiling

	cfg := engine.DefaultConfig()
	cfg.AutomaticBreakDeduction = false

	entry, err := engine.NewValidator(cfg).ValidateAndNormalize(candidateAt("emp-1", monday, 9, 0, 17, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.BreakMinutes)
	assert.Equal(t, "8", entry.WorkedHours().String())
}

func TestValidator_Break_ExceedingSpanRejected(t *testing.T) {
	// GIVEN: A 1h entry declaring a 90 minute break
	// WHEN: Validating
	// THEN: Negative worked time is rejected

	v := engine.NewValidator(engine.DefaultConfig())
	candidate := candidateAt("emp-1", monday, 9, 0, 10, 0)
	candidate.BreakMinutes = breakMinutes(90)

	_, err := v.ValidateAndNormalize(candidate, nil)

	var invalid *engine.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "break_minutes", invalid.Field)
}

// =============================================================================
// VALIDATOR - Overlap detection
// =============================================================================

func TestValidator_Overlap_Rejected(t *testing.T) {
	// GIVEN: A persisted 9:00-12:00 entry
	// WHEN: Submitting 11:00-13:00 on the same date
	// THEN: The overlap is rejected and names the conflicting entry

	existing := mustNormalize(t, candidateAt("emp-1", monday, 9, 0, 12, 0))
	existing.ID = "entry-morning"

	_, err := engine.NewValidator(engine.DefaultConfig()).
		ValidateAndNormalize(candidateAt("emp-1", monday, 11, 0, 13, 0), []engine.TimeEntry{existing})

	var overlap *engine.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, []engine.EntryID{"entry-morning"}, overlap.ConflictingIDs)
	assert.True(t, overlap.Date.Equal(monday))
	assert.ErrorIs(t, err, engine.ErrOverlap)
}

func TestValidator_Overlap_BackToBackAllowed(t *testing.T) {
	// GIVEN: A persisted 9:00-12:00 entry
	// WHEN: Submitting 12:00-15:00
	// THEN: Half-open intervals make end == next start legal

	existing := mustNormalize(t, candidateAt("emp-1", monday, 9, 0, 12, 0))
	existing.ID = "entry-morning"

	entry, err := engine.NewValidator(engine.DefaultConfig()).
		ValidateAndNormalize(candidateAt("emp-1", monday, 12, 0, 15, 0), []engine.TimeEntry{existing})
	require.NoError(t, err)
	assert.Equal(t, monday.At(12, 0, berlin), entry.Start)
}

func TestValidator_Overlap_ComparedInUTC(t *testing.T) {
	// GIVEN: An existing 10:00-12:00 +02:00 entry (08:00-10:00 UTC)
	// WHEN: Submitting 09:00-11:00 UTC on the same date
	// THEN: The instants overlap even though the wall-clock strings do not

	existing := mustNormalize(t, candidateAt("emp-1", monday, 10, 0, 12, 0))
	existing.ID = "entry-cest"

	candidate := engine.EntryCandidate{
		EmployeeID: "emp-1",
		Date:       monday,
		Start:      time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
		End:        time.Date(2026, time.March, 2, 11, 0, 0, 0, time.UTC),
	}

	_, err := engine.NewValidator(engine.DefaultConfig()).
		ValidateAndNormalize(candidate, []engine.TimeEntry{existing})
	assert.ErrorIs(t, err, engine.ErrOverlap)
}

func TestOverlaps_Symmetric(t *testing.T) {
	a := mustNormalize(t, candidateAt("emp-1", monday, 9, 0, 12, 0))
	b := mustNormalize(t, candidateAt("emp-1", monday, 11, 0, 13, 0))

	assert.True(t, engine.Overlaps(a, b))
	assert.True(t, engine.Overlaps(b, a))
}

// mustNormalize runs a candidate through a default validator, failing the
// test on any violation.
func mustNormalize(t *testing.T, candidate engine.EntryCandidate) engine.TimeEntry {
	t.Helper()
	entry, err := engine.NewValidator(engine.DefaultConfig()).ValidateAndNormalize(candidate, nil)
	require.NoError(t, err)
	return entry
}

// =============================================================================
// VALIDATOR - Daily ceiling
// =============================================================================

func TestValidator_DailyCeiling_ExactLimitAllowed(t *testing.T) {
	// GIVEN: An 8:00-16:30 entry (8h worked after the standard break)
	// WHEN: Validating against an 8h daily ceiling
	// THEN: Exactly the limit passes; the ceiling is exclusive

	v := engine.NewValidator(engine.DefaultConfig())
	entry, err := v.ValidateAndNormalize(candidateAt("emp-1", monday, 8, 0, 16, 30), nil)
	require.NoError(t, err)
	assert.Equal(t, "8", entry.WorkedHours().String())
}

func TestValidator_DailyCeiling_AboveLimitRejected(t *testing.T) {
	// GIVEN: An 8:00-17:00 entry with a 45 minute break (8.25h worked)
	// WHEN: Validating
	// THEN: The daily ceiling rejects it with the worked total

	v := engine.NewValidator(engine.DefaultConfig())
	candidate := candidateAt("emp-1", monday, 8, 0, 17, 0)
	candidate.BreakMinutes = breakMinutes(45)

	_, err := v.ValidateAndNormalize(candidate, nil)

	var daily *engine.DailyLimitExceededError
	require.ErrorAs(t, err, &daily)
	assert.Equal(t, "8.25", daily.WorkedHours.String())
	assert.Equal(t, "8", daily.LimitHours.String())
	assert.ErrorIs(t, err, engine.ErrDailyLimitExceeded)
}

// =============================================================================
// VALIDATOR - Structural rejection
// =============================================================================

func TestValidator_Structural_EndNotAfterStart(t *testing.T) {
	v := engine.NewValidator(engine.DefaultConfig())

	_, err := v.ValidateAndNormalize(candidateAt("emp-1", monday, 17, 0, 9, 0), nil)
	var invalid *engine.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "end", invalid.Field)

	_, err = v.ValidateAndNormalize(candidateAt("emp-1", monday, 9, 0, 9, 0), nil)
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
}

func TestValidator_Structural_StartMustFallOnDate(t *testing.T) {
	// GIVEN: A candidate dated Monday whose stamps fall on Tuesday
	// WHEN: Validating
	// THEN: The date mismatch is rejected

	v := engine.NewValidator(engine.DefaultConfig())
	candidate := candidateAt("emp-1", monday.AddDays(1), 9, 0, 17, 0)
	candidate.Date = monday

	_, err := v.ValidateAndNormalize(candidate, nil)
	var invalid *engine.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "start", invalid.Field)
}

func TestValidator_Structural_EndOnNextDayRejected(t *testing.T) {
	// GIVEN: A night shift ending 02:00 the next day
	// WHEN: Validating
	// THEN: Entries must close on their own date

	v := engine.NewValidator(engine.DefaultConfig())
	candidate := engine.EntryCandidate{
		EmployeeID: "emp-1",
		Date:       monday,
		Start:      monday.At(22, 0, berlin),
		End:        monday.AddDays(1).At(2, 0, berlin),
	}

	_, err := v.ValidateAndNormalize(candidate, nil)
	var invalid *engine.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "end", invalid.Field)
}

func TestValidator_Structural_EndAtMidnightAllowed(t *testing.T) {
	// GIVEN: A 20:00-24:00 entry ending exactly at the next midnight
	// WHEN: Validating
	// THEN: The exact-midnight end is the one legal spill

	v := engine.NewValidator(engine.DefaultConfig())
	candidate := engine.EntryCandidate{
		EmployeeID: "emp-1",
		Date:       monday,
		Start:      monday.At(20, 0, berlin),
		End:        monday.AddDays(1).At(0, 0, berlin),
	}

	entry, err := v.ValidateAndNormalize(candidate, nil)
	require.NoError(t, err)
	assert.Equal(t, 240, entry.SpanMinutes())
}

func TestValidator_Structural_MissingFields(t *testing.T) {
	v := engine.NewValidator(engine.DefaultConfig())

	noEmployee := candidateAt("", monday, 9, 0, 12, 0)
	_, err := v.ValidateAndNormalize(noEmployee, nil)
	assert.ErrorIs(t, err, engine.ErrInvalidInput)

	noStamps := engine.EntryCandidate{EmployeeID: "emp-1", Date: monday}
	_, err = v.ValidateAndNormalize(noStamps, nil)
	assert.ErrorIs(t, err, engine.ErrInvalidInput)

	noDate := engine.EntryCandidate{
		EmployeeID: "emp-1",
		Start:      monday.At(9, 0, berlin),
		End:        monday.At(12, 0, berlin),
	}
	_, err = v.ValidateAndNormalize(noDate, nil)
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
}

func TestValidator_Structural_NegativeBreakRejected(t *testing.T) {
	v := engine.NewValidator(engine.DefaultConfig())
	candidate := candidateAt("emp-1", monday, 9, 0, 17, 0)
	candidate.BreakMinutes = breakMinutes(-10)

	_, err := v.ValidateAndNormalize(candidate, nil)
	var invalid *engine.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "break_minutes", invalid.Field)
}

// =============================================================================
// ENTRY SERVICE - Submission
// =============================================================================

func TestEntryService_Submit_PersistsNormalizedEntry(t *testing.T) {
	// GIVEN: An active employee
	// WHEN: Submitting an entry through the service
	// THEN: The normalized entry is persisted with an ID and audit stamps

	svc, st := newTestEntryService(t)
	emp := saveEmployee(t, st, testEmployee("emp-1"))
	ctx := context.Background()

	entry, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday, 8, 58, 17, 2))
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	stored, err := st.EntriesForDate(ctx, emp.ID, monday)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, entry.ID, stored[0].ID)
	assert.Equal(t, "7.5", stored[0].WorkedHours().String())
}

func TestEntryService_Submit_OverlapAgainstPersisted(t *testing.T) {
	// GIVEN: A persisted morning entry
	// WHEN: Submitting an overlapping afternoon entry
	// THEN: The second submission fails and nothing extra is stored

	svc, st := newTestEntryService(t)
	emp := saveEmployee(t, st, testEmployee("emp-1"))
	ctx := context.Background()

	first, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday, 9, 0, 12, 0))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday, 11, 0, 14, 0))
	var overlap *engine.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, []engine.EntryID{first.ID}, overlap.ConflictingIDs)

	stored, err := st.EntriesForDate(ctx, emp.ID, monday)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestEntryService_Submit_WeeklyCeiling(t *testing.T) {
	// GIVEN: Four 8h days Monday through Thursday
	// WHEN: Adding 8h Friday (40h total) and then 4h Saturday
	// THEN: Exactly 40h passes, the 44th hour trips the weekly ceiling

	svc, st := newTestEntryService(t)
	emp := saveEmployee(t, st, testEmployee("emp-1"))
	ctx := context.Background()

	for day := 0; day < 4; day++ {
		_, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday.AddDays(day), 8, 0, 16, 30))
		require.NoError(t, err)
	}

	_, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday.AddDays(4), 8, 0, 16, 30))
	require.NoError(t, err, "exactly 40h is still legal")

	_, err = svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday.AddDays(5), 9, 0, 13, 0))
	var weekly *engine.WeeklyLimitExceededError
	require.ErrorAs(t, err, &weekly)
	assert.True(t, weekly.WeekStart.Equal(monday))
	assert.Equal(t, "44", weekly.WorkedHours.String())
	assert.Equal(t, "40", weekly.LimitHours.String())
}

func TestEntryService_Submit_NextWeekStartsFresh(t *testing.T) {
	// GIVEN: A full 40h week
	// WHEN: Submitting 8h the following Monday
	// THEN: The weekly ceiling resets with the new ISO week

	svc, st := newTestEntryService(t)
	emp := saveEmployee(t, st, testEmployee("emp-1"))
	ctx := context.Background()

	for day := 0; day < 5; day++ {
		_, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday.AddDays(day), 8, 0, 16, 30))
		require.NoError(t, err)
	}

	_, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday.AddDays(7), 8, 0, 16, 30))
	assert.NoError(t, err)
}

func TestEntryService_Submit_DisabledEmployeeRejected(t *testing.T) {
	svc, st := newTestEntryService(t)
	emp := testEmployee("emp-1")
	emp.Disabled = true
	saveEmployee(t, st, emp)

	_, err := svc.Submit(context.Background(), selfActor(emp.ID), candidateAt(emp.ID, monday, 9, 0, 12, 0))
	assert.ErrorIs(t, err, engine.ErrEmployeeDisabled)
}

func TestEntryService_Submit_UnknownEmployeeRejected(t *testing.T) {
	svc, _ := newTestEntryService(t)

	_, err := svc.Submit(context.Background(), selfActor("ghost"), candidateAt("ghost", monday, 9, 0, 12, 0))
	assert.ErrorIs(t, err, engine.ErrEmployeeNotFound)
}

func TestEntryService_Submit_Authority(t *testing.T) {
	// GIVEN: An employee with a manager, plus an unrelated colleague
	// WHEN: Each of them submits an entry on the employee's behalf
	// THEN: The manager and an admin may, the colleague may not

	svc, st := newTestEntryService(t)
	manager := saveEmployee(t, st, testEmployee("mgr-1"))
	emp := testEmployee("emp-1")
	emp.ManagerID = &manager.ID
	saveEmployee(t, st, emp)
	saveEmployee(t, st, testEmployee("emp-2"))
	ctx := context.Background()

	_, err := svc.Submit(ctx, engine.Actor{ID: "emp-2", Role: engine.RoleEmployee},
		candidateAt(emp.ID, monday, 9, 0, 12, 0))
	assert.ErrorIs(t, err, engine.ErrNotAuthorized)

	_, err = svc.Submit(ctx, engine.Actor{ID: manager.ID, Role: engine.RoleManager},
		candidateAt(emp.ID, monday, 9, 0, 12, 0))
	assert.NoError(t, err)

	_, err = svc.Submit(ctx, engine.Actor{ID: "admin", Role: engine.RoleAdmin},
		candidateAt(emp.ID, monday.AddDays(1), 9, 0, 12, 0))
	assert.NoError(t, err)
}

func TestEntryService_Submit_PerEmployeeRules(t *testing.T) {
	// GIVEN: A rules resolver assigning a 4h daily ceiling to part-timers
	// WHEN: A part-time employee submits a 5h entry
	// THEN: Their own ruleset rejects it while the default would not

	svc, st := newTestEntryService(t)
	emp := testEmployee("emp-part")
	emp.RulesetID = "parttime"
	saveEmployee(t, st, emp)

	svc.Rules = func(e engine.Employee) engine.Config {
		cfg := engine.DefaultConfig()
		if e.RulesetID == "parttime" {
			cfg.MaxDailyHours = decimal.NewFromInt(4)
			cfg.MaxWeeklyHours = decimal.NewFromInt(20)
		}
		return cfg
	}

	_, err := svc.Submit(context.Background(), selfActor(emp.ID), candidateAt(emp.ID, monday, 9, 0, 14, 0))
	assert.ErrorIs(t, err, engine.ErrDailyLimitExceeded)

	_, err = svc.Submit(context.Background(), selfActor(emp.ID), candidateAt(emp.ID, monday, 9, 0, 13, 0))
	assert.NoError(t, err)
}

func TestEntryService_Submit_DispatcherFailureDoesNotRollBack(t *testing.T) {
	// GIVEN: A dispatcher whose delivery channel is down
	// WHEN: Submitting a valid entry
	// THEN: The entry persists; notification failure is not a veto

	st := store.NewTxMemory()
	svc := engine.NewEntryService(st, engine.DefaultConfig(), failingDispatcher{}, nil)
	emp := saveEmployee(t, st, testEmployee("emp-1"))

	entry, err := svc.Submit(context.Background(), selfActor(emp.ID), candidateAt(emp.ID, monday, 9, 0, 12, 0))
	require.NoError(t, err)

	stored, err := st.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, stored.ID)
}

func TestEntryService_Submit_DispatchesCreatedEvent(t *testing.T) {
	st := store.NewTxMemory()
	rec := &recordingDispatcher{}
	svc := engine.NewEntryService(st, engine.DefaultConfig(), rec, nil)
	emp := saveEmployee(t, st, testEmployee("emp-1"))

	_, err := svc.Submit(context.Background(), selfActor(emp.ID), candidateAt(emp.ID, monday, 9, 0, 12, 0))
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, engine.EventTimeEntryCreated, rec.events[0].Type)
	assert.Equal(t, emp.ID, rec.events[0].Employee.ID)
	require.NotNil(t, rec.events[0].Entry)
}

// =============================================================================
// ENTRY SERVICE - Update and delete
// =============================================================================

func TestEntryService_Update_ExcludesItselfFromOverlap(t *testing.T) {
	// GIVEN: A persisted 9:00-12:00 entry
	// WHEN: Extending it to 9:00-13:00
	// THEN: The entry does not collide with its own previous version

	svc, st := newTestEntryService(t)
	emp := saveEmployee(t, st, testEmployee("emp-1"))
	ctx := context.Background()

	entry, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday, 9, 0, 12, 0))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, selfActor(emp.ID), entry.ID, candidateAt(emp.ID, monday, 9, 0, 13, 0))
	require.NoError(t, err)

	assert.Equal(t, entry.ID, updated.ID, "identity is stable across updates")
	assert.Equal(t, entry.CreatedAt, updated.CreatedAt)
	assert.Equal(t, monday.At(13, 0, berlin), updated.End)
}

func TestEntryService_Update_StillCollidesWithSiblings(t *testing.T) {
	svc, st := newTestEntryService(t)
	emp := saveEmployee(t, st, testEmployee("emp-1"))
	ctx := context.Background()

	_, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday, 9, 0, 12, 0))
	require.NoError(t, err)
	afternoon, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday, 13, 0, 16, 0))
	require.NoError(t, err)

	_, err = svc.Update(ctx, selfActor(emp.ID), afternoon.ID, candidateAt(emp.ID, monday, 11, 0, 16, 0))
	assert.ErrorIs(t, err, engine.ErrOverlap)
}

func TestEntryService_Update_WeeklyCeilingExcludesReplaced(t *testing.T) {
	// GIVEN: A full 40h week
	// WHEN: Shrinking Friday from 8h to 4h via update
	// THEN: The replaced entry's hours do not count double

	svc, st := newTestEntryService(t)
	emp := saveEmployee(t, st, testEmployee("emp-1"))
	ctx := context.Background()

	var friday *engine.TimeEntry
	for day := 0; day < 5; day++ {
		entry, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday.AddDays(day), 8, 0, 16, 30))
		require.NoError(t, err)
		friday = entry
	}

	updated, err := svc.Update(ctx, selfActor(emp.ID), friday.ID, candidateAt(emp.ID, monday.AddDays(4), 9, 0, 13, 0))
	require.NoError(t, err)
	assert.Equal(t, "4", updated.WorkedHours().String())
}

func TestEntryService_Update_CannotMoveBetweenEmployees(t *testing.T) {
	svc, st := newTestEntryService(t)
	emp := saveEmployee(t, st, testEmployee("emp-1"))
	saveEmployee(t, st, testEmployee("emp-2"))
	ctx := context.Background()

	entry, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday, 9, 0, 12, 0))
	require.NoError(t, err)

	_, err = svc.Update(ctx, engine.Actor{ID: "admin", Role: engine.RoleAdmin},
		entry.ID, candidateAt("emp-2", monday, 9, 0, 12, 0))
	var invalid *engine.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "employee_id", invalid.Field)
}

func TestEntryService_Delete_RemovesEntry(t *testing.T) {
	svc, st := newTestEntryService(t)
	emp := saveEmployee(t, st, testEmployee("emp-1"))
	ctx := context.Background()

	entry, err := svc.Submit(ctx, selfActor(emp.ID), candidateAt(emp.ID, monday, 9, 0, 12, 0))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, selfActor(emp.ID), entry.ID))

	_, err = st.GetEntry(ctx, entry.ID)
	assert.ErrorIs(t, err, engine.ErrEntryNotFound)
}

func TestEntryService_Delete_UnknownEntry(t *testing.T) {
	svc, _ := newTestEntryService(t)
	err := svc.Delete(context.Background(), engine.Actor{ID: "admin", Role: engine.RoleAdmin}, "ghost")
	assert.ErrorIs(t, err, engine.ErrEntryNotFound)
}
