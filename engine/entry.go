/*
entry.go - Time entry validation, normalization, and submission

PURPOSE:
  Turns a submitted entry into a normalized, persistable one, or a
  structured rejection. The Validator is a pure function of its inputs:
  it sees the candidate, the employee's already-persisted entries for the
  same date, and the rule config. Persistence, the weekly ceiling, and
  notification dispatch belong to EntryService, the store-aware caller.

NORMALIZATION PIPELINE:
  1. Structural validation   required fields, start < end, date sanity
  2. Rounding                start/end to the configured step, so every
                             later comparison runs on one granularity
  3. Overlap detection       half-open [start, end) against existing
                             entries in UTC; back-to-back is legal
  4. Break normalization     derive omitted breaks, enforce the regulatory
                             minimum on explicit ones
  5. Daily ceiling           worked = span - break, rejected above the limit
  6. Defaulting              empty project -> configured default code

  Violations reject the entry; nothing is silently clamped.

CONCURRENCY:
  Two concurrent submissions could both pass the overlap read. EntryService
  therefore runs read-validate-write inside the store's WithTx, which is
  the per-employee serialization point.

SEE ALSO:
  - config.go: The rule knobs consumed here
  - aggregate.go: Weekly sub-totals backing the weekly ceiling
  - errors.go: The rejection taxonomy
*/
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// VALIDATOR - Pure validation and normalization
// =============================================================================

type Validator struct {
	Config Config
}

func NewValidator(cfg Config) *Validator { return &Validator{Config: cfg} }

// ValidateAndNormalize validates the candidate against the employee's
// existing entries for the same date and returns the normalized entry.
// The returned entry has no ID and no audit timestamps; the caller assigns
// those. No side effects, no clock reads.
func (v *Validator) ValidateAndNormalize(candidate EntryCandidate, existing []TimeEntry) (TimeEntry, error) {
	if err := v.structural(candidate); err != nil {
		return TimeEntry{}, err
	}

	step := time.Duration(v.Config.RoundingMinutes) * time.Minute
	start := RoundToStep(candidate.Start, step, v.Config.RoundingMethod)
	end := RoundToStep(candidate.End, step, v.Config.RoundingMethod)
	if !start.Before(end) {
		return TimeEntry{}, &InvalidInputError{Field: "end", Reason: "entry rounds to zero length"}
	}

	entry := TimeEntry{
		EmployeeID: candidate.EmployeeID,
		Date:       candidate.Date,
		Start:      start,
		End:        end,
		Project:    strings.TrimSpace(candidate.Project),
		Notes:      candidate.Notes,
	}

	if conflicts := conflictingEntries(entry, existing); len(conflicts) > 0 {
		return TimeEntry{}, &OverlapError{
			EmployeeID:     entry.EmployeeID,
			Date:           entry.Date,
			ConflictingIDs: conflicts,
		}
	}

	breakMinutes, err := v.normalizeBreak(candidate.BreakMinutes, entry.SpanMinutes())
	if err != nil {
		return TimeEntry{}, err
	}
	entry.BreakMinutes = breakMinutes

	worked := entry.WorkedMinutes()
	if worked < 0 {
		return TimeEntry{}, &InvalidInputError{Field: "break_minutes", Reason: "break exceeds the entry span"}
	}
	if worked > v.Config.maxDailyMinutes() {
		return TimeEntry{}, &DailyLimitExceededError{
			Date:        entry.Date,
			WorkedHours: HoursFromMinutes(worked),
			LimitHours:  v.Config.MaxDailyHours,
		}
	}

	if entry.Project == "" {
		entry.Project = v.Config.DefaultProjectCode
	}
	return entry, nil
}

func (v *Validator) structural(c EntryCandidate) error {
	if c.EmployeeID == "" {
		return &InvalidInputError{Field: "employee_id", Reason: "must not be empty"}
	}
	if c.Date.IsZero() {
		return &InvalidInputError{Field: "date", Reason: "must be a valid calendar date"}
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return &InvalidInputError{Field: "start", Reason: "start and end are required"}
	}
	if !c.Start.Before(c.End) {
		return &InvalidInputError{Field: "end", Reason: "start must be strictly before end"}
	}
	if !DateOf(c.Start).Equal(c.Date) {
		return &InvalidInputError{Field: "start", Reason: "start must fall on the entry date"}
	}
	// The end may spill onto the next date only as an exact midnight, which
	// rounding up can produce.
	endDate := DateOf(c.End)
	if !endDate.Equal(c.Date) {
		nextMidnight := c.Date.AddDays(1).At(0, 0, c.End.Location())
		if !endDate.Equal(c.Date.AddDays(1)) || !c.End.Equal(nextMidnight) {
			return &InvalidInputError{Field: "end", Reason: "end must fall on the entry date"}
		}
	}
	if c.BreakMinutes != nil && *c.BreakMinutes < 0 {
		return &InvalidInputError{Field: "break_minutes", Reason: "must not be negative"}
	}
	return nil
}

// normalizeBreak applies the break policy to a rounded span.
func (v *Validator) normalizeBreak(explicit *int, spanMinutes int) (int, error) {
	threshold := v.Config.minimumBreakThresholdMinutes()

	if explicit == nil {
		if v.Config.AutomaticBreakDeduction && spanMinutes >= threshold {
			return v.Config.BreakDurationMinutes, nil
		}
		return 0, nil
	}

	// An explicit break is never overridden, but above the threshold it must
	// meet the regulatory minimum.
	if spanMinutes >= threshold && *explicit < v.Config.BreakDurationMinutes {
		return 0, &InsufficientBreakError{
			ProvidedMinutes: *explicit,
			RequiredMinutes: v.Config.BreakDurationMinutes,
			SpanHours:       HoursFromMinutes(spanMinutes),
		}
	}
	return *explicit, nil
}

// Overlaps reports whether two entries' [start, end) intervals intersect,
// compared in UTC. End == next start is not an overlap.
func Overlaps(a, b TimeEntry) bool {
	aStart, aEnd := a.Interval()
	bStart, bEnd := b.Interval()
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func conflictingEntries(candidate TimeEntry, existing []TimeEntry) []EntryID {
	var conflicts []EntryID
	for _, other := range existing {
		if Overlaps(candidate, other) {
			conflicts = append(conflicts, other.ID)
		}
	}
	return conflicts
}

// =============================================================================
// ENTRY SERVICE - Store-aware submission, update, deletion
// =============================================================================

type EntryService struct {
	Store  TxStore
	Config Config

	// Rules, when set, resolves the config per employee (ruleset lookup).
	// Nil means every employee validates against Config.
	Rules func(Employee) Config

	Dispatcher Dispatcher
	Logger     *slog.Logger
}

func NewEntryService(store TxStore, cfg Config, dispatcher Dispatcher, logger *slog.Logger) *EntryService {
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EntryService{Store: store, Config: cfg, Dispatcher: dispatcher, Logger: logger}
}

func (s *EntryService) configFor(emp Employee) Config {
	if s.Rules != nil {
		return s.Rules(emp)
	}
	return s.Config
}

// Submit validates, normalizes, and persists a new entry. The overlap read,
// the weekly ceiling check, and the write run in one store transaction.
func (s *EntryService) Submit(ctx context.Context, actor Actor, candidate EntryCandidate) (*TimeEntry, error) {
	var saved TimeEntry
	var emp *Employee

	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		emp, err = s.mutableEmployee(ctx, tx, actor, candidate.EmployeeID)
		if err != nil {
			return err
		}

		existing, err := tx.EntriesForDate(ctx, candidate.EmployeeID, candidate.Date)
		if err != nil {
			return err
		}

		cfg := s.configFor(*emp)
		validator := NewValidator(cfg)
		entry, err := validator.ValidateAndNormalize(candidate, existing)
		if err != nil {
			return err
		}

		if err := s.checkWeeklyCeiling(ctx, tx, cfg, entry, ""); err != nil {
			return err
		}

		now := time.Now()
		entry.ID = EntryID(uuid.NewString())
		entry.CreatedAt = now
		entry.UpdatedAt = now
		if err := tx.SaveEntry(ctx, entry); err != nil {
			return err
		}
		saved = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchEntry(ctx, EventTimeEntryCreated, actor, *emp, saved)
	return &saved, nil
}

// Update re-validates an entry against its siblings (excluding itself) and
// persists the normalized replacement under the same id.
func (s *EntryService) Update(ctx context.Context, actor Actor, id EntryID, candidate EntryCandidate) (*TimeEntry, error) {
	var saved TimeEntry
	var emp *Employee

	err := s.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if candidate.EmployeeID == "" {
			candidate.EmployeeID = current.EmployeeID
		}
		if candidate.EmployeeID != current.EmployeeID {
			return &InvalidInputError{Field: "employee_id", Reason: "entries cannot move between employees"}
		}

		emp, err = s.mutableEmployee(ctx, tx, actor, current.EmployeeID)
		if err != nil {
			return err
		}

		sameDay, err := tx.EntriesForDate(ctx, current.EmployeeID, candidate.Date)
		if err != nil {
			return err
		}
		others := sameDay[:0:0]
		for _, e := range sameDay {
			if e.ID != id {
				others = append(others, e)
			}
		}

		cfg := s.configFor(*emp)
		validator := NewValidator(cfg)
		entry, err := validator.ValidateAndNormalize(candidate, others)
		if err != nil {
			return err
		}

		if err := s.checkWeeklyCeiling(ctx, tx, cfg, entry, id); err != nil {
			return err
		}

		entry.ID = id
		entry.CreatedAt = current.CreatedAt
		entry.UpdatedAt = time.Now()
		if err := tx.SaveEntry(ctx, entry); err != nil {
			return err
		}
		saved = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchEntry(ctx, EventTimeEntryUpdated, actor, *emp, saved)
	return &saved, nil
}

// Delete removes an entry by explicit request.
func (s *EntryService) Delete(ctx context.Context, actor Actor, id EntryID) error {
	var removed TimeEntry
	var emp *Employee

	err := s.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		emp, err = s.mutableEmployee(ctx, tx, actor, current.EmployeeID)
		if err != nil {
			return err
		}
		if err := tx.DeleteEntry(ctx, id); err != nil {
			return err
		}
		removed = *current
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatchEntry(ctx, EventTimeEntryDeleted, actor, *emp, removed)
	return nil
}

// mutableEmployee loads the employee and enforces who may touch their data:
// the employee, their manager, or an admin. Disabled records are refused.
func (s *EntryService) mutableEmployee(ctx context.Context, tx Store, actor Actor, id EmployeeID) (*Employee, error) {
	emp, err := tx.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if emp.Disabled {
		return nil, ErrEmployeeDisabled
	}
	if actor.ID != emp.ID && !actor.HasApprovalAuthority(*emp) {
		return nil, ErrNotAuthorized
	}
	return emp, nil
}

// checkWeeklyCeiling sums the ISO week's persisted worked time (minus the
// entry being replaced, if any) plus the candidate, against maxWeeklyHours.
func (s *EntryService) checkWeeklyCeiling(ctx context.Context, tx Store, cfg Config, entry TimeEntry, replacing EntryID) error {
	weekStart := WeekStart(entry.Date)
	weekEnd := weekStart.AddDays(6)

	weekEntries, err := tx.EntriesInRange(ctx, entry.EmployeeID, weekStart, weekEnd)
	if err != nil {
		return err
	}

	minutes := entry.WorkedMinutes()
	for _, e := range weekEntries {
		if replacing != "" && e.ID == replacing {
			continue
		}
		minutes += e.WorkedMinutes()
	}

	worked := HoursFromMinutes(minutes)
	if worked.GreaterThan(cfg.MaxWeeklyHours) {
		return &WeeklyLimitExceededError{
			WeekStart:   weekStart,
			WorkedHours: worked,
			LimitHours:  cfg.MaxWeeklyHours,
		}
	}
	return nil
}

// dispatchEntry notifies best-effort: failures are logged, never returned.
func (s *EntryService) dispatchEntry(ctx context.Context, typ EventType, actor Actor, emp Employee, entry TimeEntry) {
	ev := Event{
		Type:     typ,
		At:       time.Now(),
		Actor:    actor,
		Employee: emp,
		Entry:    &entry,
	}
	if err := s.Dispatcher.Dispatch(ctx, ev); err != nil {
		s.Logger.Warn("notification dispatch failed",
			slog.String("event", string(typ)),
			slog.String("employee", string(emp.ID)),
			slog.String("error", err.Error()))
	}
}
