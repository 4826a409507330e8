/*
aggregate.go - Period aggregation over entries and leave

PURPOSE:
  Folds an employee's normalized entries and leave requests into a
  PeriodSummary: worked hours, overtime, leave days, per-project shares,
  and ISO-week sub-totals. The fold is pure: same inputs, same summary,
  no caching visible to callers. That is what makes the additivity
  property hold: summaries of adjacent periods sum to the summary of the
  union.

OVERTIME:
  overtime = max(0, workedHours - workingDays * standardDailyHours)
  where workingDays excludes weekends/holidays per the supplied calendar
  and standardDailyHours is the configured daily ceiling.

LEAVE DAYS:
  Approved requests overlapping the period are clipped to it and counted
  with the same day-counting rule the lifecycle used (calendar-aware).

SEE ALSO:
  - entry.go: WorkedMinutes feeding the fold
  - balance.go: RequestDays day counting
  - time.go: Working-day and week helpers
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SUMMARY TYPES
// =============================================================================

type ProjectShare struct {
	Project string
	Hours   decimal.Decimal
	// Share is the project's percentage of total worked hours, 0..100.
	Share decimal.Decimal
}

type WeekTotal struct {
	// WeekStart is the Monday of the ISO week.
	WeekStart Date
	Hours     decimal.Decimal
}

type PeriodSummary struct {
	EmployeeID EmployeeID
	Period     Period

	CalendarDays int
	WorkingDays  int

	WorkedHours   decimal.Decimal
	OvertimeHours decimal.Decimal
	LeaveDays     int

	ByProject []ProjectShare
	Weeks     []WeekTotal
}

// AggregationInput carries everything the fold needs. Entries and requests
// outside the period are ignored, so callers may over-fetch safely.
type AggregationInput struct {
	EmployeeID    EmployeeID
	Period        Period
	Entries       []TimeEntry
	LeaveRequests []LeaveRequest
	Calendar      HolidayCalendar
	Config        Config
}

// =============================================================================
// AGGREGATE - The pure fold
// =============================================================================

func Aggregate(in AggregationInput) PeriodSummary {
	summary := PeriodSummary{
		EmployeeID:   in.EmployeeID,
		Period:       in.Period,
		CalendarDays: in.Period.Days(),
		WorkingDays:  in.Period.WorkingDays(in.Calendar),
	}

	totalMinutes := 0
	projectMinutes := make(map[string]int)
	weekMinutes := make(map[Date]int)

	for _, entry := range in.Entries {
		if entry.EmployeeID != in.EmployeeID || !in.Period.Contains(entry.Date) {
			continue
		}
		worked := entry.WorkedMinutes()
		totalMinutes += worked
		projectMinutes[entry.Project] += worked
		weekMinutes[WeekStart(entry.Date)] += worked
	}

	summary.WorkedHours = HoursFromMinutes(totalMinutes)

	expected := in.Config.MaxDailyHours.Mul(decimal.NewFromInt(int64(summary.WorkingDays)))
	if overtime := summary.WorkedHours.Sub(expected); overtime.IsPositive() {
		summary.OvertimeHours = overtime
	} else {
		summary.OvertimeHours = decimal.Zero
	}

	for _, req := range in.LeaveRequests {
		if req.EmployeeID != in.EmployeeID || req.Status != StatusApproved {
			continue
		}
		if clipped, ok := in.Period.Clip(req.Period()); ok {
			summary.LeaveDays += RequestDays(clipped, in.Calendar)
		}
	}

	summary.ByProject = projectShares(projectMinutes, totalMinutes)
	summary.Weeks = weekTotals(weekMinutes)
	return summary
}

// projectShares sorts by hours descending, then code, and expresses each
// project as a percentage of the total.
func projectShares(minutes map[string]int, total int) []ProjectShare {
	if total <= 0 {
		return nil
	}
	shares := make([]ProjectShare, 0, len(minutes))
	totalDec := decimal.NewFromInt(int64(total))
	for project, m := range minutes {
		shares = append(shares, ProjectShare{
			Project: project,
			Hours:   HoursFromMinutes(m),
			Share:   decimal.NewFromInt(int64(m)).Div(totalDec).Mul(decimal.NewFromInt(100)).Round(2),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if !shares[i].Hours.Equal(shares[j].Hours) {
			return shares[i].Hours.GreaterThan(shares[j].Hours)
		}
		return shares[i].Project < shares[j].Project
	})
	return shares
}

func weekTotals(minutes map[Date]int) []WeekTotal {
	weeks := make([]WeekTotal, 0, len(minutes))
	for start, m := range minutes {
		weeks = append(weeks, WeekTotal{WeekStart: start, Hours: HoursFromMinutes(m)})
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].WeekStart.Before(weeks[j].WeekStart) })
	return weeks
}
