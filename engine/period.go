package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive [Start, End] date range. Used for leave requests,
// summary windows, and entitlement years.
type Period struct {
	Start Date
	End   Date
}

func NewPeriod(start, end Date) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// MonthOf returns the calendar-month period containing year/month.
func MonthOf(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// YearOf returns the calendar-year period.
func YearOf(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

func (p Period) Contains(d Date) bool {
	return p.Start.BeforeOrEqual(d) && d.BeforeOrEqual(p.End)
}

// Days is the inclusive day count.
func (p Period) Days() int { return InclusiveDays(p.Start, p.End) }

// WorkingDays counts working days in the period per the calendar.
func (p Period) WorkingDays(cal HolidayCalendar) int {
	return WorkingDaysBetween(p.Start, p.End, cal)
}

// Overlaps reports whether two inclusive periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Clip returns the intersection of two periods and whether it is non-empty.
func (p Period) Clip(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	return Period{Start: start, End: end}, true
}

func (p Period) String() string { return fmt.Sprintf("%s..%s", p.Start, p.End) }
