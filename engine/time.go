package engine

import (
	"time"
)

// =============================================================================
// DATE - Calendar date without a time component
// =============================================================================

// Date is a calendar date at day granularity. All date math in the engine
// goes through this type; business-rule code never parses or formats dates
// inline.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date { return NewDate(t.Year(), t.Month(), t.Day()) }

func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.Time.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{Time: d.Time.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (d Date) IsZero() bool { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// At combines the date with a wall-clock time in the given location.
func (d Date) At(hour, min int, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, loc)
}

// =============================================================================
// TIMESTAMPS - Entry start/end carry an explicit offset
// =============================================================================

// ParseStamp parses an RFC 3339 timestamp. The offset is mandatory, which is
// exactly what RFC 3339 requires; a bare local time is rejected.
func ParseStamp(s string) (time.Time, error) { return time.Parse(time.RFC3339, s) }

// FormatStamp renders t as RFC 3339, preserving its offset.
func FormatStamp(t time.Time) string { return t.Format(time.RFC3339) }

// =============================================================================
// ROUNDING - Timestamp rounding to a configured step
// =============================================================================

type RoundingMethod string

const (
	RoundNearest RoundingMethod = "nearest"
	RoundUp      RoundingMethod = "up"
	RoundDown    RoundingMethod = "down"
)

func (m RoundingMethod) Valid() bool {
	switch m {
	case RoundNearest, RoundUp, RoundDown:
		return true
	}
	return false
}

// RoundToStep rounds t to a multiple of step, counted from midnight in t's
// own location so a 15-minute step lands on :00/:15/:30/:45 wall-clock.
// A step of zero returns t unchanged.
func RoundToStep(t time.Time, step time.Duration, method RoundingMethod) time.Time {
	if step <= 0 {
		return t
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := t.Sub(midnight)

	var rounded time.Duration
	switch method {
	case RoundUp:
		rounded = ((offset + step - 1) / step) * step
	case RoundDown:
		rounded = (offset / step) * step
	default: // nearest; ties round up
		rounded = ((offset + step/2) / step) * step
	}
	return midnight.Add(rounded)
}

// =============================================================================
// HOLIDAY CALENDAR - Working-day lookup, supplied by the caller
// =============================================================================

// Holiday is a non-working day that is excluded from working-day counts.
type Holiday struct {
	ID        string
	Date      Date
	Name      string
	Recurring bool // same month/day every year
}

// HolidayCalendar provides holiday lookup. Implementations: HolidaySet
// (ICS feeds, store snapshots) and the SQL stores directly.
type HolidayCalendar interface {
	IsHoliday(date Date) bool
	Holidays(year int) []Holiday
}

// NoHolidays is the calendar used when none is configured: every weekday is
// a working day.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(Date) bool    { return false }
func (NoHolidays) Holidays(int) []Holiday { return nil }

// IsWorkingDay reports whether d counts toward daily/weekly ceilings.
func (d Date) IsWorkingDay(cal HolidayCalendar) bool {
	if d.IsWeekend() {
		return false
	}
	if cal != nil && cal.IsHoliday(d) {
		return false
	}
	return true
}

// =============================================================================
// DAY MATH
// =============================================================================

// DaysBetween returns the signed number of days from one date to another.
func DaysBetween(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// InclusiveDays counts both endpoints: Mon..Fri is 5.
func InclusiveDays(from, to Date) int { return DaysBetween(from, to) + 1 }

// WorkingDaysBetween counts working days in [from, to] per the calendar.
func WorkingDaysBetween(from, to Date, cal HolidayCalendar) int {
	if to.Before(from) {
		return 0
	}
	count := 0
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if d.IsWorkingDay(cal) {
			count++
		}
	}
	return count
}

// WeekStart returns the Monday of d's ISO week.
func WeekStart(d Date) Date {
	wd := int(d.Weekday())
	if wd == 0 { // Sunday
		wd = 7
	}
	return d.AddDays(1 - wd)
}

func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return NewDate(year, time.December, 31) }

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }
func EndOfMonth(year int, month time.Month) Date {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return DateOf(t)
}
