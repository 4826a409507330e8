/*
calendar.go - Holiday calendars

PURPOSE:
  Concrete HolidayCalendar implementations. HolidaySet is the in-memory
  form used everywhere a calendar is held for the life of a process:
  parsed from an iCalendar feed, snapshotted from a holiday store, or
  built inline in tests. Recurring holidays (RRULE:FREQ=YEARLY in feeds)
  match the same month/day in every year.

ICS FEEDS:
  Public-holiday feeds publish all-day VEVENTs. The parser reads SUMMARY
  and DTSTART, expands multi-day events (DTEND is exclusive for all-day
  events), and flags yearly-recurring events. Everything else in the
  feed is ignored.

USAGE:
  cal, err := engine.LoadICSCalendar("holidays-de.ics")
  ...
  days := engine.RequestDays(period, cal)

SEE ALSO:
  - time.go: HolidayCalendar interface and working-day math
  - store.go: HolidayStore persistence contract
*/
package engine

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

// =============================================================================
// HOLIDAY SET - In-memory calendar
// =============================================================================

type monthDay struct {
	Month time.Month
	Day   int
}

// HolidaySet answers holiday lookups from a fixed in-memory set.
type HolidaySet struct {
	fixed     map[Date]Holiday
	recurring map[monthDay]Holiday
}

func NewHolidaySet(holidays ...Holiday) *HolidaySet {
	set := &HolidaySet{
		fixed:     make(map[Date]Holiday),
		recurring: make(map[monthDay]Holiday),
	}
	for _, h := range holidays {
		set.Add(h)
	}
	return set
}

func (s *HolidaySet) Add(h Holiday) {
	if h.Recurring {
		s.recurring[monthDay{h.Date.Month(), h.Date.Day()}] = h
		return
	}
	s.fixed[NewDate(h.Date.Year(), h.Date.Month(), h.Date.Day())] = h
}

func (s *HolidaySet) IsHoliday(date Date) bool {
	if _, ok := s.fixed[NewDate(date.Year(), date.Month(), date.Day())]; ok {
		return true
	}
	_, ok := s.recurring[monthDay{date.Month(), date.Day()}]
	return ok
}

// Holidays returns the holidays falling in the given year, recurring ones
// materialized on that year's date, sorted chronologically.
func (s *HolidaySet) Holidays(year int) []Holiday {
	var out []Holiday
	for date, h := range s.fixed {
		if date.Year() == year {
			out = append(out, h)
		}
	}
	for md, h := range s.recurring {
		materialized := h
		materialized.Date = NewDate(year, md.Month, md.Day)
		out = append(out, materialized)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// =============================================================================
// ICS PARSING
// =============================================================================

// icsDateFormats covers the date shapes holiday feeds actually use: all-day
// values, UTC stamps, and floating local stamps.
var icsDateFormats = []string{"20060102", "20060102T150405Z", "20060102T150405"}

// ParseICSHolidays extracts holidays from an iCalendar stream.
func ParseICSHolidays(r io.Reader) ([]Holiday, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	var holidays []Holiday
	for _, event := range cal.Events() {
		parsed, ok := parseHolidayEvent(event)
		if !ok {
			continue
		}
		holidays = append(holidays, parsed...)
	}
	return holidays, nil
}

// parseHolidayEvent turns one VEVENT into holidays, one per covered day.
func parseHolidayEvent(event *ics.VEvent) ([]Holiday, bool) {
	summary := event.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return nil, false
	}
	name := strings.TrimSpace(summary.Value)

	start, ok := icsDate(event, ics.ComponentPropertyDtStart)
	if !ok {
		return nil, false
	}
	// DTEND is exclusive; a missing DTEND means a single day.
	end := start.AddDays(1)
	if until, ok := icsDate(event, ics.ComponentPropertyDtEnd); ok && start.Before(until) {
		end = until
	}

	id := uuid.NewString()
	if uid := event.GetProperty(ics.ComponentPropertyUniqueId); uid != nil && uid.Value != "" {
		id = uid.Value
	}

	recurring := false
	if rrule := event.GetProperty(ics.ComponentPropertyRrule); rrule != nil {
		recurring = strings.Contains(strings.ToUpper(rrule.Value), "FREQ=YEARLY")
	}

	var holidays []Holiday
	for day, n := start, 0; day.Before(end); day, n = day.AddDays(1), n+1 {
		holidayID := id
		if n > 0 {
			holidayID = fmt.Sprintf("%s-%d", id, n+1)
		}
		holidays = append(holidays, Holiday{
			ID:        holidayID,
			Date:      day,
			Name:      name,
			Recurring: recurring,
		})
	}
	return holidays, true
}

func icsDate(event *ics.VEvent, prop ics.ComponentProperty) (Date, bool) {
	p := event.GetProperty(prop)
	if p == nil {
		return Date{}, false
	}
	for _, format := range icsDateFormats {
		if t, err := time.Parse(format, p.Value); err == nil {
			return DateOf(t), true
		}
	}
	return Date{}, false
}

// NewICSCalendar parses a feed into a ready-to-use calendar.
func NewICSCalendar(r io.Reader) (*HolidaySet, error) {
	holidays, err := ParseICSHolidays(r)
	if err != nil {
		return nil, err
	}
	return NewHolidaySet(holidays...), nil
}

// LoadICSCalendar reads a feed file from disk.
func LoadICSCalendar(path string) (*HolidaySet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ics file: %w", err)
	}
	defer f.Close()
	return NewICSCalendar(f)
}
