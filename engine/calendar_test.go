package engine_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timekeep/engine"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// icsFeed joins VCALENDAR lines with CRLF the way real feeds are served.
func icsFeed(lines ...string) string {
	content := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//timekeep//tests//EN"}, lines...)
	content = append(content, "END:VCALENDAR", "")
	return strings.Join(content, "\r\n")
}

// =============================================================================
// HOLIDAY SET
// =============================================================================

func TestHolidaySet_FixedHoliday(t *testing.T) {
	// GIVEN: A one-off holiday in 2026
	// WHEN: Looking it up across years
	// THEN: Only the exact date matches

	liberation := engine.NewDate(2026, time.May, 8)
	set := engine.NewHolidaySet(engine.Holiday{ID: "h1", Date: liberation, Name: "Liberation Day"})

	assert.True(t, set.IsHoliday(liberation))
	assert.False(t, set.IsHoliday(liberation.AddDays(1)))
	assert.False(t, set.IsHoliday(engine.NewDate(2027, time.May, 8)), "non-recurring holidays do not repeat")
}

func TestHolidaySet_RecurringMatchesEveryYear(t *testing.T) {
	// GIVEN: A yearly-recurring holiday seeded with a 2020 date
	// WHEN: Checking the same month/day in other years
	// THEN: Every year matches

	set := engine.NewHolidaySet(engine.Holiday{
		ID:        "newyear",
		Date:      engine.NewDate(2020, time.January, 1),
		Name:      "New Year's Day",
		Recurring: true,
	})

	assert.True(t, set.IsHoliday(engine.NewDate(2026, time.January, 1)))
	assert.True(t, set.IsHoliday(engine.NewDate(2031, time.January, 1)))
	assert.False(t, set.IsHoliday(engine.NewDate(2026, time.January, 2)))
}

func TestHolidaySet_Holidays_MaterializesYear(t *testing.T) {
	// GIVEN: A recurring and a fixed holiday
	// WHEN: Listing a year
	// THEN: Recurring entries appear on that year's date, sorted; fixed
	//       entries only in their own year

	set := engine.NewHolidaySet(
		engine.Holiday{ID: "h-fixed", Date: engine.NewDate(2026, time.May, 8), Name: "Liberation Day"},
		engine.Holiday{ID: "h-rec", Date: engine.NewDate(2020, time.January, 1), Name: "New Year's Day", Recurring: true},
	)

	in2026 := set.Holidays(2026)
	require.Len(t, in2026, 2)
	assert.Equal(t, "New Year's Day", in2026[0].Name)
	assert.True(t, in2026[0].Date.Equal(engine.NewDate(2026, time.January, 1)))
	assert.Equal(t, "Liberation Day", in2026[1].Name)

	in2027 := set.Holidays(2027)
	require.Len(t, in2027, 1)
	assert.Equal(t, "New Year's Day", in2027[0].Name)
	assert.True(t, in2027[0].Date.Equal(engine.NewDate(2027, time.January, 1)))
}

// =============================================================================
// ICS PARSING
// =============================================================================

func TestParseICSHolidays_AllDayEvent(t *testing.T) {
	// GIVEN: A feed with one all-day recurring event
	// WHEN: Parsing
	// THEN: One holiday with the event's UID, date, name, recurrence

	feed := icsFeed(
		"BEGIN:VEVENT",
		"UID:newyear@feeds.example.org",
		"DTSTART;VALUE=DATE:20260101",
		"DTEND;VALUE=DATE:20260102",
		"SUMMARY:New Year's Day",
		"RRULE:FREQ=YEARLY",
		"END:VEVENT",
	)

	holidays, err := engine.ParseICSHolidays(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, holidays, 1)

	h := holidays[0]
	assert.Equal(t, "newyear@feeds.example.org", h.ID)
	assert.True(t, h.Date.Equal(engine.NewDate(2026, time.January, 1)))
	assert.Equal(t, "New Year's Day", h.Name)
	assert.True(t, h.Recurring)
}

func TestParseICSHolidays_MultiDayEventExpands(t *testing.T) {
	// GIVEN: An event spanning April 6-7 (DTEND exclusive)
	// WHEN: Parsing
	// THEN: One holiday per covered day, suffixed IDs past the first

	feed := icsFeed(
		"BEGIN:VEVENT",
		"UID:easter@feeds.example.org",
		"DTSTART;VALUE=DATE:20260406",
		"DTEND;VALUE=DATE:20260408",
		"SUMMARY:Easter Break",
		"END:VEVENT",
	)

	holidays, err := engine.ParseICSHolidays(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, holidays, 2)

	assert.True(t, holidays[0].Date.Equal(engine.NewDate(2026, time.April, 6)))
	assert.Equal(t, "easter@feeds.example.org", holidays[0].ID)
	assert.True(t, holidays[1].Date.Equal(engine.NewDate(2026, time.April, 7)))
	assert.Equal(t, "easter@feeds.example.org-2", holidays[1].ID)
	assert.False(t, holidays[0].Recurring)
}

func TestParseICSHolidays_UTCStampedEvent(t *testing.T) {
	// GIVEN: An event published with a UTC timestamp instead of a DATE value
	// WHEN: Parsing
	// THEN: The date portion is taken

	feed := icsFeed(
		"BEGIN:VEVENT",
		"UID:xmas@feeds.example.org",
		"DTSTART:20261224T000000Z",
		"SUMMARY:Christmas Eve",
		"END:VEVENT",
	)

	holidays, err := engine.ParseICSHolidays(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, holidays, 1, "missing DTEND means a single day")
	assert.True(t, holidays[0].Date.Equal(engine.NewDate(2026, time.December, 24)))
}

func TestParseICSHolidays_SkipsEventsWithoutSummary(t *testing.T) {
	feed := icsFeed(
		"BEGIN:VEVENT",
		"UID:anon@feeds.example.org",
		"DTSTART;VALUE=DATE:20260101",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:named@feeds.example.org",
		"DTSTART;VALUE=DATE:20260501",
		"SUMMARY:Labour Day",
		"END:VEVENT",
	)

	holidays, err := engine.ParseICSHolidays(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.Equal(t, "Labour Day", holidays[0].Name)
}

func TestParseICSHolidays_MalformedStream(t *testing.T) {
	_, err := engine.ParseICSHolidays(strings.NewReader("this is not a calendar"))
	assert.Error(t, err)
}

// =============================================================================
// CALENDAR LOADING
// =============================================================================

func TestNewICSCalendar_ReadyToUse(t *testing.T) {
	// GIVEN: A feed with a recurring holiday
	// WHEN: Building a calendar from it
	// THEN: Lookups work for any year immediately

	feed := icsFeed(
		"BEGIN:VEVENT",
		"UID:newyear@feeds.example.org",
		"DTSTART;VALUE=DATE:20260101",
		"SUMMARY:New Year's Day",
		"RRULE:FREQ=YEARLY",
		"END:VEVENT",
	)

	cal, err := engine.NewICSCalendar(strings.NewReader(feed))
	require.NoError(t, err)

	assert.True(t, cal.IsHoliday(engine.NewDate(2028, time.January, 1)))
	assert.False(t, cal.IsHoliday(engine.NewDate(2028, time.January, 2)))
}

func TestLoadICSCalendar_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holidays.ics")
	feed := icsFeed(
		"BEGIN:VEVENT",
		"UID:liberation@feeds.example.org",
		"DTSTART;VALUE=DATE:20260508",
		"SUMMARY:Liberation Day",
		"END:VEVENT",
	)
	require.NoError(t, os.WriteFile(path, []byte(feed), 0o644))

	cal, err := engine.LoadICSCalendar(path)
	require.NoError(t, err)
	assert.True(t, cal.IsHoliday(engine.NewDate(2026, time.May, 8)))
}

func TestLoadICSCalendar_MissingFile(t *testing.T) {
	_, err := engine.LoadICSCalendar(filepath.Join(t.TempDir(), "nope.ics"))
	assert.Error(t, err)
}
