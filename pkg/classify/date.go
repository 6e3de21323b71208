package classify

import (
	"strings"
	"time"
)

// DateOutcome is the per-row result of parsing a date cell. A cell that no
// layout accepts is not an error: it yields Parsed == false.
type DateOutcome struct {
	Time   time.Time
	Parsed bool
}

// dateLayouts is tried in order; the first layout that parses wins. Month-first
// forms come before day-first ones, so "03/04/2024" reads as March 4.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 3:04:05 PM",
	"2006-01-02 3:04 PM",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
	"2006-1-2",
	"2006/01/02 15:04:05",
	"2006/1/2",
	"2006.1.2",
	"20060102",

	// US style.
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1-2-2006",
	"1/2/06",

	// Day-first fallbacks.
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2.1.2006 15:04:05",
	"2.1.2006",
	"2-1-2006",

	// Textual months.
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"2006-Jan-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RubyDate,
	time.UnixDate,
	time.ANSIC,
}

// ParseDate interprets s as a calendar date or date-time. Values without a
// zone are read in loc; values with an offset are converted into loc.
func ParseDate(s string, loc *time.Location) DateOutcome {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateOutcome{}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return DateOutcome{Time: t.In(loc), Parsed: true}
		}
	}
	return DateOutcome{}
}

// AgeDays returns the number of calendar days from t to ref, both taken as
// civil dates in ref's location. Time of day is ignored and the result is
// negative when t falls after ref.
func AgeDays(ref, t time.Time) int {
	return civilDay(ref) - civilDay(t.In(ref.Location()))
}

// civilDay numbers a date's calendar day independent of DST transitions.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
