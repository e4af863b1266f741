package marketclock

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// Clock answers whether a trading venue is open, backed by the exchange
// calendar for the configured MIC. When the calendar for the MIC cannot be
// loaded it degrades to a plain Mon-Fri 09:30-16:00 session in venueLoc.
type Clock struct {
	cal        *calendar.Calendar
	loc        *time.Location
	alwaysOpen bool
}

// New creates a clock for the venue identified by mic (ISO 10383, e.g.
// "XNYS"). alwaysOpen bypasses the calendar entirely, which is what tests
// and crypto-style universes want.
func New(mic string, alwaysOpen bool) *Clock {
	c := &Clock{alwaysOpen: alwaysOpen}

	cal := calendar.GetCalendar(strings.ToLower(mic))
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}

	if cal != nil {
		c.cal = cal
		c.loc = cal.Loc
		return c
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	c.loc = loc
	return c
}

// IsOpen reports whether the venue trades at t.
func (c *Clock) IsOpen(t time.Time) bool {
	if c.alwaysOpen {
		return true
	}

	if c.cal != nil {
		return c.cal.IsOpen(t)
	}

	t = t.In(c.loc)
	if !c.IsTradingDay(t) {
		return false
	}
	hour, minute := t.Hour(), t.Minute()
	return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
}

// IsTradingDay reports whether t falls on a session day for the venue.
func (c *Clock) IsTradingDay(t time.Time) bool {
	if c.alwaysOpen {
		return true
	}

	t = t.In(c.loc)
	if c.cal != nil {
		return c.cal.IsBusinessDay(t)
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
