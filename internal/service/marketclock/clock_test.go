package marketclock

import (
	"testing"
	"time"
)

func TestAlwaysOpenBypassesCalendar(t *testing.T) {
	c := New("XNYS", true)

	sunday := time.Date(2024, 3, 3, 4, 0, 0, 0, time.UTC)
	if !c.IsOpen(sunday) {
		t.Fatal("always-open clock must report open on a Sunday")
	}
	if !c.IsTradingDay(sunday) {
		t.Fatal("always-open clock must report every day as a session day")
	}
}

func TestClosedOnWeekend(t *testing.T) {
	c := New("XNYS", false)

	saturday := time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)
	if c.IsOpen(saturday) {
		t.Fatal("venue should be closed on Saturday")
	}
	if c.IsTradingDay(saturday) {
		t.Fatal("Saturday is not a session day")
	}
}

func TestOpenMidSession(t *testing.T) {
	c := New("XNYS", false)

	// Wednesday 2024-03-06 15:00 ET, inside the regular session.
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	midSession := time.Date(2024, 3, 6, 15, 0, 0, 0, et)
	if !c.IsOpen(midSession) {
		t.Fatal("venue should be open mid-session on a regular Wednesday")
	}
	if !c.IsTradingDay(midSession) {
		t.Fatal("regular Wednesday should be a session day")
	}
}

func TestUnknownMICFallsBack(t *testing.T) {
	c := New("nope", false)

	saturday := time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)
	if c.IsOpen(saturday) {
		t.Fatal("fallback clock should still close weekends")
	}
}
