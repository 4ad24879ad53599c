package markethours

import (
	"errors"
	"testing"
	"time"

	"vwap-alerts/internal/indicator"
)

func TestWindow_InclusiveBoundaries(t *testing.T) {
	w, err := NewWindow("09:30", "11:30", "America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	at := func(h, m, s int) time.Time {
		return time.Date(2026, 3, 3, h, m, s, 0, w.Loc)
	}
	cases := []struct {
		t    time.Time
		open bool
	}{
		{at(9, 30, 0), true},
		{at(11, 30, 0), true},
		{at(11, 30, 1), false},
		{at(9, 29, 59), false},
		{at(10, 15, 0), true},
	}
	for _, tc := range cases {
		if got := w.IsOpen(tc.t); got != tc.open {
			t.Errorf("%s: IsOpen=%v, want %v", tc.t.Format("15:04:05"), got, tc.open)
		}
	}
}

func TestWindow_SubSecondBounds(t *testing.T) {
	w, err := NewWindow("09:30", "11:30", "America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	at := func(h, m, s, ms int) time.Time {
		return time.Date(2026, 3, 3, h, m, s, ms*int(time.Millisecond), w.Loc)
	}
	if w.IsOpen(at(11, 30, 0, 900)) {
		t.Error("11:30:00.900 is after the end and must be closed")
	}
	if w.IsOpen(at(9, 29, 59, 999)) {
		t.Error("09:29:59.999 is before the start and must be closed")
	}
	if !w.IsOpen(at(9, 30, 0, 1)) {
		t.Error("09:30:00.001 must be open")
	}
}

func TestWindow_ConvertsToWindowTimezone(t *testing.T) {
	w, err := NewWindow("09:30", "11:30", "America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	// 14:30 UTC on a March day after DST starts (Mar 8 2026) is 10:30 EDT.
	if !w.IsOpen(time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)) {
		t.Error("expected 10:30 EDT to be open")
	}
	// 14:30 UTC before DST is 09:30 EST: still open (inclusive start).
	if !w.IsOpen(time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC)) {
		t.Error("expected 09:30 EST to be open")
	}
	if w.IsOpen(time.Date(2026, 3, 3, 14, 29, 59, 0, time.UTC)) {
		t.Error("expected 09:29:59 EST to be closed")
	}
}

func TestWindow_TradingDaysOnly(t *testing.T) {
	w, _ := NewWindow("09:30", "16:00", "")
	w.TradingDaysOnly = true
	sat := time.Date(2026, 3, 7, 10, 0, 0, 0, ET)
	if w.IsOpen(sat) {
		t.Error("expected Saturday to be closed")
	}
	goodFriday := time.Date(2026, 4, 3, 10, 0, 0, 0, ET)
	if w.IsOpen(goodFriday) {
		t.Error("expected Good Friday to be closed")
	}
	w.TradingDaysOnly = false
	if !w.IsOpen(sat) {
		t.Error("plain window ignores the calendar")
	}
}

func TestNewWindow_Invalid(t *testing.T) {
	cases := [][3]string{
		{"11:30", "09:30", ""},
		{"9h30", "11:30", ""},
		{"09:30", "25:00", ""},
		{"09:30", "11:30", "Mars/Olympus"},
	}
	for _, c := range cases {
		_, err := NewWindow(c[0], c[1], c[2])
		if !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("%v: expected ErrInvalidWindow, got %v", c, err)
		}
		if !errors.Is(err, indicator.ErrInvalidParameter) {
			t.Errorf("%v: expected ErrInvalidParameter in chain, got %v", c, err)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	d, err := ParseTimeOfDay("09:30:15")
	if err != nil {
		t.Fatal(err)
	}
	if d != TimeOfDay(9*3600+30*60+15) {
		t.Errorf("got %d", d)
	}
	if d.String() != "09:30:15" {
		t.Errorf("got %s", d)
	}
}

func TestMarketCalendar(t *testing.T) {
	open := time.Date(2026, 3, 3, 10, 0, 0, 0, ET) // Tuesday
	if !IsMarketOpen(open) {
		t.Error("expected market open Tuesday 10:00 ET")
	}
	if IsMarketOpen(time.Date(2026, 3, 3, 16, 0, 0, 0, ET)) {
		t.Error("expected closed at 16:00 ET")
	}
	if !IsHoliday(time.Date(2026, 12, 25, 12, 0, 0, 0, ET)) {
		t.Error("expected Christmas to be a holiday")
	}

	// Thursday evening before Good Friday → next open is Monday.
	next := NextOpen(time.Date(2026, 4, 2, 17, 0, 0, 0, ET))
	want := time.Date(2026, 4, 6, 9, 30, 0, 0, ET)
	if !next.Equal(want) {
		t.Errorf("NextOpen = %v, want %v", next, want)
	}
	if TimeUntilClose(time.Date(2026, 3, 3, 17, 0, 0, 0, ET)) != 0 {
		t.Error("expected zero time until close after the close")
	}
	if s := StatusString(open); s == "" {
		t.Error("expected non-empty status")
	}
}
