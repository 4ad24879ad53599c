package markethours

import (
	"fmt"
	"strings"
	"time"

	"vwap-alerts/internal/indicator"
)

// ErrInvalidWindow is returned for unusable window bounds.
var ErrInvalidWindow = fmt.Errorf("%w: trading window", indicator.ErrInvalidParameter)

// TimeOfDay is a wall-clock time in seconds since local midnight.
type TimeOfDay int

// ParseTimeOfDay parses "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
		}
	}
	return 0, fmt.Errorf("%w: bad time of day %q", ErrInvalidWindow, s)
}

// clock returns the wall-clock offset of t in loc from local midnight at
// full precision.
func clock(t time.Time, loc *time.Location) time.Duration {
	l := t.In(loc)
	return time.Duration(l.Hour())*time.Hour +
		time.Duration(l.Minute())*time.Minute +
		time.Duration(l.Second())*time.Second +
		time.Duration(l.Nanosecond())
}

// Duration converts d to an offset from midnight.
func (d TimeOfDay) Duration() time.Duration { return time.Duration(d) * time.Second }

func (d TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d)/3600, int(d)%3600/60, int(d)%60)
}

// Window restricts classification to [Start, End] in Loc, both ends inclusive.
// Bounds are whole seconds; the instant being tested is compared at full
// precision, so 11:30:00.5 is after an 11:30:00 end.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
	Loc   *time.Location

	// TradingDaysOnly also closes the window on weekends and exchange holidays.
	TradingDaysOnly bool
}

// NewWindow builds a window from clock strings and an IANA timezone name.
// An empty timezone means ET.
func NewWindow(start, end, tz string) (Window, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Window{}, err
	}
	if s > e {
		return Window{}, fmt.Errorf("%w: start %s after end %s", ErrInvalidWindow, s, e)
	}
	loc := ET
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return Window{}, fmt.Errorf("%w: timezone %q: %v", ErrInvalidWindow, tz, err)
		}
	}
	return Window{Start: s, End: e, Loc: loc}, nil
}

// IsOpen reports whether t falls inside the window.
func (w Window) IsOpen(t time.Time) bool {
	loc := w.Loc
	if loc == nil {
		loc = ET
	}
	if w.TradingDaysOnly && !IsTradingDay(t) {
		return false
	}
	c := clock(t, loc)
	return c >= w.Start.Duration() && c <= w.End.Duration()
}

func (w Window) String() string {
	loc := w.Loc
	if loc == nil {
		loc = ET
	}
	return fmt.Sprintf("%s–%s %s", w.Start, w.End, loc)
}
