// Package slot models the lounge's bookable day: a grid of 30-minute slots
// between opening and closing, and the half-open interval arithmetic used by
// every capacity and availability check.
package slot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
)

// Clock is a time of day expressed in minutes after midnight.
type Clock int

const (
	Step = 30 // grid granularity in minutes

	Open      Clock = 9 * 60       // 09:00
	Close     Clock = 24 * 60      // midnight
	LastStart Clock = 21*60 + 30   // last slot offered on the public grid

	DateFormat = "2006-01-02"
	TimeFormat = "15:04"
)

// Durations lists the booking lengths the lounge sells, in minutes.
var Durations = []int{30, 60, 90, 120}

// ParseClock accepts "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return Clock(h*60 + m), nil
}

// String renders the clock as HH:MM. Midnight at the end of the day is "24:00".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns the clock shifted by the given number of minutes.
func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

// MarshalText lets clocks appear as "HH:MM" in JSON payloads.
func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText parses "HH:MM" or "HH:MM:SS".
func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Overlaps reports whether [startA, startA+durA) and [startB, startB+durB)
// intersect. Ranges that only touch do not overlap.
func Overlaps(startA Clock, durA int, startB Clock, durB int) bool {
	return startA < startB.Add(durB) && startB < startA.Add(durA)
}

// Contains reports whether t falls inside [start, start+duration).
func Contains(start Clock, duration int, t Clock) bool {
	return start <= t && t < start.Add(duration)
}

// AffectedSlots returns every grid point in [start, start+duration).
func AffectedSlots(start Clock, duration int) []Clock {
	out := make([]Clock, 0, duration/Step+1)
	first := start - start%Step
	for t := first; t < start.Add(duration); t += Step {
		out = append(out, t)
	}
	return out
}

// DaySlots returns the public grid, Open through LastStart inclusive.
func DaySlots() []Clock {
	out := make([]Clock, 0, int(LastStart-Open)/Step+1)
	for t := Open; t <= LastStart; t += Step {
		out = append(out, t)
	}
	return out
}

// ValidDuration reports whether d is one of Durations.
func ValidDuration(d int) bool {
	for _, v := range Durations {
		if v == d {
			return true
		}
	}
	return false
}

// ValidateRange checks a requested start and duration against the grid.
func ValidateRange(start Clock, duration int) error {
	if !ValidDuration(duration) {
		return apperr.Invalid("duration_minutes", "must be one of 30, 60, 90 or 120 minutes")
	}
	if start%Step != 0 {
		return apperr.Invalid("start_time", "must align to a 30-minute slot")
	}
	if start < Open {
		return apperr.Invalid("start_time", "the lounge opens at %s", Open)
	}
	if start.Add(duration) > Close {
		return apperr.Invalid("start_time", "a %d-minute booking must start by %s", duration, Close.Add(-duration))
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperr.Invalid("date", "must be formatted as YYYY-MM-DD")
	}
	return d, nil
}
