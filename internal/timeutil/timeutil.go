// Package timeutil is the single source of truth for clock-string arithmetic.
// Lesson slots are stored as "HH:MM" strings plus a duration in minutes;
// every end-time and overlap computation in the codebase goes through here.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// ToMinutes converts a zero-padded or plain "HH:MM" clock string to minutes
// since midnight. The whole string must be a clock value; trailing characters
// are rejected, not ignored. Callers must not pass empty values.
func ToMinutes(clock string) (int, error) {
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return 0, fmt.Errorf("malformed clock time %q", clock)
	}
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil {
		return 0, fmt.Errorf("malformed clock time %q", clock)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", clock)
	}
	return h*60 + m, nil
}

// FromMinutes converts minutes since midnight back to a zero-padded "HH:MM"
// string, wrapping past midnight modulo 24h.
func FromMinutes(mins int) string {
	mins = ((mins % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// AddDuration returns the end clock time for a lesson starting at start and
// lasting durationMin minutes. Lessons crossing midnight are not supported;
// callers validate start+duration stays within the day before persisting.
func AddDuration(start string, durationMin int) (string, error) {
	mins, err := ToMinutes(start)
	if err != nil {
		return "", err
	}
	return FromMinutes(mins + durationMin), nil
}

// CrossesMidnight reports whether start+duration runs past the end of the
// calendar day.
func CrossesMidnight(start string, durationMin int) bool {
	mins, err := ToMinutes(start)
	if err != nil {
		return false
	}
	return mins+durationMin > minutesPerDay
}

// Overlaps reports whether [startA, endA) and [startB, endB) intersect, all
// in minutes since midnight. Touching endpoints do not count as overlap.
func Overlaps(startA, endA, startB, endB int) bool {
	return startA < endB && startB < endA
}

// FormatForDisplay renders a 24h "HH:MM" clock string as "h:mm AM/PM".
// Values already carrying an AM/PM marker pass through unchanged.
func FormatForDisplay(clock string) string {
	upper := strings.ToUpper(clock)
	if strings.Contains(upper, "AM") || strings.Contains(upper, "PM") {
		return clock
	}
	mins, err := ToMinutes(clock)
	if err != nil {
		return clock
	}
	h, m := mins/60, mins%60
	suffix := "AM"
	switch {
	case h == 0:
		h = 12
	case h == 12:
		suffix = "PM"
	case h > 12:
		h -= 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", h, m, suffix)
}

// CombineDateClock anchors a clock string onto the calendar date of day,
// in day's location.
func CombineDateClock(day time.Time, clock string) (time.Time, error) {
	mins, err := ToMinutes(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, day.Location()), nil
}

// ClockOf extracts the "HH:MM" clock string from a timestamp.
func ClockOf(t time.Time) string {
	return t.Format("15:04")
}

// DateOf extracts the "YYYY-MM-DD" calendar date from a timestamp.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
