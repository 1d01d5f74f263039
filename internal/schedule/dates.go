// Package schedule implements the calendar math and timezone-aware
// availability computation behind the meeting-scheduling widget.
package schedule

import (
	"fmt"
	"time"
)

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// FirstWeekdayOfMonth returns the weekday of the first day of t's month,
// with Monday=0 through Sunday=6 (calendar grids start the week on Monday).
func FirstWeekdayOfMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	wd := int(first.Weekday()) // Sunday=0
	if wd == 0 {
		return 6
	}
	return wd - 1
}

// FormatCalendarDate renders t's wall-clock date as YYYY-MM-DD. The caller is
// responsible for having t in the location whose calendar day is meant.
func FormatCalendarDate(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// IsSelectable reports whether a date can be picked in the booking calendar:
// today or later, and a weekday. Weekends are excluded as a fixed business
// policy regardless of the agent's timezone.
func IsSelectable(t, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if t.Before(today) {
		return false
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsBooked reports whether t's calendar date appears in bookedDates
// (YYYY-MM-DD strings in the agent's timezone).
func IsBooked(t time.Time, bookedDates []string) bool {
	dateStr := FormatCalendarDate(t)
	for _, d := range bookedDates {
		if d == dateStr {
			return true
		}
	}
	return false
}
