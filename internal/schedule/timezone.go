package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClock decomposes an "HH:mm" string into minutes since midnight.
func ParseClock(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("schedule: invalid clock time %q", clock)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("schedule: invalid hour in %q: %w", clock, err)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("schedule: invalid minute in %q: %w", clock, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("schedule: clock time %q out of range", clock)
	}
	return hour*60 + minute, nil
}

// ConvertClockTime re-expresses an "HH:mm" wall-clock time from one IANA
// timezone in another, for the calendar day that ref falls on in fromTZ.
//
// The conversion resolves the calendar date of ref in fromTZ, constructs the
// wall-clock instant for that date and time, corrects any residual minute
// drift introduced by DST gaps, and renders the instant in toTZ. Only the
// clock portion is returned; a conversion can cross a day boundary and the
// caller must detect that itself if it matters.
func ConvertClockTime(clock string, ref time.Time, fromTZ, toTZ string) (string, error) {
	target, err := ParseClock(clock)
	if err != nil {
		return "", err
	}

	from, err := time.LoadLocation(fromTZ)
	if err != nil {
		return "", fmt.Errorf("schedule: load source timezone: %w", err)
	}
	to, err := time.LoadLocation(toTZ)
	if err != nil {
		return "", fmt.Errorf("schedule: load target timezone: %w", err)
	}

	year, month, day := ref.In(from).Date()
	instant := time.Date(year, month, day, target/60, target%60, 0, 0, from)

	// A DST gap makes time.Date normalize to a different wall clock; shift
	// along the time axis by the residual so the rendered instant matches
	// the requested clock time.
	rendered := instant.In(from)
	got := rendered.Hour()*60 + rendered.Minute()
	if residual := target - got; residual != 0 {
		instant = instant.Add(time.Duration(residual) * time.Minute)
	}

	return instant.In(to).Format("15:04"), nil
}
