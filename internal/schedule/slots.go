package schedule

import (
	"sort"
	"time"
)

// Working-hours policy: hourly slots from 09:00 through 17:00 in the agent's
// timezone, with the 14:00 lunch hour excluded. Fixed for all agents.
const (
	workdayStartHour = 9
	workdayEndHour   = 17
	lunchHour        = 14
)

// ComputeSlots derives a typical day's bookable slots for an agent, expressed
// in the customer's timezone. date is interpreted as "this calendar day in
// the agent's timezone"; when zero, today is used. Used as the fallback when
// the authoritative availability endpoint is unreachable or no date has been
// chosen yet.
func ComputeSlots(agentTZ, customerTZ string, date time.Time) ([]string, error) {
	if date.IsZero() {
		date = time.Now()
	}

	slots := make([]string, 0, workdayEndHour-workdayStartHour)
	for hour := workdayStartHour; hour <= workdayEndHour; hour++ {
		if hour == lunchHour {
			continue
		}
		clock, err := ConvertClockTime(twoDigit(hour)+":00", date, agentTZ, customerTZ)
		if err != nil {
			return nil, err
		}
		slots = append(slots, clock)
	}
	return slots, nil
}

// SortSlots orders "HH:mm" slots by minutes since midnight, ascending. The
// sort decomposes each slot into integer minutes; raw string comparison is
// wrong for mixed-width values. Unparsable entries sort last.
func SortSlots(slots []string) []string {
	out := make([]string, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		return slotMinutes(out[i]) < slotMinutes(out[j])
	})
	return out
}

func slotMinutes(s string) int {
	m, err := ParseClock(s)
	if err != nil {
		return 24 * 60
	}
	return m
}

func twoDigit(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
