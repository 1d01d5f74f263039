package schedule

import (
	"testing"
	"time"
)

func TestSortSlots(t *testing.T) {
	got := SortSlots([]string{"09:30", "09:05", "17:00"})
	want := []string{"09:05", "09:30", "17:00"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortSlots order mismatch: got %v, want %v", got, want)
		}
	}
}

func TestSortSlotsMixedWidths(t *testing.T) {
	// "9:05" vs "10:00": lexicographic comparison would order these wrong.
	got := SortSlots([]string{"10:00", "9:05"})
	if got[0] != "9:05" || got[1] != "10:00" {
		t.Fatalf("expected minutes-based ordering, got %v", got)
	}
}

func TestSortSlotsDoesNotMutateInput(t *testing.T) {
	in := []string{"12:00", "08:00"}
	SortSlots(in)
	if in[0] != "12:00" {
		t.Error("SortSlots mutated its input")
	}
}

func TestComputeSlotsCount(t *testing.T) {
	slots, err := ComputeSlots("UTC", "UTC", time.Date(2026, time.June, 17, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 09:00..17:00 inclusive minus the 14:00 lunch hour.
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d: %v", len(slots), slots)
	}
	if slots[0] != "09:00" || slots[len(slots)-1] != "17:00" {
		t.Errorf("unexpected slot boundaries: %v", slots)
	}
}

func TestComputeSlotsLunchExcluded(t *testing.T) {
	ref := time.Date(2026, time.June, 17, 0, 0, 0, 0, time.UTC)

	pairs := [][2]string{
		{"UTC", "UTC"},
		{"America/New_York", "Asia/Kuala_Lumpur"},
		{"Europe/Berlin", "UTC"},
		{"Asia/Kuala_Lumpur", "America/Los_Angeles"},
	}
	for _, pair := range pairs {
		slots, err := ComputeSlots(pair[0], pair[1], ref)
		if err != nil {
			t.Fatalf("ComputeSlots(%v): %v", pair, err)
		}
		// The excluded hour is agent-local 14:00; verify by converting it and
		// asserting the converted value is absent.
		lunch, err := ConvertClockTime("14:00", ref, pair[0], pair[1])
		if err != nil {
			t.Fatalf("convert lunch hour: %v", err)
		}
		for _, s := range slots {
			if s == lunch {
				t.Errorf("agent-local 14:00 (%s in %s) present in slots %v for pair %v", lunch, pair[1], slots, pair)
			}
		}
	}
}

func TestComputeSlotsConvertsToCustomerTimezone(t *testing.T) {
	ref := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)

	// EST is UTC-5; agent-local 09:00 renders as 14:00 UTC.
	slots, err := ComputeSlots("America/New_York", "UTC", ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots[0] != "14:00" {
		t.Errorf("expected first slot 14:00 UTC, got %s", slots[0])
	}
}

func TestComputeSlotsBadZone(t *testing.T) {
	if _, err := ComputeSlots("Not/AZone", "UTC", time.Now()); err == nil {
		t.Error("expected error for unknown agent zone")
	}
}
