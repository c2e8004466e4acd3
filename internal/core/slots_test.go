package core

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 20, hour, minute, 0, 0, DefaultLocation())
}

func TestCurrentSlotBoundaries(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         SlotLabel
		ok           bool
	}{
		{14, 0, "2:00 PM", true},
		{14, 59, "2:00 PM", true},
		{15, 0, "3:00 PM", true},
		{22, 0, "10:00 PM", true},
		{22, 59, "10:00 PM", true},
		{23, 0, "11:00 PM", true},
		{23, 29, "11:00 PM", true},
		{23, 30, "11:30 PM", true},
		{23, 31, "", false},
		{13, 59, "", false},
		{0, 0, "", false},
		{9, 30, "", false},
	}
	for _, tt := range tests {
		got, ok := CurrentSlot(at(tt.hour, tt.minute))
		if ok != tt.ok || got != tt.want {
			t.Errorf("CurrentSlot(%02d:%02d) = (%q, %v), want (%q, %v)",
				tt.hour, tt.minute, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCurrentSlotAgreesWithIsWorkHours(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		for minute := 0; minute < 60; minute++ {
			now := at(hour, minute)
			_, ok := CurrentSlot(now)
			if ok != IsWorkHours(now) {
				t.Fatalf("disagreement at %02d:%02d: CurrentSlot ok=%v IsWorkHours=%v",
					hour, minute, ok, IsWorkHours(now))
			}
		}
	}
}

func TestCurrentSlotAlwaysValid(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		for minute := 0; minute < 60; minute++ {
			if slot, ok := CurrentSlot(at(hour, minute)); ok && !ValidSlot(slot) {
				t.Fatalf("CurrentSlot(%02d:%02d) produced unknown label %q", hour, minute, slot)
			}
		}
	}
}

func TestSlotHours(t *testing.T) {
	if h := SlotLabel("2:00 PM").Hours(); h != 1.0 {
		t.Errorf("hourly slot Hours() = %v, want 1.0", h)
	}
	if h := HalfSlot.Hours(); h != 0.5 {
		t.Errorf("half slot Hours() = %v, want 0.5", h)
	}
}

func TestValidSlot(t *testing.T) {
	for _, s := range TimeSlots {
		if !ValidSlot(s) {
			t.Errorf("ValidSlot(%q) = false for fixed slot", s)
		}
	}
	for _, s := range []SlotLabel{"1:00 PM", "2:00 AM", "11:45 PM", ""} {
		if ValidSlot(s) {
			t.Errorf("ValidSlot(%q) = true, want false", s)
		}
	}
}
