package core

import (
	"fmt"
	"time"
)

// SlotLabel identifies one fixed tracking bucket of the working day.
type SlotLabel string

// TimeSlots is the fixed ordered sequence of trackable buckets: hourly from
// 2:00 PM to 11:00 PM plus a trailing half-hour bucket. It is system-wide
// configuration, not user data, and must never be mutated.
var TimeSlots = []SlotLabel{
	"2:00 PM", "3:00 PM", "4:00 PM", "5:00 PM", "6:00 PM",
	"7:00 PM", "8:00 PM", "9:00 PM", "10:00 PM", "11:00 PM", "11:30 PM",
}

// HalfSlot is the only bucket worth half an hour.
const HalfSlot SlotLabel = "11:30 PM"

// DefaultOffsetSeconds is the fixed local offset of the tracked day (UTC+05:30).
const DefaultOffsetSeconds = 5*3600 + 30*60

// DefaultLocation returns the fixed zone the reference schedule runs in.
func DefaultLocation() *time.Location {
	return time.FixedZone("UTC+05:30", DefaultOffsetSeconds)
}

// ValidSlot reports whether s is a member of TimeSlots.
func ValidSlot(s SlotLabel) bool {
	for _, v := range TimeSlots {
		if v == s {
			return true
		}
	}
	return false
}

// Hours returns the credit a completed slot contributes to productive hours.
func (s SlotLabel) Hours() float64 {
	if s == HalfSlot {
		return 0.5
	}
	return 1.0
}

// CurrentSlot returns the slot whose bucket contains now, interpreted in
// now's own location. The window is 14:00 through 23:30 inclusive.
//
// Hours 14-22 map to their hourly label. Hour 23 is handled separately:
// minute 30 is "11:30 PM", minutes 0-29 are "11:00 PM", and later minutes
// fall outside the window. A generic hour-to-label branch cannot reach
// "11:00 PM" (that needs hour 23), so the split is deliberate.
func CurrentSlot(now time.Time) (SlotLabel, bool) {
	hour, minute := now.Hour(), now.Minute()
	switch {
	case hour >= 14 && hour <= 22:
		return SlotLabel(fmt.Sprintf("%d:00 PM", hour-12)), true
	case hour == 23 && minute < 30:
		return "11:00 PM", true
	case hour == 23 && minute == 30:
		return HalfSlot, true
	default:
		return "", false
	}
}

// IsWorkHours reports whether now falls inside the trackable window.
func IsWorkHours(now time.Time) bool {
	_, ok := CurrentSlot(now)
	return ok
}
