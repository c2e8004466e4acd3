package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidSlot    = errors.New("invalid slot label")
	ErrInvalidDateKey = errors.New("invalid date key")
)

// DateKeyLayout is the calendar-date key format used throughout the store.
const DateKeyLayout = "2006-01-02"

// FormatDateKey renders t's calendar date as a store key.
func FormatDateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey validates and parses a YYYY-MM-DD store key.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateKey, key)
	}
	return t, nil
}

// DayLog is the complete record for one calendar date. The JSON field names
// are the wire contract shared with pre-existing data files.
type DayLog struct {
	Slots     map[SlotLabel]string `json:"time_slots"`
	IsHoliday bool                 `json:"is_holiday"`
}

// NewDayLog returns an empty, non-holiday day record.
func NewDayLog() *DayLog {
	return &DayLog{Slots: make(map[SlotLabel]string)}
}

// SetSlot stores text verbatim under slot. Labels outside TimeSlots are
// rejected so the invariant "Slots holds only known labels" holds at every
// write site.
func (d *DayLog) SetSlot(slot SlotLabel, text string) error {
	if !ValidSlot(slot) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	if d.Slots == nil {
		d.Slots = make(map[SlotLabel]string)
	}
	d.Slots[slot] = text
	return nil
}

// Completed reports whether the slot holds non-whitespace text.
func (d *DayLog) Completed(slot SlotLabel) bool {
	return strings.TrimSpace(d.Slots[slot]) != ""
}

// CompletedSlots counts slots with non-whitespace text.
func (d *DayLog) CompletedSlots() int {
	n := 0
	for _, text := range d.Slots {
		if strings.TrimSpace(text) != "" {
			n++
		}
	}
	return n
}

// CompletionRate is the completed share of the fixed slot list as a
// percentage in [0,100]. It is defined regardless of the holiday flag;
// callers decide whether to show it for holidays.
func (d *DayLog) CompletionRate() float64 {
	return 100 * float64(d.CompletedSlots()) / float64(len(TimeSlots))
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
func (d *DayLog) Clone() *DayLog {
	c := &DayLog{IsHoliday: d.IsHoliday, Slots: make(map[SlotLabel]string, len(d.Slots))}
	for k, v := range d.Slots {
		c.Slots[k] = v
	}
	return c
}

// LogBook maps date keys (YYYY-MM-DD) to day records. Iteration for
// aggregation always goes through SortedKeys; map order is meaningless.
type LogBook map[string]*DayLog

// GetOrCreate returns the day for key, inserting an empty record if absent.
// Existing records are never overwritten.
func (b LogBook) GetOrCreate(key string) *DayLog {
	if d, ok := b[key]; ok {
		return d
	}
	d := NewDayLog()
	b[key] = d
	return d
}

// SetSlotText writes text into the slot of the day at key, creating the day
// if needed. Unknown slot labels are rejected with ErrInvalidSlot before any
// mutation happens.
func (b LogBook) SetSlotText(key string, slot SlotLabel, text string) error {
	if !ValidSlot(slot) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return b.GetOrCreate(key).SetSlot(slot, text)
}

// SetHoliday flags the day at key, creating it if needed. Slot contents are
// left untouched: holiday is a display and aggregation modifier only.
func (b LogBook) SetHoliday(key string, flag bool) {
	b.GetOrCreate(key).IsHoliday = flag
}

// SortedKeys returns all date keys in ascending calendar order.
func (b LogBook) SortedKeys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the whole book.
func (b LogBook) Clone() LogBook {
	c := make(LogBook, len(b))
	for k, d := range b {
		c[k] = d.Clone()
	}
	return c
}
