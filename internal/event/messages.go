package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"worklog/internal/core"
)

// Message types carried in the AMQP Type property, used by consumers to
// dispatch without sniffing the body.
const (
	TypeSlotUpdate    = "slot_update"
	TypeHolidayUpdate = "holiday_update"
)

// SlotUpdateMessage announces that one slot of one day changed. It carries the
// full new text so the archive worker can apply it without reading the
// journal back.
type SlotUpdateMessage struct {
	ID        string         `json:"id"`
	DateKey   string         `json:"date_key"`
	Slot      core.SlotLabel `json:"slot"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewSlotUpdateMessage creates a slot update message with a fresh ID
func NewSlotUpdateMessage(dateKey string, slot core.SlotLabel, text string) *SlotUpdateMessage {
	return &SlotUpdateMessage{
		ID:        uuid.NewString(),
		DateKey:   dateKey,
		Slot:      slot,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SlotUpdateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SlotUpdateMessageFromJSON creates a message from JSON bytes
func SlotUpdateMessageFromJSON(data []byte) (*SlotUpdateMessage, error) {
	var msg SlotUpdateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// HolidayUpdateMessage announces that a day's holiday flag changed.
type HolidayUpdateMessage struct {
	ID        string    `json:"id"`
	DateKey   string    `json:"date_key"`
	IsHoliday bool      `json:"is_holiday"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHolidayUpdateMessage creates a holiday update message with a fresh ID
func NewHolidayUpdateMessage(dateKey string, flag bool) *HolidayUpdateMessage {
	return &HolidayUpdateMessage{
		ID:        uuid.NewString(),
		DateKey:   dateKey,
		IsHoliday: flag,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *HolidayUpdateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// HolidayUpdateMessageFromJSON creates a message from JSON bytes
func HolidayUpdateMessageFromJSON(data []byte) (*HolidayUpdateMessage, error) {
	var msg HolidayUpdateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
