package journal

import (
	"context"
	"errors"

	"worklog/internal/core"
)

// ErrMalformedData marks a store file that exists but does not parse as the
// expected shape. Loading stops rather than silently discarding data.
var ErrMalformedData = errors.New("malformed work log data")

// Ports consumed by the presentation layers (HTTP dashboard, CLI, worker).
type (
	// DayReader returns the record for one calendar date. A missing date
	// yields an empty, non-holiday day, never an error.
	DayReader interface {
		Day(ctx context.Context, dateKey string) (*core.DayLog, error)
	}

	// SlotWriter mutates day records. Every successful mutation is durably
	// flushed before the call returns.
	SlotWriter interface {
		SetSlot(ctx context.Context, dateKey string, slot core.SlotLabel, text string) error
		SetHoliday(ctx context.Context, dateKey string, flag bool) error
	}

	// SummaryReader computes monthly aggregates on demand.
	SummaryReader interface {
		MonthSummary(ctx context.Context, year, month int) (core.MonthlySummary, error)
	}

	// Snapshotter returns a deep copy of the whole book, used by the archive
	// worker for reconciliation.
	Snapshotter interface {
		Snapshot(ctx context.Context) (core.LogBook, error)
	}
)

// UpdatePublisher fans mutations out to interested consumers (the archive
// worker). Implementations must tolerate being nil-checked and skipped.
type UpdatePublisher interface {
	PublishSlotUpdate(ctx context.Context, dateKey string, slot core.SlotLabel, text string) error
	PublishHolidayUpdate(ctx context.Context, dateKey string, flag bool) error
}
