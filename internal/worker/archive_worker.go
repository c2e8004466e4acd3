// Package worker mirrors the JSON journal into the SQLite archive. It applies
// update messages as they arrive and periodically reconciles against a full
// journal snapshot to recover anything a lost message left behind.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"worklog/internal/core"
	"worklog/internal/event"
	"worklog/internal/journal"
)

// Archive is the slice of the SQLite repository the worker writes to.
type Archive interface {
	SetSlot(ctx context.Context, dateKey string, slot core.SlotLabel, text string) error
	SetHoliday(ctx context.Context, dateKey string, flag bool) error
	Snapshot(ctx context.Context) (core.LogBook, error)
}

// Exporter pushes entries to an external spreadsheet. Optional.
type Exporter interface {
	AppendSlotEntry(ctx context.Context, dateKey string, slot core.SlotLabel, text string, hours float64) error
	WriteMonthlySummary(ctx context.Context, summary core.MonthlySummary) error
}

// ArchiveWorker consumes journal updates and keeps the archive in step.
type ArchiveWorker struct {
	journal  journal.Snapshotter
	archive  Archive
	exporter Exporter
}

func NewArchiveWorker(j journal.Snapshotter, archive Archive, exporter Exporter) *ArchiveWorker {
	return &ArchiveWorker{
		journal:  j,
		archive:  archive,
		exporter: exporter,
	}
}

// HandleSlotUpdate applies one slot message to the archive. Export failures
// are logged but do not fail the message, the archive write is what counts.
func (w *ArchiveWorker) HandleSlotUpdate(ctx context.Context, msg *event.SlotUpdateMessage) error {
	slog.InfoContext(ctx, "Processing slot update",
		"message_id", msg.ID,
		"date_key", msg.DateKey,
		"slot", msg.Slot)

	if err := w.archive.SetSlot(ctx, msg.DateKey, msg.Slot, msg.Text); err != nil {
		return fmt.Errorf("archive slot update: %w", err)
	}

	if w.exporter != nil {
		if err := w.exporter.AppendSlotEntry(ctx, msg.DateKey, msg.Slot, msg.Text, msg.Slot.Hours()); err != nil {
			slog.ErrorContext(ctx, "Failed to export slot entry",
				"message_id", msg.ID,
				"date_key", msg.DateKey,
				"slot", msg.Slot,
				"error", err)
		}
	}

	return nil
}

// HandleHolidayUpdate applies one holiday message to the archive.
func (w *ArchiveWorker) HandleHolidayUpdate(ctx context.Context, msg *event.HolidayUpdateMessage) error {
	slog.InfoContext(ctx, "Processing holiday update",
		"message_id", msg.ID,
		"date_key", msg.DateKey,
		"is_holiday", msg.IsHoliday)

	if err := w.archive.SetHoliday(ctx, msg.DateKey, msg.IsHoliday); err != nil {
		return fmt.Errorf("archive holiday update: %w", err)
	}
	return nil
}

// Reconcile replays the full journal snapshot into the archive, writing only
// entries the archive is missing or holds stale. This is the backup mechanism
// for lost messages and worker downtime.
func (w *ArchiveWorker) Reconcile(ctx context.Context) error {
	want, err := w.journal.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot journal: %w", err)
	}
	have, err := w.archive.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot archive: %w", err)
	}

	var slotWrites, holidayWrites int
	for _, dateKey := range want.SortedKeys() {
		day := want[dateKey]
		archived, ok := have[dateKey]

		for slot, text := range day.Slots {
			if ok && archived.Slots[slot] == text {
				continue
			}
			if err := w.archive.SetSlot(ctx, dateKey, slot, text); err != nil {
				return fmt.Errorf("reconcile slot %s %s: %w", dateKey, slot, err)
			}
			slotWrites++
		}

		if !ok && !day.IsHoliday {
			continue
		}
		if !ok || archived.IsHoliday != day.IsHoliday {
			if err := w.archive.SetHoliday(ctx, dateKey, day.IsHoliday); err != nil {
				return fmt.Errorf("reconcile holiday %s: %w", dateKey, err)
			}
			holidayWrites++
		}
	}

	if slotWrites > 0 || holidayWrites > 0 {
		slog.InfoContext(ctx, "Reconciliation applied missing updates",
			"slot_writes", slotWrites,
			"holiday_writes", holidayWrites)
	} else {
		slog.DebugContext(ctx, "Reconciliation found archive up to date",
			"days", len(want))
	}
	return nil
}

// RunReconcileLoop reconciles once at startup, then on every tick until ctx is
// done.
func (w *ArchiveWorker) RunReconcileLoop(ctx context.Context, interval time.Duration) error {
	if err := w.Reconcile(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup reconciliation failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic reconciliation failed", "error", err)
			}
		}
	}
}

// ExportMonthlySummary recomputes the month from the journal snapshot and
// pushes it to the exporter.
func (w *ArchiveWorker) ExportMonthlySummary(ctx context.Context, year, month int) error {
	if w.exporter == nil {
		return nil
	}
	book, err := w.journal.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot journal: %w", err)
	}
	summary := core.Summarize(book, year, month)
	if err := w.exporter.WriteMonthlySummary(ctx, summary); err != nil {
		return fmt.Errorf("export monthly summary: %w", err)
	}

	slog.InfoContext(ctx, "Exported monthly summary",
		"year", year,
		"month", month,
		"productive_hours", summary.ProductiveHours)
	return nil
}
