// Package storage keeps a queryable SQLite mirror of the work log. The JSON
// journal stays the source of truth; the archive serves the dashboard when
// DATA_BACKEND=sqlite and absorbs the update stream from the worker.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"worklog/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Day implements journal.DayReader. A date with no rows yields an empty day.
func (r *SQLiteRepository) Day(ctx context.Context, dateKey string) (*core.DayLog, error) {
	day := core.NewDayLog()

	var holiday int64
	err := r.db.QueryRowContext(ctx,
		`SELECT is_holiday FROM day_logs WHERE date_key = ?`, dateKey,
	).Scan(&holiday)
	if err == sql.ErrNoRows {
		return day, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read day log: %w", err)
	}
	day.IsHoliday = holiday != 0

	rows, err := r.db.QueryContext(ctx,
		`SELECT slot, description FROM slot_entries WHERE date_key = ?`, dateKey)
	if err != nil {
		return nil, fmt.Errorf("read slot entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slot, description string
		if err := rows.Scan(&slot, &description); err != nil {
			return nil, fmt.Errorf("scan slot entry: %w", err)
		}
		day.Slots[core.SlotLabel(slot)] = description
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slot entries: %w", err)
	}

	return day, nil
}

// SetSlot implements journal.SlotWriter. The day row is created on first
// write; repeated writes to the same slot overwrite the description.
func (r *SQLiteRepository) SetSlot(ctx context.Context, dateKey string, slot core.SlotLabel, text string) error {
	if _, err := core.ParseDateKey(dateKey); err != nil {
		return err
	}
	if !core.ValidSlot(slot) {
		return fmt.Errorf("%w: %q", core.ErrInvalidSlot, slot)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO day_logs (date_key) VALUES (?)
		 ON CONFLICT (date_key) DO NOTHING`, dateKey); err != nil {
		return fmt.Errorf("upsert day log: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO slot_entries (date_key, slot, description) VALUES (?, ?, ?)
		 ON CONFLICT (date_key, slot) DO UPDATE
		 SET description = excluded.description, updated_at = CURRENT_TIMESTAMP`,
		dateKey, string(slot), text); err != nil {
		return fmt.Errorf("upsert slot entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit slot entry: %w", err)
	}

	slog.InfoContext(ctx, "Slot entry saved to SQLite",
		"date_key", dateKey,
		"slot", slot,
		"text_len", len(text))
	return nil
}

// SetHoliday implements journal.SlotWriter. Existing slot entries stay put.
func (r *SQLiteRepository) SetHoliday(ctx context.Context, dateKey string, flag bool) error {
	if _, err := core.ParseDateKey(dateKey); err != nil {
		return err
	}

	holiday := 0
	if flag {
		holiday = 1
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO day_logs (date_key, is_holiday) VALUES (?, ?)
		 ON CONFLICT (date_key) DO UPDATE
		 SET is_holiday = excluded.is_holiday, updated_at = CURRENT_TIMESTAMP`,
		dateKey, holiday); err != nil {
		return fmt.Errorf("upsert holiday flag: %w", err)
	}

	slog.InfoContext(ctx, "Holiday flag saved to SQLite",
		"date_key", dateKey,
		"is_holiday", flag)
	return nil
}

// MonthSummary implements journal.SummaryReader.
func (r *SQLiteRepository) MonthSummary(ctx context.Context, year, month int) (core.MonthlySummary, error) {
	if month < 1 || month > 12 {
		return core.MonthlySummary{}, fmt.Errorf("invalid month: %d", month)
	}
	book, err := r.loadPrefix(ctx, fmt.Sprintf("%04d-%02d", year, month))
	if err != nil {
		return core.MonthlySummary{}, err
	}
	return core.Summarize(book, year, month), nil
}

// Snapshot implements journal.Snapshotter.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (core.LogBook, error) {
	return r.loadPrefix(ctx, "")
}

func (r *SQLiteRepository) loadPrefix(ctx context.Context, prefix string) (core.LogBook, error) {
	book := core.LogBook{}

	rows, err := r.db.QueryContext(ctx,
		`SELECT date_key, is_holiday FROM day_logs WHERE date_key LIKE ? || '%'`, prefix)
	if err != nil {
		return nil, fmt.Errorf("read day logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dateKey string
		var holiday int64
		if err := rows.Scan(&dateKey, &holiday); err != nil {
			return nil, fmt.Errorf("scan day log: %w", err)
		}
		day := book.GetOrCreate(dateKey)
		day.IsHoliday = holiday != 0
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day logs: %w", err)
	}

	entries, err := r.db.QueryContext(ctx,
		`SELECT date_key, slot, description FROM slot_entries WHERE date_key LIKE ? || '%'`, prefix)
	if err != nil {
		return nil, fmt.Errorf("read slot entries: %w", err)
	}
	defer entries.Close()
	for entries.Next() {
		var dateKey, slot, description string
		if err := entries.Scan(&dateKey, &slot, &description); err != nil {
			return nil, fmt.Errorf("scan slot entry: %w", err)
		}
		book.GetOrCreate(dateKey).Slots[core.SlotLabel(slot)] = description
	}
	if err := entries.Err(); err != nil {
		return nil, fmt.Errorf("iterate slot entries: %w", err)
	}

	return book, nil
}
