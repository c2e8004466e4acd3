// Package jsonfile persists the work log as a single JSON document, the wire
// contract shared with any pre-existing data file. The whole book is loaded
// at open and rewritten on every mutation.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"worklog/internal/core"
	"worklog/internal/journal"
)

type Store struct {
	mu   sync.Mutex
	path string
	book core.LogBook
}

// Open loads the store at path. An absent file yields an empty book; a file
// that fails to parse is a fatal error so existing data is never discarded.
func Open(path string) (*Store, error) {
	s := &Store{path: path, book: core.LogBook{}}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read work log file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.book); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", journal.ErrMalformedData, path, err)
	}
	for key, day := range s.book {
		if _, err := core.ParseDateKey(key); err != nil {
			return nil, fmt.Errorf("%w: %s: bad date key %q", journal.ErrMalformedData, path, key)
		}
		for slot := range day.Slots {
			if !core.ValidSlot(slot) {
				return nil, fmt.Errorf("%w: %s: unknown slot %q under %s", journal.ErrMalformedData, path, slot, key)
			}
		}
	}
	return s, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Day returns a copy of the record for dateKey, or an empty day when absent.
func (s *Store) Day(_ context.Context, dateKey string) (*core.DayLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if day, ok := s.book[dateKey]; ok {
		return day.Clone(), nil
	}
	return core.NewDayLog(), nil
}

// SetSlot writes text into the slot, creating the day if absent, and flushes
// the whole book to disk before returning.
func (s *Store) SetSlot(_ context.Context, dateKey string, slot core.SlotLabel, text string) error {
	if _, err := core.ParseDateKey(dateKey); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.book.SetSlotText(dateKey, slot, text); err != nil {
		return err
	}
	return s.saveLocked()
}

// SetHoliday flags the day, creating it if absent, and flushes to disk.
func (s *Store) SetHoliday(_ context.Context, dateKey string, flag bool) error {
	if _, err := core.ParseDateKey(dateKey); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book.SetHoliday(dateKey, flag)
	return s.saveLocked()
}

// MonthSummary aggregates the month from the in-memory book.
func (s *Store) MonthSummary(_ context.Context, year, month int) (core.MonthlySummary, error) {
	if month < 1 || month > 12 {
		return core.MonthlySummary{}, fmt.Errorf("invalid month: %d", month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Summarize(s.book, year, month), nil
}

// Snapshot returns a deep copy of the whole book.
func (s *Store) Snapshot(_ context.Context) (core.LogBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Clone(), nil
}

// saveLocked rewrites the whole file via a temp file and rename so a failed
// save can never leave a half-written store behind. Callers hold s.mu.
func (s *Store) saveLocked() error {
	raw, err := json.MarshalIndent(s.book, "", "  ")
	if err != nil {
		return fmt.Errorf("encode work log: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".worklog-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace work log file: %w", err)
	}
	return nil
}
