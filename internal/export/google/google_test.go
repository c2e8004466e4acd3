package google

import (
	"context"
	"os"
	"strings"
	"testing"

	"worklog/internal/core"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Work Log", 2026, "2026 Work Log"},
		{"Summary", 2026, "2026 Summary"},
		{"2025 Work Log", 2026, "2025 Work Log"}, // already prefixed, keep as-is
		{"  Work Log  ", 2026, "2026 Work Log"},
		{"", 2026, ""},
		{"1234", 2026, "2026 1234"}, // four digits but no following space
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestFormatWorkAreas(t *testing.T) {
	got := formatWorkAreas(map[string]int{
		"Meetings": 2,
		"Backend":  4,
		"Other":    1,
	})
	want := "Backend: 4, Meetings: 2, Other: 1"
	if got != want {
		t.Errorf("formatWorkAreas = %q, want %q", got, want)
	}

	if got := formatWorkAreas(nil); got != "" {
		t.Errorf("formatWorkAreas(nil) = %q, want empty", got)
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	old := os.Getenv("GOOGLE_SPREADSHEET_ID")
	os.Unsetenv("GOOGLE_SPREADSHEET_ID")
	defer func() {
		if old != "" {
			os.Setenv("GOOGLE_SPREADSHEET_ID", old)
		}
	}()

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Errorf("NewFromEnv without spreadsheet ID: err = %v", err)
	}
}

func TestClient_RequiresService(t *testing.T) {
	c := &Client{spreadsheetID: "abc", logSheet: "2026 Work Log", summarySheet: "2026 Summary"}

	if err := c.AppendSlotEntry(context.Background(), "2026-08-20", "2:00 PM", "x", 1.0); err == nil {
		t.Error("AppendSlotEntry should fail without an initialized service")
	}
	if err := c.WriteMonthlySummary(context.Background(), core.MonthlySummary{Year: 2026, Month: 8}); err == nil {
		t.Error("WriteMonthlySummary should fail without an initialized service")
	}
}
