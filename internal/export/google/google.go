// Package google appends work log entries and monthly summaries to a Google
// spreadsheet. The export is best-effort: the journal and archive never wait
// on it.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"worklog/internal/core"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logSheet      string
	summarySheet  string
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: GOOGLE_LOG_SHEET_NAME (default "Work Log"),
// GOOGLE_SUMMARY_SHEET_NAME (default "Summary"). Both get the current year
// prefixed, matching the one-tab-per-year spreadsheet layout.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	logBase := strings.TrimSpace(os.Getenv("GOOGLE_LOG_SHEET_NAME"))
	if logBase == "" {
		logBase = "Work Log"
	}
	summaryBase := strings.TrimSpace(os.Getenv("GOOGLE_SUMMARY_SHEET_NAME"))
	if summaryBase == "" {
		summaryBase = "Summary"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	currentYear := time.Now().Year()
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logSheet:      yearPrefixedName(logBase, currentYear),
		summarySheet:  yearPrefixedName(summaryBase, currentYear),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// AppendSlotEntry writes one slot entry as a new row on the log sheet:
// Date, Slot, Hours, Work Area, Description.
func (c *Client) AppendSlotEntry(ctx context.Context, dateKey string, slot core.SlotLabel, text string, hours float64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	// Find the next empty row from the sheet dimensions.
	rng := fmt.Sprintf("%s!A:A", c.logSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get sheet dimensions for %s: %w", c.logSheet, err)
	}
	nextRow := len(resp.Values) + 1

	area := core.ClassifyWorkArea(text)
	dataRange := fmt.Sprintf("%s!A%d:E%d", c.logSheet, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{{dateKey, string(slot), hours, area, text}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", dataRange, err)
	}

	slog.InfoContext(ctx, "Appended slot entry to spreadsheet",
		"date_key", dateKey,
		"slot", slot,
		"row", nextRow)
	return nil
}

// WriteMonthlySummary writes the month's aggregate into a fixed row on the
// summary sheet, one row per month below a header row.
func (c *Client) WriteMonthlySummary(ctx context.Context, summary core.MonthlySummary) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if summary.Month < 1 || summary.Month > 12 {
		return fmt.Errorf("invalid month: %d", summary.Month)
	}

	row := summary.Month + 1
	dataRange := fmt.Sprintf("%s!A%d:G%d", c.summarySheet, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{{
		summary.Year,
		summary.Month,
		summary.TotalDays,
		summary.WorkingDays,
		summary.HolidayDays,
		summary.ProductiveHours,
		formatWorkAreas(summary.WorkAreas),
	}}}

	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", dataRange, err)
	}

	slog.InfoContext(ctx, "Wrote monthly summary to spreadsheet",
		"year", summary.Year,
		"month", summary.Month,
		"row", row)
	return nil
}

// formatWorkAreas renders area counts as "Backend: 4, Meetings: 2", sorted by
// area name so repeated exports produce identical cells.
func formatWorkAreas(areas map[string]int) string {
	names := make([]string, 0, len(areas))
	for area := range areas {
		names = append(names, area)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %d", name, areas[name]))
	}
	return strings.Join(parts, ", ")
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
