package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCtl executes the root command against a throwaway store and returns the
// combined output.
func runCtl(t *testing.T, dataFile string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--data", dataFile))
	err := cmd.Execute()
	return out.String(), err
}

func tempStorePath(t *testing.T) string {
	t.Helper()
	// Point HOME away from any real ~/.worklogctl.yaml.
	t.Setenv("HOME", t.TempDir())
	return filepath.Join(t.TempDir(), "work_logs.json")
}

func TestLogAndShow(t *testing.T) {
	dataFile := tempStorePath(t)

	out, err := runCtl(t, dataFile, "log", "--date", "2026-04-01", "--slot", "4:00 PM", "Fixed", "the", "build")
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if !strings.Contains(out, "Fixed the build") {
		t.Errorf("log output = %q", out)
	}

	out, err = runCtl(t, dataFile, "show", "2026-04-01")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "4:00 PM") || !strings.Contains(out, "Fixed the build") {
		t.Errorf("show output = %q", out)
	}
	if !strings.Contains(out, "Completed 1/11") {
		t.Errorf("show output missing completion line: %q", out)
	}
}

func TestLogRejectsUnknownSlot(t *testing.T) {
	dataFile := tempStorePath(t)

	if _, err := runCtl(t, dataFile, "log", "--date", "2026-04-01", "--slot", "1:00 PM", "x"); err == nil {
		t.Fatal("expected error for unknown slot")
	}
}

func TestHolidayToggleCommand(t *testing.T) {
	dataFile := tempStorePath(t)

	out, err := runCtl(t, dataFile, "holiday", "on", "--date", "2026-04-02")
	if err != nil {
		t.Fatalf("holiday on: %v", err)
	}
	if !strings.Contains(out, "holiday") {
		t.Errorf("output = %q", out)
	}

	out, err = runCtl(t, dataFile, "show", "2026-04-02")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "(holiday)") {
		t.Errorf("show output missing holiday marker: %q", out)
	}

	if _, err := runCtl(t, dataFile, "holiday", "off", "--date", "2026-04-02"); err != nil {
		t.Fatalf("holiday off: %v", err)
	}
	out, _ = runCtl(t, dataFile, "show", "2026-04-02")
	if strings.Contains(out, "(holiday)") {
		t.Errorf("holiday marker still present: %q", out)
	}
}

func TestSummaryCommand(t *testing.T) {
	dataFile := tempStorePath(t)

	steps := [][]string{
		{"log", "--date", "2026-04-01", "--slot", "2:00 PM", "Backend refactor"},
		{"log", "--date", "2026-04-01", "--slot", "11:30 PM", "Wrap up"},
		{"holiday", "on", "--date", "2026-04-03"},
	}
	for _, args := range steps {
		if _, err := runCtl(t, dataFile, args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	out, err := runCtl(t, dataFile, "summary", "--year", "2026", "--month", "4")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, want := range []string{"April 2026", "Days logged:      2", "Holidays:         1", "Productive hours: 1.5", "Backend"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestNowCommand(t *testing.T) {
	dataFile := tempStorePath(t)

	out, err := runCtl(t, dataFile, "now")
	if err != nil {
		t.Fatalf("now: %v", err)
	}
	if !strings.Contains(out, "PM") && !strings.Contains(out, "Outside work hours") {
		t.Errorf("now output = %q", out)
	}
}

func TestConfigFileSupplyingDataFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dataFile := filepath.Join(t.TempDir(), "from_config.json")

	configPath := filepath.Join(home, "worklogctl.yaml")
	yamlBody := "data_file: " + dataFile + "\nutc_offset: \"+02:00\"\n"
	if err := os.WriteFile(configPath, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"log", "--config", configPath, "--date", "2026-04-05", "--slot", "6:00 PM", "Docs"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("log with config: %v", err)
	}

	if _, err := os.Stat(dataFile); err != nil {
		t.Fatalf("store not written at configured path: %v", err)
	}
}

func TestMissingExplicitConfigFails(t *testing.T) {
	dataFile := tempStorePath(t)

	if _, err := runCtl(t, dataFile, "show", "--config", "/nonexistent/worklogctl.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestSummaryRejectsBadMonth(t *testing.T) {
	dataFile := tempStorePath(t)

	if _, err := runCtl(t, dataFile, "summary", "--month", "13"); err == nil {
		t.Fatal("expected error for month 13")
	}
}
