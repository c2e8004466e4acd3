package core

import (
	"fmt"
	"math"
	"strings"
)

// Work area labels produced by keyword categorization.
const (
	AreaFrontend      = "Frontend"
	AreaBackend       = "Backend"
	AreaMeetings      = "Meetings"
	AreaCodeReview    = "Code Review"
	AreaDocumentation = "Documentation"
	AreaOther         = "Other"
)

type areaRule struct {
	area     string
	keywords []string
}

// monthlyAreaRules is the authoritative, first-match-wins rule list used for
// monthly aggregation.
var monthlyAreaRules = []areaRule{
	{AreaFrontend, []string{"frontend", "react", "ui"}},
	{AreaBackend, []string{"backend", "api", "server"}},
	{AreaMeetings, []string{"meeting", "standup"}},
	{AreaCodeReview, []string{"review"}},
	{AreaDocumentation, []string{"documentation", "docs"}},
}

// dailyAreaRules is the reduced variant used for single-day breakdowns.
var dailyAreaRules = []areaRule{
	{AreaFrontend, []string{"frontend", "react"}},
	{AreaBackend, []string{"backend", "api"}},
	{AreaMeetings, []string{"meeting"}},
	{AreaCodeReview, []string{"review"}},
	{AreaDocumentation, []string{"documentation"}},
}

func classify(rules []areaRule, text string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.area
			}
		}
	}
	return AreaOther
}

// ClassifyWorkArea assigns a slot description to a work area using the
// monthly rule set.
func ClassifyWorkArea(text string) string {
	return classify(monthlyAreaRules, text)
}

// DayWorkAreas counts completed slots per work area for a single day using
// the reduced daily rule set.
func DayWorkAreas(d *DayLog) map[string]int {
	areas := make(map[string]int)
	for _, text := range d.Slots {
		if strings.TrimSpace(text) == "" {
			continue
		}
		areas[classify(dailyAreaRules, text)]++
	}
	return areas
}

// MonthlySummary is derived on demand from a LogBook and never persisted.
type MonthlySummary struct {
	Year            int
	Month           int // 1-12
	TotalDays       int
	HolidayDays     int
	WorkingDays     int
	ProductiveHours float64
	AvgHoursPerDay  float64
	WorkAreas       map[string]int
}

// Summarize aggregates every day of the given month. Days flagged holiday
// count toward TotalDays and HolidayDays but contribute nothing to
// ProductiveHours or WorkAreas, even when their slots hold text.
func Summarize(book LogBook, year, month int) MonthlySummary {
	prefix := fmt.Sprintf("%04d-%02d", year, month)
	s := MonthlySummary{Year: year, Month: month, WorkAreas: make(map[string]int)}

	for _, key := range book.SortedKeys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		day := book[key]
		s.TotalDays++
		if day.IsHoliday {
			s.HolidayDays++
			continue
		}
		for slot, text := range day.Slots {
			if strings.TrimSpace(text) == "" {
				continue
			}
			s.ProductiveHours += slot.Hours()
			s.WorkAreas[ClassifyWorkArea(text)]++
		}
	}

	s.WorkingDays = s.TotalDays - s.HolidayDays
	if s.WorkingDays > 0 {
		s.AvgHoursPerDay = math.Round(s.ProductiveHours/float64(s.WorkingDays)*10) / 10
	}
	return s
}
