package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"worklog/internal/core"
)

type slotRow struct {
	Label     string
	Text      string
	Filled    bool
	IsCurrent bool
	Hours     float64
}

type indexData struct {
	DateKey       string
	DisplayDate   string
	IsToday       bool
	IsHoliday     bool
	InWorkHours   bool
	CurrentSlot   string
	Slots         []slotRow
	Completed     int
	TotalSlots    int
	CompletionPct string
	PrevDate      string
	NextDate      string
	Summary       *summaryData
}

type summaryData struct {
	Year            int
	MonthName       string
	Month           int
	TotalDays       int
	WorkingDays     int
	HolidayDays     int
	ProductiveHours string
	AvgHours        string
	Areas           []areaRow
}

type areaRow struct {
	Name  string
	Count int
	Width int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	now := s.now().In(s.location)
	today := core.FormatDateKey(now)
	dateKey := today
	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		if _, err := core.ParseDateKey(v); err != nil {
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		dateKey = v
	}

	day, err := s.days.Day(r.Context(), dateKey)
	if err != nil {
		slog.ErrorContext(r.Context(), "Day read error", "error", err, "date_key", dateKey)
		http.Error(w, "failed to load day", http.StatusInternalServerError)
		return
	}

	date, _ := core.ParseDateKey(dateKey)
	currentSlot, inWorkHours := core.CurrentSlot(now)

	data := indexData{
		DateKey:     dateKey,
		DisplayDate: date.Format("Monday, 2 January 2006"),
		IsToday:     dateKey == today,
		IsHoliday:   day.IsHoliday,
		InWorkHours: inWorkHours,
		Completed:   day.CompletedSlots(),
		TotalSlots:  len(core.TimeSlots),
		PrevDate:    core.FormatDateKey(date.AddDate(0, 0, -1)),
		NextDate:    core.FormatDateKey(date.AddDate(0, 0, 1)),
	}
	data.CompletionPct = strconv.FormatFloat(day.CompletionRate(), 'f', 1, 64)
	if inWorkHours {
		data.CurrentSlot = string(currentSlot)
	}
	for _, slot := range core.TimeSlots {
		text := day.Slots[slot]
		data.Slots = append(data.Slots, slotRow{
			Label:     string(slot),
			Text:      text,
			Filled:    day.Completed(slot),
			IsCurrent: data.IsToday && inWorkHours && slot == currentSlot,
			Hours:     slot.Hours(),
		})
	}

	if summary, err := s.getSummary(r.Context(), date.Year(), int(date.Month())); err != nil {
		slog.ErrorContext(r.Context(), "Month summary error", "error", err, "date_key", dateKey)
	} else {
		data.Summary = buildSummaryData(summary)
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleLogSlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	dateKey := strings.TrimSpace(r.Form.Get("date"))
	if dateKey == "" {
		dateKey = core.FormatDateKey(s.now().In(s.location))
	}
	slot := core.SlotLabel(strings.TrimSpace(r.Form.Get("slot")))
	text := sanitizeInput(r.Form.Get("text"))

	if err := s.writer.SetSlot(r.Context(), dateKey, slot, text); err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidSlot):
			http.Error(w, "unknown time slot: "+template.HTMLEscapeString(string(slot)), http.StatusUnprocessableEntity)
		case errors.Is(err, core.ErrInvalidDateKey):
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusUnprocessableEntity)
		default:
			slog.ErrorContext(r.Context(), "Slot write error", "error", err, "date_key", dateKey, "slot", slot)
			http.Error(w, "failed to save entry", http.StatusInternalServerError)
		}
		return
	}

	s.httpLog.LogSlotLogged(r.Context(), dateKey, string(slot), len(text))

	s.invalidateSummary(dateKey)
	s.publishSlotUpdate(r, dateKey, slot, text)

	http.Redirect(w, r, "/?date="+url.QueryEscape(dateKey), http.StatusSeeOther)
}

func (s *Server) handleHoliday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	dateKey := strings.TrimSpace(r.Form.Get("date"))
	if dateKey == "" {
		dateKey = core.FormatDateKey(s.now().In(s.location))
	}
	flag := parseFlag(r.Form.Get("holiday"))

	if err := s.writer.SetHoliday(r.Context(), dateKey, flag); err != nil {
		if errors.Is(err, core.ErrInvalidDateKey) {
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusUnprocessableEntity)
			return
		}
		slog.ErrorContext(r.Context(), "Holiday write error", "error", err, "date_key", dateKey)
		http.Error(w, "failed to save holiday flag", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Holiday flag recorded",
		"date_key", dateKey,
		"is_holiday", flag)

	s.invalidateSummary(dateKey)
	s.publishHolidayUpdate(r, dateKey, flag)

	http.Redirect(w, r, "/?date="+url.QueryEscape(dateKey), http.StatusSeeOther)
}

// handleMonthSummaryPartial renders the monthly summary partial.
func (s *Server) handleMonthSummaryPartial(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	year, month := s.parseYearMonth(r)

	summary, err := s.getSummary(r.Context(), year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month summary error", "error", err, "year", year, "month", month)
		_, _ = w.Write([]byte(`<section id="month-summary" class="month-summary"><div class="placeholder">Failed to load summary</div></section>`))
		return
	}
	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="month-summary" class="month-summary"><div class="placeholder">Hours: ` +
			strconv.FormatFloat(summary.ProductiveHours, 'f', 1, 64) + `</div></section>`))
		return
	}

	if err := s.templates.ExecuteTemplate(w, "month_summary.html", buildSummaryData(summary)); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "month_summary.html", "year", year, "month", month)
		_, _ = w.Write([]byte(`<section id="month-summary" class="month-summary"><div class="placeholder">Failed to render summary</div></section>`))
	}
}

type dayResponse struct {
	Date           string                    `json:"date"`
	TimeSlots      map[core.SlotLabel]string `json:"time_slots"`
	IsHoliday      bool                      `json:"is_holiday"`
	CompletedSlots int                       `json:"completed_slots"`
	CompletionRate float64                   `json:"completion_rate"`
}

func (s *Server) handleAPIDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	dateKey := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateKey == "" {
		dateKey = core.FormatDateKey(s.now().In(s.location))
	}
	if _, err := core.ParseDateKey(dateKey); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	day, err := s.days.Day(r.Context(), dateKey)
	if err != nil {
		slog.ErrorContext(r.Context(), "Day read error", "error", err, "date_key", dateKey)
		writeJSONError(w, http.StatusInternalServerError, "failed to load day")
		return
	}

	writeJSON(w, http.StatusOK, dayResponse{
		Date:           dateKey,
		TimeSlots:      day.Slots,
		IsHoliday:      day.IsHoliday,
		CompletedSlots: day.CompletedSlots(),
		CompletionRate: day.CompletionRate(),
	})
}

type summaryResponse struct {
	Year            int            `json:"year"`
	Month           int            `json:"month"`
	TotalDays       int            `json:"total_days"`
	WorkingDays     int            `json:"working_days"`
	HolidayDays     int            `json:"holiday_days"`
	ProductiveHours float64        `json:"productive_hours"`
	AvgHoursPerDay  float64        `json:"avg_hours_per_day"`
	WorkAreas       map[string]int `json:"work_areas"`
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	year, month := s.parseYearMonth(r)
	summary, err := s.getSummary(r.Context(), year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month summary error", "error", err, "year", year, "month", month)
		writeJSONError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		Year:            summary.Year,
		Month:           summary.Month,
		TotalDays:       summary.TotalDays,
		WorkingDays:     summary.WorkingDays,
		HolidayDays:     summary.HolidayDays,
		ProductiveHours: summary.ProductiveHours,
		AvgHoursPerDay:  summary.AvgHoursPerDay,
		WorkAreas:       summary.WorkAreas,
	})
}

func (s *Server) publishSlotUpdate(r *http.Request, dateKey string, slot core.SlotLabel, text string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSlotUpdate(r.Context(), dateKey, slot, text); err != nil {
		slog.WarnContext(r.Context(), "Failed to publish slot update, archive will catch up on reconcile",
			"error", err,
			"date_key", dateKey,
			"slot", slot)
	}
}

func (s *Server) publishHolidayUpdate(r *http.Request, dateKey string, flag bool) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishHolidayUpdate(r.Context(), dateKey, flag); err != nil {
		slog.WarnContext(r.Context(), "Failed to publish holiday update, archive will catch up on reconcile",
			"error", err,
			"date_key", dateKey)
	}
}

// parseYearMonth reads year/month query params, defaulting to the current
// month in the configured location and clamping month into range.
func (s *Server) parseYearMonth(r *http.Request) (int, int) {
	now := s.now().In(s.location)
	year := now.Year()
	month := int(now.Month())
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			month = m
		}
	}
	if month < 1 || month > 12 {
		slog.WarnContext(r.Context(), "Invalid month parameter", "year", year, "month", month, "corrected_to", int(now.Month()))
		month = int(now.Month())
	}
	return year, month
}

func buildSummaryData(summary core.MonthlySummary) *summaryData {
	data := &summaryData{
		Year:            summary.Year,
		Month:           summary.Month,
		MonthName:       time.Month(summary.Month).String(),
		TotalDays:       summary.TotalDays,
		WorkingDays:     summary.WorkingDays,
		HolidayDays:     summary.HolidayDays,
		ProductiveHours: strconv.FormatFloat(summary.ProductiveHours, 'f', 1, 64),
		AvgHours:        strconv.FormatFloat(summary.AvgHoursPerDay, 'f', 1, 64),
	}

	var maxCount int
	for _, count := range summary.WorkAreas {
		if count > maxCount {
			maxCount = count
		}
	}
	// Fixed area order keeps the rendered list stable across reloads.
	for _, name := range []string{
		core.AreaFrontend, core.AreaBackend, core.AreaMeetings,
		core.AreaCodeReview, core.AreaDocumentation, core.AreaOther,
	} {
		count, ok := summary.WorkAreas[name]
		if !ok {
			continue
		}
		width := 0
		if maxCount > 0 {
			width = (count*100 + maxCount/2) / maxCount
			if width > 0 && width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Areas = append(data.Areas, areaRow{Name: name, Count: count, Width: width})
	}
	return data
}

// sanitizeInput strips control characters, keeping tabs and newlines. All
// whitespace survives, entry text is stored verbatim including its edges.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
