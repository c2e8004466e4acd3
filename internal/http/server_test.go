package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"worklog/internal/core"
)

// fakeStore implements the journal ports backed by an in-memory LogBook.
type fakeStore struct {
	mu      sync.Mutex
	book    core.LogBook
	dayErr  error
	slotErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{book: core.LogBook{}}
}

func (f *fakeStore) Day(_ context.Context, dateKey string) (*core.DayLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dayErr != nil {
		return nil, f.dayErr
	}
	if _, err := core.ParseDateKey(dateKey); err != nil {
		return nil, err
	}
	if d, ok := f.book[dateKey]; ok {
		return d.Clone(), nil
	}
	return core.NewDayLog(), nil
}

func (f *fakeStore) SetSlot(_ context.Context, dateKey string, slot core.SlotLabel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slotErr != nil {
		return f.slotErr
	}
	if _, err := core.ParseDateKey(dateKey); err != nil {
		return err
	}
	return f.book.SetSlotText(dateKey, slot, text)
}

func (f *fakeStore) SetHoliday(_ context.Context, dateKey string, flag bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := core.ParseDateKey(dateKey); err != nil {
		return err
	}
	f.book.SetHoliday(dateKey, flag)
	return nil
}

func (f *fakeStore) MonthSummary(_ context.Context, year, month int) (core.MonthlySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return core.Summarize(f.book, year, month), nil
}

func (f *fakeStore) slotText(dateKey string, slot core.SlotLabel) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.book[dateKey]; ok {
		return d.Slots[slot]
	}
	return ""
}

func (f *fakeStore) holiday(dateKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.book[dateKey]; ok {
		return d.IsHoliday
	}
	return false
}

type fakePublisher struct {
	mu       sync.Mutex
	slots    int
	holidays int
	err      error
}

func (p *fakePublisher) PublishSlotUpdate(_ context.Context, _ string, _ core.SlotLabel, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots++
	return p.err
}

func (p *fakePublisher) PublishHolidayUpdate(_ context.Context, _ string, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holidays++
	return p.err
}

// testNow is mid-afternoon on a Tuesday, inside the 3:00 PM slot.
var testNow = time.Date(2026, 3, 10, 15, 20, 0, 0, core.DefaultLocation())

const testToday = "2026-03-10"

func newTestServer(t *testing.T, store *fakeStore, pub *fakePublisher) *Server {
	t.Helper()
	opts := Options{Now: func() time.Time { return testNow }}
	if pub != nil {
		opts.Publisher = pub
	}
	srv := NewServer(":0", store, store, store, core.DefaultLocation(), opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doRequest(srv, req)
}

func TestIndexRendersToday(t *testing.T) {
	store := newFakeStore()
	if err := store.SetSlot(context.Background(), testToday, "2:00 PM", "Fixed backend bug"); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, store, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Tuesday, 10 March 2026") {
		t.Errorf("body missing display date:\n%s", body)
	}
	if !strings.Contains(body, "Fixed backend bug") {
		t.Error("body missing saved slot text")
	}
	// 15:20 falls in the 3:00 PM slot, so the current marker must render.
	if !strings.Contains(body, `class="slot current`) {
		t.Error("body missing current-slot marker")
	}
	for _, slot := range core.TimeSlots {
		if !strings.Contains(body, string(slot)) {
			t.Errorf("body missing slot %q", slot)
		}
	}
}

func TestIndexExplicitDate(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/?date=2026-01-05", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Monday, 5 January 2026") {
		t.Error("body missing requested date")
	}
	// A non-today page never shows the current-slot marker.
	if strings.Contains(body, `class="slot current`) {
		t.Error("current-slot marker rendered for a past date")
	}
}

func TestIndexRejectsMalformedDate(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)

	for _, date := range []string{"garbage", "2026/03/10", "2026-13-40", "10-03-2026"} {
		rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/?date="+url.QueryEscape(date), nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("date %q: status = %d, want 400", date, rec.Code)
		}
	}
}

func TestIndexUnknownPath(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLogSlotRedirectsAndPersists(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	srv := newTestServer(t, store, pub)

	rec := postForm(srv, "/slots", url.Values{
		"date": {"2026-03-09"},
		"slot": {"4:00 PM"},
		"text": {"Sprint review"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/?date=2026-03-09" {
		t.Errorf("Location = %q", loc)
	}
	if got := store.slotText("2026-03-09", "4:00 PM"); got != "Sprint review" {
		t.Errorf("stored text = %q", got)
	}
	if pub.slots != 1 {
		t.Errorf("published %d slot updates, want 1", pub.slots)
	}
}

func TestLogSlotStoresTextVerbatim(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store, nil)

	text := "  paired on deploy \t notes  "
	rec := postForm(srv, "/slots", url.Values{
		"date": {"2026-03-09"},
		"slot": {"7:00 PM"},
		"text": {text},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := store.slotText("2026-03-09", "7:00 PM"); got != text {
		t.Errorf("stored text = %q, want verbatim %q", got, text)
	}
}

func TestLogSlotDefaultsToToday(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store, nil)

	rec := postForm(srv, "/slots", url.Values{
		"slot": {"3:00 PM"},
		"text": {"Standup notes"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := store.slotText(testToday, "3:00 PM"); got != "Standup notes" {
		t.Errorf("stored text = %q", got)
	}
}

func TestLogSlotValidation(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
	}{
		{
			name:       "unknown slot",
			form:       url.Values{"date": {testToday}, "slot": {"1:00 PM"}, "text": {"x"}},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "empty slot",
			form:       url.Values{"date": {testToday}, "text": {"x"}},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "malformed date",
			form:       url.Values{"date": {"not-a-date"}, "slot": {"2:00 PM"}, "text": {"x"}},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, newFakeStore(), nil)
			rec := postForm(srv, "/slots", tt.form)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestLogSlotRejectsGet(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/slots", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "POST" {
		t.Errorf("Allow = %q, want POST", allow)
	}
}

func TestLogSlotStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.slotErr = errors.New("disk full")
	srv := newTestServer(t, store, nil)

	rec := postForm(srv, "/slots", url.Values{
		"date": {testToday}, "slot": {"2:00 PM"}, "text": {"x"},
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestPublisherFailureDoesNotBlockWrite(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	srv := newTestServer(t, store, pub)

	rec := postForm(srv, "/slots", url.Values{
		"date": {testToday}, "slot": {"5:00 PM"}, "text": {"Code review"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 despite publish failure", rec.Code)
	}
	if got := store.slotText(testToday, "5:00 PM"); got != "Code review" {
		t.Errorf("stored text = %q", got)
	}
}

func TestHolidayToggle(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	srv := newTestServer(t, store, pub)

	rec := postForm(srv, "/holiday", url.Values{
		"date":    {"2026-03-08"},
		"holiday": {"true"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if !store.holiday("2026-03-08") {
		t.Error("holiday flag not set")
	}
	if pub.holidays != 1 {
		t.Errorf("published %d holiday updates, want 1", pub.holidays)
	}

	rec = postForm(srv, "/holiday", url.Values{
		"date":    {"2026-03-08"},
		"holiday": {"false"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if store.holiday("2026-03-08") {
		t.Error("holiday flag not cleared")
	}
}

func TestHolidayRejectsMalformedDate(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)

	rec := postForm(srv, "/holiday", url.Values{"date": {"bad"}, "holiday": {"true"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestAPIDay(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	if err := store.SetSlot(ctx, "2026-03-09", "2:00 PM", "API work"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetSlot(ctx, "2026-03-09", "11:30 PM", "Wrap up"); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, store, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/day?date=2026-03-09", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp struct {
		Date           string            `json:"date"`
		TimeSlots      map[string]string `json:"time_slots"`
		IsHoliday      bool              `json:"is_holiday"`
		CompletedSlots int               `json:"completed_slots"`
		CompletionRate float64           `json:"completion_rate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Date != "2026-03-09" {
		t.Errorf("date = %q", resp.Date)
	}
	if resp.TimeSlots["2:00 PM"] != "API work" {
		t.Errorf("time_slots = %v", resp.TimeSlots)
	}
	if resp.CompletedSlots != 2 {
		t.Errorf("completed_slots = %d, want 2", resp.CompletedSlots)
	}
}

func TestAPIDayRejectsMalformedDate(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/day?date=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] == "" {
		t.Error("missing error field in JSON body")
	}
}

func TestAPISummary(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	if err := store.SetSlot(ctx, "2026-03-02", "2:00 PM", "Backend refactor"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetSlot(ctx, "2026-03-02", "11:30 PM", "Docs"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetHoliday(ctx, "2026-03-03", true); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, store, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/summary?year=2026&month=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Year            int            `json:"year"`
		Month           int            `json:"month"`
		TotalDays       int            `json:"total_days"`
		WorkingDays     int            `json:"working_days"`
		HolidayDays     int            `json:"holiday_days"`
		ProductiveHours float64        `json:"productive_hours"`
		WorkAreas       map[string]int `json:"work_areas"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Year != 2026 || resp.Month != 3 {
		t.Errorf("year/month = %d/%d", resp.Year, resp.Month)
	}
	if resp.TotalDays != 2 || resp.WorkingDays != 1 || resp.HolidayDays != 1 {
		t.Errorf("days = %d/%d/%d, want 2/1/1", resp.TotalDays, resp.WorkingDays, resp.HolidayDays)
	}
	// One full slot plus the half slot.
	if resp.ProductiveHours != 1.5 {
		t.Errorf("productive_hours = %v, want 1.5", resp.ProductiveHours)
	}
	if resp.WorkAreas[core.AreaBackend] != 1 {
		t.Errorf("work_areas = %v", resp.WorkAreas)
	}
}

func TestAPISummaryDefaultsToCurrentMonth(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Year  int `json:"year"`
		Month int `json:"month"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Year != 2026 || resp.Month != 3 {
		t.Errorf("defaulted to %d/%d, want 2026/3", resp.Year, resp.Month)
	}
}

func TestMonthSummaryPartial(t *testing.T) {
	store := newFakeStore()
	if err := store.SetSlot(context.Background(), "2026-03-02", "2:00 PM", "Frontend polish"); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, store, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/ui/month-summary?year=2026&month=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "month-summary") {
		t.Error("body missing summary section")
	}
	if !strings.Contains(body, "March 2026") {
		t.Errorf("body missing month heading:\n%s", body)
	}
	if !strings.Contains(body, core.AreaFrontend) {
		t.Error("body missing classified work area")
	}
}

func TestSummaryCacheInvalidatedOnWrite(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store, nil)

	// Prime the cache with the empty month.
	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/summary?year=2026&month=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("prime: status = %d", rec.Code)
	}

	rec = postForm(srv, "/slots", url.Values{
		"date": {"2026-03-05"}, "slot": {"6:00 PM"}, "text": {"Bugfix"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("write: status = %d", rec.Code)
	}

	rec = doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/summary?year=2026&month=3", nil))
	var resp struct {
		TotalDays int `json:"total_days"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalDays != 1 {
		t.Errorf("total_days = %d after write, want 1 (stale cache?)", resp.TotalDays)
	}
}

func TestRateLimitOnPosts(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store, nil)

	form := url.Values{"date": {testToday}, "slot": {"2:00 PM"}, "text": {"x"}}
	var limited bool
	for i := 0; i < postLimitPerMinute+5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/slots", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "203.0.113.7:4321"
		rec := doRequest(srv, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			if ra := rec.Header().Get("Retry-After"); ra != "60" {
				t.Errorf("Retry-After = %q, want 60", ra)
			}
			break
		}
	}
	if !limited {
		t.Errorf("no request was rate limited after %d posts", postLimitPerMinute+5)
	}

	// Reads from the same client stay unthrottled.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:4321"
	if rec := doRequest(srv, req); rec.Code != http.StatusOK {
		t.Errorf("GET after throttle: status = %d, want 200", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"  edges kept  ", "  edges kept  "},
		{"tabs\tkept", "tabs\tkept"},
		{"nul\x00byte", "nulbyte"},
		{"bell\x07char", "bellchar"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFlag(t *testing.T) {
	for _, v := range []string{"on", "true", "1", "yes", "TRUE", " On "} {
		if !parseFlag(v) {
			t.Errorf("parseFlag(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"", "off", "false", "0", "no", "maybe"} {
		if parseFlag(v) {
			t.Errorf("parseFlag(%q) = true, want false", v)
		}
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := srv.Shutdown(ctx)
		cancel()
		if err != nil {
			t.Fatalf("shutdown %d: %v", i+1, err)
		}
	}
}

func TestStaticAssetsServed(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age") {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestDayReadFailureRenders500(t *testing.T) {
	store := newFakeStore()
	store.dayErr = fmt.Errorf("corrupt store")
	srv := newTestServer(t, store, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
