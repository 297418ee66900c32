package web

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/ops"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// mondayMorning is Monday 2025-03-03 08:00.
var mondayMorning = timeutil.FixedClock{T: time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)}

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	return &Handlers{
		db:       database,
		cfg:      cfg,
		clock:    mondayMorning,
		renderer: NewRenderer(templateSub, "test", zerolog.Nop()),
		log:      zerolog.Nop(),
	}
}

// seedWeekly stores a Tue/Thu 07:00-08:00 event for March 2025.
func seedWeekly(t *testing.T, h *Handlers, title string, categoryID *string) string {
	t.Helper()
	out, err := ops.AddEvent(context.Background(), h.db, h.cfg, ops.AddEventInput{
		Title:      title,
		CategoryID: categoryID,
		Kind:       "recurring",
		Start:      "07:00",
		End:        "08:00",
		Days:       []int{1, 3},
		From:       "2025-03-01",
		Until:      "2025-03-31",
	})
	if err != nil {
		t.Fatalf("seed weekly %q: %v", title, err)
	}
	return out.ID
}

func seedOnce(t *testing.T, h *Handlers, title, date, start, end string) string {
	t.Helper()
	out, err := ops.AddEvent(context.Background(), h.db, h.cfg, ops.AddEventInput{
		Title: title,
		Date:  date,
		Start: start,
		End:   end,
	})
	if err != nil {
		t.Fatalf("seed event %q: %v", title, err)
	}
	return out.ID
}

func seedCategory(t *testing.T, h *Handlers, name, color string) string {
	t.Helper()
	out, err := ops.SaveCategory(context.Background(), h.db, h.cfg, ops.SaveCategoryInput{Name: name, Color: color})
	if err != nil {
		t.Fatalf("seed category %q: %v", name, err)
	}
	return out.ID
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

type occurrenceJSON struct {
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type calendarJSON struct {
	View        string           `json:"view"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Occurrences []occurrenceJSON `json:"occurrences"`
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body: %v\n%s", err, rec.Body.String())
	}
}

// --- Calendar views ---

func TestHandleWeek_ShowsOccurrences(t *testing.T) {
	h := setupTest(t)
	catID := seedCategory(t, h, "Sport", "#22AA55")
	seedWeekly(t, h, "Swim", &catID)

	req := httptest.NewRequest("GET", "/week?date=2025-03-05", nil)
	rec := httptest.NewRecorder()
	h.HandleWeek(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("expected full layout")
	}
	if !strings.Contains(body, "2025-03-03") || !strings.Contains(body, "2025-03-09") {
		t.Error("expected week bounds in header")
	}
	if strings.Count(body, "Swim") < 2 {
		t.Errorf("expected Swim on Tuesday and Thursday, body:\n%s", body)
	}
	if !strings.Contains(body, "#22AA55") {
		t.Error("expected category color in occurrence style")
	}
}

func TestHandleWeek_JSON(t *testing.T) {
	h := setupTest(t)
	seedWeekly(t, h, "Swim", nil)

	req := httptest.NewRequest("GET", "/week?date=2025-03-03", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleWeek(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got calendarJSON
	decodeBody(t, rec, &got)
	if got.From != "2025-03-03" || got.To != "2025-03-09" {
		t.Errorf("range = %s..%s, want 2025-03-03..2025-03-09", got.From, got.To)
	}
	if len(got.Occurrences) != 2 {
		t.Fatalf("occurrences = %d, want 2", len(got.Occurrences))
	}
	if got.Occurrences[0].Start != "2025-03-04T07:00" {
		t.Errorf("first start = %q, want 2025-03-04T07:00", got.Occurrences[0].Start)
	}
}

func TestHandleWeek_HtmxReturnsContentOnly(t *testing.T) {
	h := setupTest(t)
	seedWeekly(t, h, "Swim", nil)

	req := httptest.NewRequest("GET", "/week", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleWeek(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("htmx response should not contain full layout")
	}
	if !strings.Contains(body, "Swim") {
		t.Error("htmx response should contain the week's occurrences")
	}
}

func TestHandleWeek_InvalidDate(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/week?date=03/05/2025", nil)
	rec := httptest.NewRecorder()
	h.HandleWeek(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleWeek_UpcomingAndPriorities(t *testing.T) {
	h := setupTest(t)
	seedOnce(t, h, "Dentist", "2025-03-06", "15:00", "16:00")
	_, err := ops.SavePriorities(context.Background(), h.db, h.cfg, h.clock, ops.SavePrioritiesInput{
		Date:  "2025-03-03",
		Items: []db.PriorityItem{{Text: "Ship release", Done: true}, {Text: "Taxes"}},
	})
	if err != nil {
		t.Fatalf("SavePriorities: %v", err)
	}

	req := httptest.NewRequest("GET", "/week", nil)
	rec := httptest.NewRecorder()
	h.HandleWeek(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "Mar 6 15:00 Dentist") {
		t.Errorf("expected Dentist in upcoming list, body:\n%s", body)
	}
	if !strings.Contains(body, "Ship release") || !strings.Contains(body, "33% done") {
		t.Error("expected priorities with progress")
	}
}

func TestHandleMonth_CollapsesBusyDays(t *testing.T) {
	h := setupTest(t)
	for i, title := range []string{"A1", "A2", "A3", "A4", "A5"} {
		start := fmt.Sprintf("%02d:00", 8+i)
		end := fmt.Sprintf("%02d:30", 8+i)
		seedOnce(t, h, title, "2025-03-12", start, end)
	}

	req := httptest.NewRequest("GET", "/month?date=2025-03-20", nil)
	rec := httptest.NewRecorder()
	h.HandleMonth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "March 2025") {
		t.Error("expected month label")
	}
	if !strings.Contains(body, "+2 more") {
		t.Error("expected overflow marker for a day with 5 occurrences")
	}
	if strings.Contains(body, "A5") {
		t.Error("hidden occurrences should not be listed")
	}
}

func TestHandleMonth_JSONCoversWholeWeeks(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/month?date=2025-03-20", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleMonth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got calendarJSON
	decodeBody(t, rec, &got)
	// March 2025 starts on a Saturday and ends on a Monday.
	if got.From != "2025-02-24" || got.To != "2025-04-06" {
		t.Errorf("range = %s..%s, want 2025-02-24..2025-04-06", got.From, got.To)
	}
}

func TestHandleYear_Heatmap(t *testing.T) {
	h := setupTest(t)
	seedWeekly(t, h, "Swim", nil)

	req := httptest.NewRequest("GET", "/year?year=2025", nil)
	rec := httptest.NewRecorder()
	h.HandleYear(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "8 occurrences") {
		t.Error("expected yearly total")
	}
	if !strings.Contains(body, "lvl1") {
		t.Error("expected shaded cells for busy days")
	}
	if !strings.Contains(body, `title="2025-03-04: 1"`) {
		t.Error("expected a cell for 2025-03-04")
	}
}

func TestHandleYear_JSON(t *testing.T) {
	h := setupTest(t)
	seedOnce(t, h, "Trip", "2025-06-01", "09:00", "10:00")

	req := httptest.NewRequest("GET", "/year?year=2025", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleYear(rec, req)

	var got struct {
		Year  int `json:"year"`
		Total int `json:"total"`
		Days  []struct {
			Date string `json:"date"`
		} `json:"days"`
	}
	decodeBody(t, rec, &got)
	if got.Year != 2025 || got.Total != 1 {
		t.Errorf("year = %d, total = %d, want 2025 and 1", got.Year, got.Total)
	}
	if len(got.Days) != 365 {
		t.Errorf("days = %d, want 365", len(got.Days))
	}
}

func TestHandleYear_InvalidYearFallsBack(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/year?year=notanumber", nil)
	rec := httptest.NewRecorder()
	h.HandleYear(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "2025") {
		t.Error("expected current year")
	}
}

func TestHandleDay(t *testing.T) {
	h := setupTest(t)
	seedWeekly(t, h, "Swim", nil)

	req := httptest.NewRequest("GET", "/day?date=2025-03-04", nil)
	rec := httptest.NewRecorder()
	h.HandleDay(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Swim") || !strings.Contains(body, "Uncategorized") {
		t.Error("expected uncategorized Swim occurrence")
	}
	if !strings.Contains(body, "weekly") {
		t.Error("expected recurring marker")
	}

	req = httptest.NewRequest("GET", "/day?date=2025-03-05", nil)
	rec = httptest.NewRecorder()
	h.HandleDay(rec, req)
	if !strings.Contains(rec.Body.String(), "Nothing scheduled.") {
		t.Error("expected empty state on a free day")
	}
}

// --- Events ---

func TestHandleEvents_ListsDefinitions(t *testing.T) {
	h := setupTest(t)
	catID := seedCategory(t, h, "Sport", "#22AA55")
	seedWeekly(t, h, "Swim", &catID)

	req := httptest.NewRequest("GET", "/events", nil)
	rec := httptest.NewRecorder()
	h.HandleEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Swim") || !strings.Contains(body, "Sport") {
		t.Error("expected event with its category name")
	}
}

func TestHandleEvents_Empty(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/events", nil)
	rec := httptest.NewRecorder()
	h.HandleEvents(rec, req)

	if !strings.Contains(rec.Body.String(), "No events yet.") {
		t.Error("expected empty state message")
	}
}

func TestHandleEventCreate(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		accept     string
		htmx       bool
		wantStatus int
	}{
		{
			name:       "punctual redirects",
			form:       url.Values{"title": {"Dentist"}, "date": {"2025-03-06"}, "start": {"15:00"}, "end": {"16:00"}},
			wantStatus: http.StatusFound,
		},
		{
			name:       "recurring json",
			form:       url.Values{"title": {"Gym"}, "kind": {"recurring"}, "days": {"0", "2", "4"}, "from": {"2025-03-01"}, "until": {"2025-03-31"}, "start": {"18:00"}, "end": {"19:00"}},
			accept:     "application/json",
			wantStatus: http.StatusCreated,
		},
		{
			name:       "htmx",
			form:       url.Values{"title": {"Call"}, "date": {"2025-03-07"}, "start": {"10:00"}, "end": {"10:30"}},
			htmx:       true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing title",
			form:       url.Values{"date": {"2025-03-07"}, "start": {"10:00"}, "end": {"10:30"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "end before start",
			form:       url.Values{"title": {"Backwards"}, "date": {"2025-03-07"}, "start": {"11:00"}, "end": {"10:00"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad day index",
			form:       url.Values{"title": {"Gym"}, "kind": {"recurring"}, "days": {"mon"}, "from": {"2025-03-01"}, "until": {"2025-03-31"}, "start": {"18:00"}, "end": {"19:00"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown category",
			form:       url.Values{"title": {"Gym"}, "category_id": {"nope"}, "date": {"2025-03-07"}, "start": {"18:00"}, "end": {"19:00"}},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTest(t)

			req := postForm("/events", tt.form)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.htmx {
				req.Header.Set("HX-Request", "true")
			}
			rec := httptest.NewRecorder()
			h.HandleEventCreate(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			switch {
			case tt.htmx:
				if got := rec.Header().Get("HX-Redirect"); got != "/events?user=default" {
					t.Errorf("HX-Redirect = %q, want /events?user=default", got)
				}
			case tt.wantStatus == http.StatusFound:
				if got := rec.Header().Get("Location"); got != "/events?user=default" {
					t.Errorf("Location = %q, want /events?user=default", got)
				}
			case tt.wantStatus == http.StatusCreated:
				var out ops.EventOutput
				decodeBody(t, rec, &out)
				if out.Kind != "recurring" || len(out.Days) != 3 {
					t.Errorf("kind = %q, days = %v", out.Kind, out.Days)
				}
			}
		})
	}
}

func TestHandleEventCreate_KeepsUser(t *testing.T) {
	h := setupTest(t)

	form := url.Values{"user": {"Alice"}, "title": {"Tea"}, "date": {"2025-03-04"}, "start": {"16:00"}, "end": {"16:30"}}
	rec := httptest.NewRecorder()
	h.HandleEventCreate(rec, postForm("/events", form))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/events?user=alice" {
		t.Errorf("Location = %q, want /events?user=alice", got)
	}

	req := httptest.NewRequest("GET", "/day?user=alice&date=2025-03-04", nil)
	rec = httptest.NewRecorder()
	h.HandleDay(rec, req)
	if !strings.Contains(rec.Body.String(), "Tea") {
		t.Error("expected event in alice's day view")
	}

	req = httptest.NewRequest("GET", "/day?date=2025-03-04", nil)
	rec = httptest.NewRecorder()
	h.HandleDay(rec, req)
	if strings.Contains(rec.Body.String(), "Tea") {
		t.Error("default user should not see alice's event")
	}
}

func TestHandleEventDelete(t *testing.T) {
	h := setupTest(t)
	id := seedOnce(t, h, "Dentist", "2025-03-06", "15:00", "16:00")

	req := postForm("/events/"+id+"/delete", url.Values{})
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleEventDelete(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}

	// Second delete is a 404
	req = httptest.NewRequest("DELETE", "/events/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	h.HandleEventDelete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", body.Error.Code)
	}
}

func TestHandleEventDelete_MissingID(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("DELETE", "/events/", nil)
	rec := httptest.NewRecorder()
	h.HandleEventDelete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- Categories ---

func TestHandleCategories(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandleCategorySave(rec, postForm("/categories", url.Values{"name": {"Work"}, "color": {"#FF8800"}}))
	if rec.Code != http.StatusFound {
		t.Fatalf("save status = %d, want 302", rec.Code)
	}

	req := httptest.NewRequest("GET", "/categories", nil)
	rec = httptest.NewRecorder()
	h.HandleCategories(rec, req)
	body := rec.Body.String()
	if !strings.Contains(body, "Work") || !strings.Contains(body, "#FF8800") {
		t.Errorf("expected saved category, body:\n%s", body)
	}
	if !strings.Contains(body, h.cfg.DefaultCategoryColor) {
		t.Error("expected default color in the form")
	}
}

func TestHandleCategorySave_Invalid(t *testing.T) {
	h := setupTest(t)

	req := postForm("/categories", url.Values{"name": {""}})
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleCategorySave(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCategoryDelete(t *testing.T) {
	h := setupTest(t)
	id := seedCategory(t, h, "Work", "#FF8800")

	req := httptest.NewRequest("DELETE", "/categories/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleCategoryDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("HX-Redirect") == "" {
		t.Error("expected HX-Redirect header")
	}

	req = httptest.NewRequest("GET", "/categories", nil)
	rec = httptest.NewRecorder()
	h.HandleCategories(rec, req)
	if !strings.Contains(rec.Body.String(), "No categories yet.") {
		t.Error("expected category to be gone")
	}
}

// --- Priorities ---

func TestHandlePriorities_SaveAndView(t *testing.T) {
	h := setupTest(t)

	form := url.Values{
		"date":    {"2025-03-05"},
		"goals":   {"Finish the **draft**"},
		"p1":      {"Write intro"},
		"p1_done": {"on"},
		"p2":      {"Review"},
		"p3":      {""},
	}
	rec := httptest.NewRecorder()
	h.HandlePrioritiesSave(rec, postForm("/priorities", form))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/priorities?user=default&date=2025-03-03" {
		t.Errorf("Location = %q", got)
	}

	req := httptest.NewRequest("GET", "/priorities?date=2025-03-09", nil)
	rec = httptest.NewRecorder()
	h.HandlePriorities(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "<strong>draft</strong>") {
		t.Error("expected goals rendered as markdown")
	}
	if !strings.Contains(body, `value="Write intro"`) {
		t.Error("expected first priority in form")
	}
	if !strings.Contains(body, "33% done") {
		t.Error("expected one of three priorities done")
	}
}

func TestHandlePriorities_OtherWeekIsEmpty(t *testing.T) {
	h := setupTest(t)
	_, err := ops.SavePriorities(context.Background(), h.db, h.cfg, h.clock, ops.SavePrioritiesInput{
		Items: []db.PriorityItem{{Text: "Only this week"}},
	})
	if err != nil {
		t.Fatalf("SavePriorities: %v", err)
	}

	req := httptest.NewRequest("GET", "/priorities?date=2025-03-10", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandlePriorities(rec, req)

	var out ops.PrioritiesOutput
	decodeBody(t, rec, &out)
	if out.WeekStart != "2025-03-10" {
		t.Errorf("week_start = %q, want 2025-03-10", out.WeekStart)
	}
	for _, it := range out.Items {
		if it.Text != "" {
			t.Errorf("unexpected item %q in another week", it.Text)
		}
	}
}

// --- Suggest ---

func TestHandleSuggest_FormOnly(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/suggest", nil)
	rec := httptest.NewRecorder()
	h.HandleSuggest(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Suggest a slot") {
		t.Error("expected suggestion form")
	}
	if strings.Contains(body, "No free slot fits.") || strings.Contains(body, "/suggest/book") {
		t.Error("form should not show results before it is submitted")
	}
	if !strings.Contains(body, `value="06:00"`) || !strings.Contains(body, `value="22:00"`) {
		t.Error("expected default search window")
	}
}

func TestHandleSuggest_FindsFirstFreeSlot(t *testing.T) {
	h := setupTest(t)
	seedOnce(t, h, "Busy", "2025-03-04", "06:00", "11:00")

	req := httptest.NewRequest("GET", "/suggest?date=2025-03-03&days=1&duration=60&window_start=06:00&window_end=12:00", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleSuggest(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		WeekStart string `json:"week_start"`
		Slots     []struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"slots"`
	}
	decodeBody(t, rec, &got)
	if len(got.Slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(got.Slots))
	}
	if got.Slots[0].Start != "2025-03-04T11:00" || got.Slots[0].End != "2025-03-04T12:00" {
		t.Errorf("slot = %s..%s, want 2025-03-04T11:00..12:00", got.Slots[0].Start, got.Slots[0].End)
	}
}

func TestHandleSuggest_NoSlot(t *testing.T) {
	h := setupTest(t)
	seedOnce(t, h, "Busy", "2025-03-04", "06:00", "12:00")

	req := httptest.NewRequest("GET", "/suggest?date=2025-03-03&days=1&duration=60&window_start=06:00&window_end=12:00", nil)
	rec := httptest.NewRecorder()
	h.HandleSuggest(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No free slot fits.") {
		t.Error("expected no-slot message")
	}
}

func TestHandleSuggest_InvalidWindow(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/suggest?days=1&window_start=12:00&window_end=08:00", nil)
	rec := httptest.NewRecorder()
	h.HandleSuggest(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<h1>400</h1>") {
		t.Error("expected error page")
	}
}

func TestHandleSuggestBook(t *testing.T) {
	h := setupTest(t)

	form := url.Values{
		"title": {"Deep work"},
		"slot":  {"2025-03-04T11:00|2025-03-04T12:00", "2025-03-05T11:00|2025-03-05T12:00"},
	}
	rec := httptest.NewRecorder()
	h.HandleSuggestBook(rec, postForm("/suggest/book", form))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302; body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "/week?user=default&date=2025-03-04" {
		t.Errorf("Location = %q", got)
	}

	req := httptest.NewRequest("GET", "/week?date=2025-03-04", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	h.HandleWeek(rec, req)

	var got calendarJSON
	decodeBody(t, rec, &got)
	if len(got.Occurrences) != 2 {
		t.Fatalf("occurrences = %d, want 2 booked", len(got.Occurrences))
	}
}

func TestHandleSuggestBook_KeepsUser(t *testing.T) {
	h := setupTest(t)

	form := url.Values{
		"user":  {"  Alice "},
		"title": {"Deep work"},
		"slot":  {"2025-03-06T11:00|2025-03-06T12:00"},
	}
	rec := httptest.NewRecorder()
	h.HandleSuggestBook(rec, postForm("/suggest/book", form))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302; body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "/week?user=alice&date=2025-03-06" {
		t.Errorf("Location = %q", got)
	}
}

func TestHandleSuggestBook_Invalid(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"no slots", url.Values{"title": {"x"}}},
		{"malformed slot", url.Values{"title": {"x"}, "slot": {"2025-03-04T11:00"}}},
		{"bad datetime", url.Values{"title": {"x"}, "slot": {"tomorrow|later"}}},
		{"missing title", url.Values{"slot": {"2025-03-04T11:00|2025-03-04T12:00"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTest(t)
			rec := httptest.NewRecorder()
			h.HandleSuggestBook(rec, postForm("/suggest/book", tt.form))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

// --- Errors and plumbing ---

func TestRenderError_InternalHidesDetails(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/week", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.renderer.renderError(rec, req, stderrors.New("disk on fire"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "disk on fire") {
		t.Error("internal error details leaked")
	}
	if !strings.Contains(body, "an internal error occurred") {
		t.Error("expected generic message")
	}
}

func TestRenderError_HtmxFragment(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/week?date=bad", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleWeek(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), `<div class="error-message">`) {
		t.Errorf("expected error fragment, got %q", rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got map[string]any
	decodeBody(t, rec, &got)
	if got["ok"] != true {
		t.Errorf("ok = %v, want true", got["ok"])
	}
}

func TestNewServer_Routes(t *testing.T) {
	h := setupTest(t)
	srv := NewServer(h.db, h.cfg, mondayMorning, zerolog.Nop(), "test", "127.0.0.1", 0)

	tests := []struct {
		method, path string
		wantStatus   int
	}{
		{"GET", "/", http.StatusFound},
		{"GET", "/week", http.StatusOK},
		{"GET", "/month", http.StatusOK},
		{"GET", "/year", http.StatusOK},
		{"GET", "/day", http.StatusOK},
		{"GET", "/events", http.StatusOK},
		{"GET", "/categories", http.StatusOK},
		{"GET", "/priorities", http.StatusOK},
		{"GET", "/suggest", http.StatusOK},
		{"GET", "/healthz", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/static/style.css", http.StatusOK},
		{"GET", "/nope", http.StatusNotFound},
		{"PUT", "/events", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("expected security headers")
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	handler := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), recovery(zerolog.Nop()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	h := setupTest(t)
	handler := chain(http.HandlerFunc(h.HandleCategorySave), withBodyLimit(16))

	form := url.Values{"name": {strings.Repeat("x", 100)}}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm("/categories", form))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSlotValueRoundTrip(t *testing.T) {
	start := time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC)
	v := slotValue(planner.Slot{Start: start, End: start.Add(time.Hour)})
	if v != "2025-03-04T11:00|2025-03-04T12:00" {
		t.Fatalf("slotValue = %q", v)
	}
	s, err := parseSlotValue(v)
	if err != nil {
		t.Fatalf("parseSlotValue: %v", err)
	}
	if !s.Start.Equal(start) || !s.End.Equal(start.Add(time.Hour)) {
		t.Errorf("parsed = %v..%v", s.Start, s.End)
	}
}

func TestHeatLevel(t *testing.T) {
	tests := []struct{ count, want int }{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 3}, {5, 4}, {20, 4}}
	for _, tt := range tests {
		if got := heatLevel(tt.count); got != tt.want {
			t.Errorf("heatLevel(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}
