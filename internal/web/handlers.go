package web

import (
	"database/sql"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/ops"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// monthCellLimit is how many occurrences a month grid cell lists before "+N more".
const monthCellLimit = 3

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	clock    timeutil.Clock
	renderer *Renderer
	log      zerolog.Logger
}

func (h *Handlers) page(r *http.Request, title, nav string) PageData {
	return PageData{
		Title:   title,
		Version: h.renderer.version,
		Nav:     nav,
		User:    userParam(r),
	}
}

func (h *Handlers) today() timeutil.Date {
	return timeutil.DateOf(h.clock.Now())
}

// anchorDate reads ?date=, defaulting to today.
func (h *Handlers) anchorDate(r *http.Request) (timeutil.Date, error) {
	s := strings.TrimSpace(r.URL.Query().Get("date"))
	if s == "" {
		return h.today(), nil
	}
	d, err := timeutil.ParseDate(s)
	if err != nil {
		return timeutil.Date{}, errors.NewInvalidRequest("date: " + err.Error())
	}
	return d, nil
}

// HandleWeek handles GET /week: the week grid plus upcoming items and priorities.
func (h *Handlers) HandleWeek(w http.ResponseWriter, r *http.Request) {
	anchor, err := h.anchorDate(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	user := userParam(r)

	cal, err := ops.Calendar(r.Context(), h.db, h.cfg, h.clock, ops.CalendarInput{
		User: user,
		View: ops.ViewWeek,
		Date: anchor.String(),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, cal)
		return
	}

	upcoming, err := ops.Upcoming(r.Context(), h.db, h.cfg, h.clock, ops.UpcomingInput{User: user, Date: anchor.String()})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	prio, err := ops.GetPriorities(r.Context(), h.db, h.cfg, h.clock, ops.GetPrioritiesInput{User: user, Date: anchor.String()})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	start := timeutil.WeekStart(anchor)
	h.renderer.renderPage(w, r, "week", WeekPageData{
		PageData:   h.page(r, "Week of "+start.String(), "week"),
		WeekStart:  start,
		WeekEnd:    start.AddDays(6),
		Prev:       start.AddDays(-7),
		Next:       start.AddDays(7),
		Days:       h.columns(start, start.AddDays(6), cal.Occurrences, time.Month(0), 0),
		Upcoming:   upcoming.Occurrences,
		Priorities: prio,
	})
}

// HandleMonth handles GET /month: a Monday-first month grid.
func (h *Handlers) HandleMonth(w http.ResponseWriter, r *http.Request) {
	anchor, err := h.anchorDate(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	first, last := timeutil.MonthBounds(anchor)

	// The grid is padded to whole weeks; padding days show their events too.
	gridStart := timeutil.WeekStart(first)
	gridEnd := timeutil.WeekStart(last).AddDays(6)
	cal, err := ops.Calendar(r.Context(), h.db, h.cfg, h.clock, ops.CalendarInput{
		User: userParam(r),
		View: ops.ViewRange,
		From: gridStart.String(),
		To:   gridEnd.String(),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, cal)
		return
	}

	cells := h.columns(gridStart, gridEnd, cal.Occurrences, first.Month, monthCellLimit)
	weeks := make([][]DayColumn, 0, len(cells)/7)
	for i := 0; i+7 <= len(cells); i += 7 {
		weeks = append(weeks, cells[i:i+7])
	}

	label := first.Midnight().Format("January 2006")
	h.renderer.renderPage(w, r, "month", MonthPageData{
		PageData: h.page(r, label, "month"),
		Month:    label,
		First:    first,
		Prev:     first.AddDays(-1),
		Next:     last.AddDays(1),
		Weeks:    weeks,
	})
}

// HandleYear handles GET /year: the per-day heatmap.
func (h *Handlers) HandleYear(w http.ResponseWriter, r *http.Request) {
	year := parseIntParam(r, "year", h.today().Year)

	hm, err := ops.Heatmap(r.Context(), h.db, h.cfg, h.clock, ops.HeatmapInput{User: userParam(r), Year: year})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, hm)
		return
	}

	rows := make([]HeatmapRow, 7)
	for wd := range rows {
		rows[wd] = HeatmapRow{Label: weekdayName(wd), Cells: make([]HeatmapCellView, hm.Weeks)}
		for c := range rows[wd].Cells {
			rows[wd].Cells[c].Empty = true
		}
	}
	for _, cell := range hm.Days {
		if cell.Week < 0 || cell.Week >= hm.Weeks {
			continue
		}
		rows[cell.Weekday].Cells[cell.Week] = HeatmapCellView{
			Date:  cell.Date,
			Count: cell.Count,
			Level: heatLevel(cell.Count),
		}
	}

	h.renderer.renderPage(w, r, "year", YearPageData{
		PageData: h.page(r, strconv.Itoa(year), "year"),
		Year:     year,
		Total:    hm.Total,
		Rows:     rows,
	})
}

// HandleDay handles GET /day: one day's occurrences.
func (h *Handlers) HandleDay(w http.ResponseWriter, r *http.Request) {
	anchor, err := h.anchorDate(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	cal, err := ops.Calendar(r.Context(), h.db, h.cfg, h.clock, ops.CalendarInput{
		User: userParam(r),
		View: ops.ViewDay,
		Date: anchor.String(),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, cal)
		return
	}

	h.renderer.renderPage(w, r, "day", DayPageData{
		PageData: h.page(r, anchor.String(), "day"),
		Day:      h.columns(anchor, anchor, cal.Occurrences, time.Month(0), 0)[0],
		Prev:     anchor.AddDays(-1),
		Next:     anchor.AddDays(1),
	})
}

// columns buckets occurrences into one DayColumn per date in [from, to].
// A limit > 0 truncates each day's list; month marks days inside the focus month.
func (h *Handlers) columns(from, to timeutil.Date, occs []planner.Occurrence, month time.Month, limit int) []DayColumn {
	byDay := make(map[timeutil.Date][]planner.Occurrence)
	for _, o := range occs {
		d := timeutil.DateOf(o.Start)
		byDay[d] = append(byDay[d], o)
	}

	today := h.today()
	cols := make([]DayColumn, 0, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		col := DayColumn{
			Date:        d,
			InMonth:     month == 0 || d.Month == month,
			Today:       d.Equal(today),
			Occurrences: byDay[d],
		}
		if limit > 0 && len(col.Occurrences) > limit {
			col.Hidden = len(col.Occurrences) - limit
			col.Occurrences = col.Occurrences[:limit]
		}
		cols = append(cols, col)
	}
	return cols
}

// HandleEvents handles GET /events: stored definitions and the add form.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	user := userParam(r)
	events, err := ops.ListEvents(r.Context(), h.db, h.cfg, ops.ListEventsInput{
		User: user,
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, events)
		return
	}

	cats, err := ops.ListCategories(r.Context(), h.db, h.cfg, ops.ListCategoriesInput{User: user})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	names := make(map[string]string, len(cats.Items))
	for _, c := range cats.Items {
		names[c.ID] = c.Name
	}

	h.renderer.renderPage(w, r, "events", EventsPageData{
		PageData:      h.page(r, "Events", "events"),
		Items:         events.Items,
		Categories:    cats.Items,
		CategoryNames: names,
		Today:         h.today(),
	})
}

// HandleEventCreate handles POST /events.
func (h *Handlers) HandleEventCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	days, err := formInts(r.PostForm["days"])
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("days: "+err.Error()))
		return
	}

	out, err := ops.AddEvent(r.Context(), h.db, h.cfg, ops.AddEventInput{
		User:       formUser(r),
		Title:      r.PostFormValue("title"),
		CategoryID: ptrString(r.PostFormValue("category_id")),
		Kind:       r.PostFormValue("kind"),
		Start:      r.PostFormValue("start"),
		End:        r.PostFormValue("end"),
		Date:       r.PostFormValue("date"),
		Days:       days,
		From:       r.PostFormValue("from"),
		Until:      r.PostFormValue("until"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.done(w, r, http.StatusCreated, out, withUser("/events", out.User))
}

// HandleEventDelete handles DELETE /events/{id} and POST /events/{id}/delete.
func (h *Handlers) HandleEventDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("event ID is required"))
		return
	}

	user := formUser(r)
	result, err := ops.DeleteEvent(r.Context(), h.db, h.cfg, ops.DeleteEventInput{User: user, ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.done(w, r, http.StatusOK, result, withUser("/events", user))
}

// HandleCategories handles GET /categories.
func (h *Handlers) HandleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := ops.ListCategories(r.Context(), h.db, h.cfg, ops.ListCategoriesInput{User: userParam(r)})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, cats)
		return
	}

	h.renderer.renderPage(w, r, "categories", CategoriesPageData{
		PageData:     h.page(r, "Categories", "categories"),
		Items:        cats.Items,
		DefaultColor: h.cfg.DefaultCategoryColor,
	})
}

// HandleCategorySave handles POST /categories: create or recolor by name.
func (h *Handlers) HandleCategorySave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	out, err := ops.SaveCategory(r.Context(), h.db, h.cfg, ops.SaveCategoryInput{
		User:  formUser(r),
		Name:  r.PostFormValue("name"),
		Color: r.PostFormValue("color"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.done(w, r, http.StatusOK, out, withUser("/categories", out.User))
}

// HandleCategoryDelete handles DELETE /categories/{id} and POST /categories/{id}/delete.
func (h *Handlers) HandleCategoryDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("category ID is required"))
		return
	}

	user := formUser(r)
	result, err := ops.DeleteCategory(r.Context(), h.db, h.cfg, ops.DeleteCategoryInput{User: user, ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.done(w, r, http.StatusOK, result, withUser("/categories", user))
}

// HandlePriorities handles GET /priorities: the week's goals and top three.
func (h *Handlers) HandlePriorities(w http.ResponseWriter, r *http.Request) {
	anchor, err := h.anchorDate(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	prio, err := ops.GetPriorities(r.Context(), h.db, h.cfg, h.clock, ops.GetPrioritiesInput{
		User: userParam(r),
		Date: anchor.String(),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, prio)
		return
	}

	var items [3]db.PriorityItem
	copy(items[:], prio.Items)

	start := timeutil.WeekStart(anchor)
	h.renderer.renderPage(w, r, "priorities", PrioritiesPageData{
		PageData:   h.page(r, "Priorities", "priorities"),
		Priorities: prio,
		Items:      items,
		GoalsHTML:  renderMarkdown(prio.Goals),
		Prev:       start.AddDays(-7),
		Next:       start.AddDays(7),
	})
}

// HandlePrioritiesSave handles POST /priorities.
func (h *Handlers) HandlePrioritiesSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	items := make([]db.PriorityItem, 3)
	for i := range items {
		n := strconv.Itoa(i + 1)
		items[i] = db.PriorityItem{
			Text: r.PostFormValue("p" + n),
			Done: isTruthy(r.PostFormValue("p" + n + "_done")),
		}
	}

	out, err := ops.SavePriorities(r.Context(), h.db, h.cfg, h.clock, ops.SavePrioritiesInput{
		User:  formUser(r),
		Date:  r.PostFormValue("date"),
		Goals: r.PostFormValue("goals"),
		Items: items,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	target := withUser("/priorities", out.User) + "&date=" + out.WeekStart
	h.done(w, r, http.StatusOK, out, target)
}

// HandleSuggest handles GET /suggest. The form is shown empty until it is
// submitted (any of date, days or duration present), then with results.
func (h *Handlers) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := userParam(r)

	cats, err := ops.ListCategories(r.Context(), h.db, h.cfg, ops.ListCategoriesInput{User: user})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	days, err := formInts(q["days"])
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("days: "+err.Error()))
		return
	}
	form := SuggestForm{
		Date:           q.Get("date"),
		Days:           days,
		Duration:       parseIntParam(r, "duration", h.cfg.DefaultDurationMinutes),
		WindowStart:    valueOr(q.Get("window_start"), h.cfg.DefaultWindowStart),
		WindowEnd:      valueOr(q.Get("window_end"), h.cfg.DefaultWindowEnd),
		IgnoreExisting: parseBoolParam(r, "ignore_existing"),
		All:            parseBoolParam(r, "all"),
	}
	data := SuggestPageData{
		PageData:   h.page(r, "Suggest", "suggest"),
		Form:       form,
		Categories: cats.Items,
	}

	if !q.Has("date") && !q.Has("days") && !q.Has("duration") {
		h.renderer.renderPage(w, r, "suggest", data)
		return
	}

	out, err := ops.Suggest(r.Context(), h.db, h.cfg, h.clock, ops.SuggestInput{
		User:            user,
		Date:            form.Date,
		Days:            form.Days,
		DurationMinutes: form.Duration,
		WindowStart:     form.WindowStart,
		WindowEnd:       form.WindowEnd,
		IgnoreExisting:  form.IgnoreExisting,
		All:             form.All,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	data.Ran = true
	data.WeekStart = out.WeekStart
	data.Slots = out.Slots
	h.renderer.renderPage(w, r, "suggest", data)
}

// HandleSuggestBook handles POST /suggest/book: store chosen slots as events.
func (h *Handlers) HandleSuggestBook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	raw := r.PostForm["slot"]
	if len(raw) == 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("select at least one slot"))
		return
	}
	slots := make([]planner.Slot, 0, len(raw))
	for _, v := range raw {
		s, err := parseSlotValue(v)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest(err.Error()))
			return
		}
		slots = append(slots, s)
	}

	out, err := ops.BookSlots(r.Context(), h.db, h.cfg, ops.BookSlotsInput{
		User:       formUser(r),
		Title:      r.PostFormValue("title"),
		CategoryID: ptrString(r.PostFormValue("category_id")),
		Slots:      slots,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	target := withUser("/week", out.User) + "&date=" + timeutil.DateOf(slots[0].Start).String()
	h.done(w, r, http.StatusCreated, out, target)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		renderJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"ok": true, "version": h.renderer.version})
}

// done answers a successful mutation: HX-Redirect for htmx, the result for
// JSON clients, and a redirect to target otherwise.
func (h *Handlers) done(w http.ResponseWriter, r *http.Request, jsonStatus int, result any, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, jsonStatus, result)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// userParam reads the user key from the query string; ops applies the default.
func userParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("user"))
}

// formUser prefers the posted user field, falling back to the query string.
func formUser(r *http.Request) string {
	if u := strings.TrimSpace(r.PostFormValue("user")); u != "" {
		return u
	}
	return userParam(r)
}

// withUser appends ?user= to path.
func withUser(path, user string) string {
	return path + "?user=" + url.QueryEscape(user)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	return isTruthy(r.URL.Query().Get(name))
}

func isTruthy(s string) bool {
	return s == "true" || s == "1" || s == "on"
}

func formInts(values []string) ([]int, error) {
	out := make([]int, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// ptrString returns a pointer to s if non-empty, nil otherwise.
func ptrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
