package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/ops"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// uncategorizedColor is shown for events without a (surviving) category.
const uncategorizedColor = "#999999"

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "week", "month", "year", "day", "events", ...
	User    string
}

// DayColumn is one day cell of the week, month or day views.
type DayColumn struct {
	Date        timeutil.Date
	InMonth     bool
	Today       bool
	Occurrences []planner.Occurrence
	Hidden      int // occurrences not shown in a compact cell
}

// WeekPageData is the template data for the week view.
type WeekPageData struct {
	PageData
	WeekStart  timeutil.Date
	WeekEnd    timeutil.Date
	Prev       timeutil.Date
	Next       timeutil.Date
	Days       []DayColumn
	Upcoming   []planner.Occurrence
	Priorities *ops.PrioritiesOutput
}

// MonthPageData is the template data for the month grid.
type MonthPageData struct {
	PageData
	Month string
	First timeutil.Date
	Prev  timeutil.Date
	Next  timeutil.Date
	Weeks [][]DayColumn
}

// HeatmapRow is one weekday row of the year heatmap.
type HeatmapRow struct {
	Label string
	Cells []HeatmapCellView
}

// HeatmapCellView is one cell of the year heatmap. Empty cells pad the
// first and last week columns.
type HeatmapCellView struct {
	Date  string
	Count int
	Level int
	Empty bool
}

// YearPageData is the template data for the year heatmap.
type YearPageData struct {
	PageData
	Year  int
	Total int
	Rows  []HeatmapRow
}

// DayPageData is the template data for a single day.
type DayPageData struct {
	PageData
	Day  DayColumn
	Prev timeutil.Date
	Next timeutil.Date
}

// EventsPageData is the template data for the event definitions page.
type EventsPageData struct {
	PageData
	Items         []ops.EventOutput
	Categories    []ops.CategoryOutput
	CategoryNames map[string]string
	Today         timeutil.Date
}

// CategoriesPageData is the template data for the categories page.
type CategoriesPageData struct {
	PageData
	Items        []ops.CategoryOutput
	DefaultColor string
}

// PrioritiesPageData is the template data for the weekly priorities page.
type PrioritiesPageData struct {
	PageData
	Priorities *ops.PrioritiesOutput
	Items      [3]db.PriorityItem
	GoalsHTML  template.HTML
	Prev       timeutil.Date
	Next       timeutil.Date
}

// SuggestForm echoes the suggestion form fields back into the page.
type SuggestForm struct {
	Date           string
	Days           []int
	Duration       int
	WindowStart    string
	WindowEnd      string
	IgnoreExisting bool
	All            bool
}

// SuggestPageData is the template data for the slot suggestion page.
type SuggestPageData struct {
	PageData
	Form       SuggestForm
	Ran        bool
	WeekStart  string
	Slots      []planner.Slot
	Categories []ops.CategoryOutput
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	log       zerolog.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, log zerolog.Logger) *Renderer {
	funcMap := template.FuncMap{
		"add":           func(a, b int) int { return a + b },
		"sub":           func(a, b int) int { return a - b },
		"clock":         formatClock,
		"formatTime":    formatTime,
		"formatDay":     formatDay,
		"weekday":       func(t time.Time) int { return timeutil.DateOf(t).Weekday() },
		"weekdayName":   weekdayName,
		"categoryColor": categoryColor,
		"categoryName":  categoryName,
		"percent":       func(f float64) int { return int(f*100 + 0.5) },
		"hasDay":        hasDay,
		"slotValue":     slotValue,
		"deref":         deref,
		"hasValue":      hasValue,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"week":       "week.html",
		"month":      "month.html",
		"year":       "year.html",
		"day":        "day.html",
		"events":     "events.html",
		"categories": "categories.html",
		"priorities": "priorities.html",
		"suggest":    "suggest.html",
		"error":      "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error().Str("template", name).Msg("template not found")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if req != nil && isHTMX(req) {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.log.Error().Err(err).Str("template", name).Msg("template execution error")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	aErr := errors.As(err)

	status := aErr.Status
	message := aErr.Message
	if aErr.Code == errors.ErrInternal {
		r.log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
		message = "an internal error occurred"
	}

	// HTMX request: return HTML fragment
	if isHTMX(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	// JSON request
	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(aErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.TaskList, extension.Strikethrough))

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the source is omitted (goldmark's default).
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatClock formats the wall-clock time of a floating datetime as HH:MM.
func formatClock(t time.Time) string {
	return t.Format("15:04")
}

// formatDay formats the date part of a floating datetime as "Jan 2".
func formatDay(t time.Time) string {
	return t.Format("Jan 2")
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

func weekdayName(d int) string {
	if d < 0 || d > 6 {
		return ""
	}
	return planner.WeekdayNames[d]
}

func categoryColor(c *planner.Category) string {
	if c == nil || c.Color == "" {
		return uncategorizedColor
	}
	return c.Color
}

func categoryName(c *planner.Category) string {
	if c == nil {
		return "Uncategorized"
	}
	return c.Name
}

func hasDay(days []int, d int) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}

// slotValue encodes a slot for a hidden form field; parseSlotValue reverses it.
func slotValue(s planner.Slot) string {
	return timeutil.FormatDateTime(s.Start) + "|" + timeutil.FormatDateTime(s.End)
}

func parseSlotValue(v string) (planner.Slot, error) {
	start, end, ok := strings.Cut(v, "|")
	if !ok {
		return planner.Slot{}, fmt.Errorf("slot %q must be start|end", v)
	}
	s, err := timeutil.ParseDateTime(start)
	if err != nil {
		return planner.Slot{}, err
	}
	e, err := timeutil.ParseDateTime(end)
	if err != nil {
		return planner.Slot{}, err
	}
	return planner.Slot{Start: s, End: e}, nil
}

// heatLevel buckets a day's occurrence count into five shades.
func heatLevel(count int) int {
	switch {
	case count <= 0:
		return 0
	case count == 1:
		return 1
	case count == 2:
		return 2
	case count <= 4:
		return 3
	default:
		return 4
	}
}

// deref dereferences a pointer, returning the zero value if nil.
func deref(v any) any {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Zero(rv.Type().Elem()).Interface()
		}
		return rv.Elem().Interface()
	}
	return v
}

// hasValue checks if a pointer value is non-nil.
func hasValue(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return !rv.IsNil()
	}
	return true
}
