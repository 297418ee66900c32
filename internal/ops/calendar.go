package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/metrics"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// Calendar views.
const (
	ViewDay   = "day"
	ViewWeek  = "week"
	ViewMonth = "month"
	ViewYear  = "year"
	ViewRange = "range"
)

// CalendarInput contains parameters for the Calendar operation.
type CalendarInput struct {
	User string
	View string // day, week (default), month, year or range
	Date string // anchor date for day/week/month/year; default: today
	From string // range view only
	To   string // range view only
}

// CalendarOutput contains the occurrences of a calendar view.
type CalendarOutput struct {
	View        string               `json:"view"`
	From        string               `json:"from"`
	To          string               `json:"to"`
	Occurrences []planner.Occurrence `json:"occurrences"`
}

// viewRange resolves a view and anchor to an inclusive date range.
func viewRange(view string, anchor timeutil.Date, from, to string) (timeutil.Date, timeutil.Date, error) {
	switch view {
	case ViewDay:
		return anchor, anchor, nil
	case "", ViewWeek:
		ws := timeutil.WeekStart(anchor)
		return ws, ws.AddDays(6), nil
	case ViewMonth:
		first, last := timeutil.MonthBounds(anchor)
		return first, last, nil
	case ViewYear:
		first, last := timeutil.YearBounds(anchor.Year)
		return first, last, nil
	case ViewRange:
		lo, err := parseDate("from", from)
		if err != nil {
			return timeutil.Date{}, timeutil.Date{}, err
		}
		hi, err := parseDate("to", to)
		if err != nil {
			return timeutil.Date{}, timeutil.Date{}, err
		}
		if hi.Before(lo) {
			return timeutil.Date{}, timeutil.Date{}, errors.NewInvalidRequest("to must not be before from")
		}
		return lo, hi, nil
	default:
		return timeutil.Date{}, timeutil.Date{}, errors.NewInvalidRequest(
			fmt.Sprintf("view must be one of day, week, month, year, range (got %q)", view))
	}
}

// expandRange loads a snapshot for [from, to] and expands it.
func expandRange(ctx context.Context, database *sql.DB, cfg *config.Config, user string, from, to timeutil.Date) ([]planner.Occurrence, error) {
	if days := from.DaysUntil(to) + 1; cfg != nil && cfg.MaxRangeDays > 0 && days > cfg.MaxRangeDays {
		return nil, errors.NewRangeTooLarge(cfg.MaxRangeDays, days)
	}
	snap, err := loadSnapshot(ctx, database, user, from, to)
	if err != nil {
		return nil, err
	}
	if err := checkCancelled(ctx, "calendar"); err != nil {
		return nil, err
	}
	occs := planner.Expand(snap.events, snap.categories, from, to)
	metrics.ObserveExpansion(len(occs))
	return occs, nil
}

// Calendar expands the user's events over the requested view.
func Calendar(ctx context.Context, database *sql.DB, cfg *config.Config, clock timeutil.Clock, input CalendarInput) (*CalendarOutput, error) {
	view := strings.ToLower(strings.TrimSpace(input.View))
	anchor, err := parseDateOr("date", input.Date, timeutil.DateOf(clock.Now()))
	if err != nil {
		return nil, err
	}
	from, to, err := viewRange(view, anchor, input.From, input.To)
	if err != nil {
		return nil, err
	}
	if view == "" {
		view = ViewWeek
	}

	occs, err := expandRange(ctx, database, cfg, resolveUser(cfg, input.User), from, to)
	if err != nil {
		return nil, err
	}
	return &CalendarOutput{
		View:        view,
		From:        from.String(),
		To:          to.String(),
		Occurrences: occs,
	}, nil
}

// UpcomingInput contains parameters for the Upcoming operation.
type UpcomingInput struct {
	User  string
	Date  string // any day of the week to look at; default: today
	Limit int    // default: cfg.UpcomingLimit
}

// UpcomingOutput lists the next occurrences of a week.
type UpcomingOutput struct {
	WeekStart   string               `json:"week_start"`
	Occurrences []planner.Occurrence `json:"occurrences"`
}

// Upcoming returns the occurrences of the week containing Date that start
// at or after now, earliest first.
func Upcoming(ctx context.Context, database *sql.DB, cfg *config.Config, clock timeutil.Clock, input UpcomingInput) (*UpcomingOutput, error) {
	now := clock.Now()
	anchor, err := parseDateOr("date", input.Date, timeutil.DateOf(now))
	if err != nil {
		return nil, err
	}
	if input.Limit < 0 {
		return nil, errors.NewInvalidRequest("limit must not be negative")
	}
	limit := input.Limit
	if limit == 0 {
		limit = cfg.UpcomingLimit
	}

	ws := timeutil.WeekStart(anchor)
	occs, err := expandRange(ctx, database, cfg, resolveUser(cfg, input.User), ws, ws.AddDays(6))
	if err != nil {
		return nil, err
	}

	next := make([]planner.Occurrence, 0, limit)
	for _, o := range occs {
		if o.Start.Before(now) {
			continue
		}
		next = append(next, o)
		if limit > 0 && len(next) == limit {
			break
		}
	}
	return &UpcomingOutput{WeekStart: ws.String(), Occurrences: next}, nil
}

// HeatmapInput contains parameters for the Heatmap operation.
type HeatmapInput struct {
	User string
	Year int // default: current year
}

// HeatmapCell is one day of the year.
type HeatmapCell struct {
	Date    string `json:"date"`
	Weekday int    `json:"weekday"`
	Week    int    `json:"week"`
	Count   int    `json:"count"`
}

// HeatmapOutput holds one cell per day of the year.
type HeatmapOutput struct {
	Year  int           `json:"year"`
	Weeks int           `json:"weeks"`
	Total int           `json:"total"`
	Days  []HeatmapCell `json:"days"`
}

// Heatmap counts occurrences per day of a year and places every day in a
// week column. Early-January days that belong to the previous ISO year land
// in column 0, late-December days that belong to the next one land after the
// last ISO week.
func Heatmap(ctx context.Context, database *sql.DB, cfg *config.Config, clock timeutil.Clock, input HeatmapInput) (*HeatmapOutput, error) {
	year := input.Year
	if year == 0 {
		year = clock.Now().Year()
	}
	if year < 1 || year > 9999 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("year %d out of range", year))
	}

	first, last := timeutil.YearBounds(year)
	user := resolveUser(cfg, input.User)
	snap, err := loadSnapshot(ctx, database, user, first, last)
	if err != nil {
		return nil, err
	}
	occs := planner.Expand(snap.events, snap.categories, first, last)
	metrics.ObserveExpansion(len(occs))

	counts := make(map[timeutil.Date]int, len(occs))
	for _, o := range occs {
		counts[timeutil.DateOf(o.Start)]++
	}

	n := first.DaysUntil(last) + 1
	out := &HeatmapOutput{Year: year, Total: len(occs), Days: make([]HeatmapCell, 0, n)}
	maxWeek := 0
	var spill []int // December days in ISO week 1 of the next year
	for d := first; !d.After(last); d = d.AddDays(1) {
		week := timeutil.ISOWeek(d)
		switch {
		case d.Month == time.January && week > 50:
			week = 0
		case d.Month == time.December && week == 1:
			spill = append(spill, len(out.Days))
		case week > maxWeek:
			maxWeek = week
		}
		out.Days = append(out.Days, HeatmapCell{
			Date:    d.String(),
			Weekday: d.Weekday(),
			Week:    week,
			Count:   counts[d],
		})
	}
	for _, i := range spill {
		out.Days[i].Week = maxWeek + 1
	}
	out.Weeks = maxWeek + 1
	if len(spill) > 0 {
		out.Weeks++
	}
	return out, nil
}
