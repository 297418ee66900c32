package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/metrics"
	"github.com/hpungsan/agenda/internal/planner"
)

// AddEventInput contains parameters for the AddEvent operation.
type AddEventInput struct {
	User       string
	Title      string  // required
	CategoryID *string // optional; must name an existing category
	Kind       string  // "punctual" (default) or "recurring"

	Start string // HH:MM, required
	End   string // HH:MM, required, after Start

	// Punctual
	Date string // YYYY-MM-DD

	// Recurring
	Days  []int  // weekday indices, 0=Monday
	From  string // YYYY-MM-DD, inclusive
	Until string // YYYY-MM-DD, inclusive
}

// EventOutput is an event definition as returned to callers.
type EventOutput struct {
	ID         string  `json:"id"`
	User       string  `json:"user"`
	Title      string  `json:"title"`
	CategoryID *string `json:"category_id,omitempty"`
	Kind       string  `json:"kind"`
	Date       string  `json:"date,omitempty"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Days       []int   `json:"days,omitempty"`
	From       string  `json:"from,omitempty"`
	Until      string  `json:"until,omitempty"`
	CreatedAt  int64   `json:"created_at"`
}

func toEventOutput(e *db.Event) EventOutput {
	out := EventOutput{
		ID:         e.ID,
		User:       e.User,
		Title:      e.Title,
		CategoryID: e.CategoryID,
		CreatedAt:  e.CreatedAt,
	}
	switch s := e.Schedule.(type) {
	case planner.Punctual:
		out.Kind = string(planner.KindPunctual)
		out.Date = s.Date.String()
		out.Start, out.End = s.Start.String(), s.End.String()
	case planner.Recurring:
		out.Kind = string(planner.KindRecurring)
		out.Days = s.Days.Days()
		out.From, out.Until = s.From.String(), s.Until.String()
		out.Start, out.End = s.Start.String(), s.End.String()
	}
	return out
}

// buildSchedule turns loosely-typed input into a validated schedule.
func buildSchedule(input AddEventInput) (planner.Schedule, error) {
	start, err := parseTime("start", input.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("end", input.End)
	if err != nil {
		return nil, err
	}

	var sched planner.Schedule
	switch planner.Kind(strings.ToLower(strings.TrimSpace(input.Kind))) {
	case "", planner.KindPunctual:
		d, err := parseDate("date", input.Date)
		if err != nil {
			return nil, err
		}
		sched = planner.Punctual{Date: d, Start: start, End: end}
	case planner.KindRecurring:
		mask, err := daySetFromInts("days", input.Days)
		if err != nil {
			return nil, err
		}
		from, err := parseDate("from", input.From)
		if err != nil {
			return nil, err
		}
		until, err := parseDate("until", input.Until)
		if err != nil {
			return nil, err
		}
		sched = planner.Recurring{Days: mask, From: from, Until: until, Start: start, End: end}
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("kind must be %q or %q", planner.KindPunctual, planner.KindRecurring))
	}

	if err := planner.ValidateSchedule(sched); err != nil {
		return nil, err
	}
	return sched, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.NewInvalidRequest("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleChars {
		return "", errors.NewInvalidRequest(fmt.Sprintf("title exceeds %d characters", MaxTitleChars))
	}
	return title, nil
}

// resolveCategoryID trims categoryID and checks it names one of user's
// categories. A blank ID means uncategorized.
func resolveCategoryID(ctx context.Context, q db.Querier, user string, categoryID *string) (*string, error) {
	if categoryID == nil {
		return nil, nil
	}
	id := strings.TrimSpace(*categoryID)
	if id == "" {
		return nil, nil
	}
	if _, err := db.GetCategory(ctx, q, user, id); err != nil {
		return nil, err
	}
	return &id, nil
}

// AddEvent validates and stores a new event definition.
func AddEvent(ctx context.Context, database *sql.DB, cfg *config.Config, input AddEventInput) (*EventOutput, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	sched, err := buildSchedule(input)
	if err != nil {
		return nil, err
	}

	user := resolveUser(cfg, input.User)
	categoryID, err := resolveCategoryID(ctx, database, user, input.CategoryID)
	if err != nil {
		return nil, err
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	ev := &db.Event{
		Event: planner.Event{
			ID:         id,
			Title:      title,
			CategoryID: categoryID,
			Schedule:   sched,
		},
		User:      user,
		CreatedAt: time.Now().Unix(),
	}
	if err := db.InsertEvent(ctx, database, ev); err != nil {
		return nil, err
	}
	metrics.IncEventCreated(string(sched.Kind()))

	out := toEventOutput(ev)
	return &out, nil
}

// ListEventsInput contains parameters for the ListEvents operation.
type ListEventsInput struct {
	User string
	From string // optional YYYY-MM-DD; keep events that can occur on or after
	To   string // optional YYYY-MM-DD; keep events that can occur on or before
}

// ListEventsOutput contains the result of the ListEvents operation.
type ListEventsOutput struct {
	Items []EventOutput `json:"items"`
}

// ListEvents returns the user's event definitions in creation order.
func ListEvents(ctx context.Context, database *sql.DB, cfg *config.Config, input ListEventsInput) (*ListEventsOutput, error) {
	filter := db.ListEventsFilter{User: resolveUser(cfg, input.User)}
	if strings.TrimSpace(input.From) != "" {
		d, err := parseDate("from", input.From)
		if err != nil {
			return nil, err
		}
		filter.From = &d
	}
	if strings.TrimSpace(input.To) != "" {
		d, err := parseDate("to", input.To)
		if err != nil {
			return nil, err
		}
		filter.To = &d
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, errors.NewInvalidRequest("to must not be before from")
	}

	rows, err := db.ListEvents(ctx, database, filter)
	if err != nil {
		return nil, err
	}
	out := &ListEventsOutput{Items: make([]EventOutput, 0, len(rows))}
	for i := range rows {
		out.Items = append(out.Items, toEventOutput(&rows[i]))
	}
	return out, nil
}

// DeleteEventInput contains parameters for the DeleteEvent operation.
type DeleteEventInput struct {
	User string
	ID   string // required
}

// DeleteEventOutput contains the result of the DeleteEvent operation.
type DeleteEventOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteEvent removes an event definition. For recurring events this removes
// every occurrence.
func DeleteEvent(ctx context.Context, database *sql.DB, cfg *config.Config, input DeleteEventInput) (*DeleteEventOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := db.DeleteEvent(ctx, database, resolveUser(cfg, input.User), id); err != nil {
		return nil, err
	}
	return &DeleteEventOutput{ID: id, Deleted: true}, nil
}

