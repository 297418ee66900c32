package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/metrics"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// SuggestInput contains parameters for the Suggest operation.
type SuggestInput struct {
	User            string
	Date            string // any day of the week to search; default: today
	Days            []int  // preferred weekdays; empty: first free slot of the week
	DurationMinutes int    // default: cfg.DefaultDurationMinutes
	WindowStart     string // HH:MM; default: cfg.DefaultWindowStart
	WindowEnd       string // HH:MM; default: cfg.DefaultWindowEnd

	IgnoreExisting bool // treat every day as free
	KeepPast       bool // search today's window from its start, not from now
	All            bool // return every slot found instead of only the next one

	// Book stores the slots as punctual events titled Title.
	Book       bool
	Title      string
	CategoryID *string
}

// SuggestOutput contains the result of the Suggest operation.
type SuggestOutput struct {
	WeekStart string         `json:"week_start"`
	Slots     []planner.Slot `json:"slots"`
	Booked    []EventOutput  `json:"booked,omitempty"`
}

// Suggest searches the week containing Date for free slots and optionally
// books them.
func Suggest(ctx context.Context, database *sql.DB, cfg *config.Config, clock timeutil.Clock, input SuggestInput) (*SuggestOutput, error) {
	now := clock.Now()

	anchor, err := parseDateOr("date", input.Date, timeutil.DateOf(now))
	if err != nil {
		return nil, err
	}
	days, err := daySetFromInts("days", input.Days)
	if err != nil {
		return nil, err
	}
	winStart, err := parseTimeOr("window_start", input.WindowStart, cfg.DefaultWindowStart)
	if err != nil {
		return nil, err
	}
	winEnd, err := parseTimeOr("window_end", input.WindowEnd, cfg.DefaultWindowEnd)
	if err != nil {
		return nil, err
	}
	duration := input.DurationMinutes
	if duration == 0 {
		duration = cfg.DefaultDurationMinutes
	}
	var title string
	if input.Book {
		if title, err = validateTitle(input.Title); err != nil {
			return nil, err
		}
	}

	user := resolveUser(cfg, input.User)
	ws := timeutil.WeekStart(anchor)

	var occs []planner.Occurrence
	if !input.IgnoreExisting {
		if occs, err = expandRange(ctx, database, cfg, user, ws, ws.AddDays(6)); err != nil {
			return nil, err
		}
	}

	slots, err := planner.Suggest(occs, planner.SuggestRequest{
		WeekStart:       ws,
		Days:            days,
		DurationMinutes: duration,
		WindowStart:     winStart,
		WindowEnd:       winEnd,
		RespectExisting: !input.IgnoreExisting,
		ClipToNow:       !input.KeepPast,
		OnlyNext:        !input.All,
	}, timeutil.CeilMinute(now))
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		metrics.IncSuggestion("none")
	} else {
		metrics.IncSuggestion("found")
	}

	out := &SuggestOutput{WeekStart: ws.String(), Slots: slots}
	if input.Book && len(slots) > 0 {
		booked, err := BookSlots(ctx, database, cfg, BookSlotsInput{
			User:       user,
			Title:      title,
			CategoryID: input.CategoryID,
			Slots:      slots,
		})
		if err != nil {
			return nil, err
		}
		out.Booked = booked.Items
	}
	return out, nil
}

// BookSlotsInput contains parameters for the BookSlots operation.
type BookSlotsInput struct {
	User       string
	Title      string // required
	CategoryID *string
	Slots      []planner.Slot // required; each within a single day
}

// BookSlotsOutput lists the events created by BookSlots.
type BookSlotsOutput struct {
	User  string        `json:"user"`
	Items []EventOutput `json:"items"`
}

// BookSlots stores each slot as a punctual event. Either every slot is
// stored or none is. Events are whole minutes: a start inside a minute is
// rounded up and an end is truncated, so the event never leaves its slot.
func BookSlots(ctx context.Context, database *sql.DB, cfg *config.Config, input BookSlotsInput) (*BookSlotsOutput, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	if len(input.Slots) == 0 {
		return nil, errors.NewInvalidRequest("slots is required")
	}

	user := resolveUser(cfg, input.User)
	categoryID, err := resolveCategoryID(ctx, database, user, input.CategoryID)
	if err != nil {
		return nil, err
	}

	createdAt := time.Now().Unix()
	events := make([]db.Event, 0, len(input.Slots))
	for _, s := range input.Slots {
		day := timeutil.DateOf(s.Start)
		if !timeutil.DateOf(s.End).Equal(day) {
			return nil, errors.NewInvalidRequest("slot " + timeutil.FormatDateTime(s.Start) + " spans midnight")
		}
		start := timeutil.CeilMinute(s.Start)
		if !timeutil.DateOf(start).Equal(day) {
			return nil, errors.NewInvalidRequest("slot " + timeutil.FormatDateTime(s.Start) + " spans midnight")
		}
		sched := planner.Punctual{
			Date:  day,
			Start: timeutil.TimeOfDayOf(start),
			End:   timeutil.TimeOfDayOf(s.End),
		}
		if err := planner.ValidateSchedule(sched); err != nil {
			return nil, err
		}
		id, err := generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		events = append(events, db.Event{
			Event: planner.Event{
				ID:         id,
				Title:      title,
				CategoryID: categoryID,
				Schedule:   sched,
			},
			User:      user,
			CreatedAt: createdAt,
		})
	}

	if err := db.InsertEventsTx(ctx, database, events); err != nil {
		return nil, err
	}

	out := &BookSlotsOutput{User: user, Items: make([]EventOutput, 0, len(events))}
	for i := range events {
		metrics.IncEventCreated(string(planner.KindPunctual))
		out.Items = append(out.Items, toEventOutput(&events[i]))
	}
	return out, nil
}
