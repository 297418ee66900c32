package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// icsEvent is a VEVENT that maps onto an event definition.
type icsEvent struct {
	uid      string
	title    string
	category string
	schedule planner.Schedule
}

// importICS stores every representable VEVENT as a new event of user.
// Categories are matched by name and created when missing. In error mode a
// single unrepresentable VEVENT aborts the import.
func importICS(ctx context.Context, database *sql.DB, cfg *config.Config, r io.Reader, user string, mode ImportMode) (*ImportOutput, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return &ImportOutput{Errors: []ImportError{{
			Code:    CodeParseError,
			Message: fmt.Sprintf("invalid calendar: %v", err),
		}}}, nil
	}

	out := &ImportOutput{Errors: []ImportError{}}
	var parsed []icsEvent
	for _, ve := range cal.Events() {
		ev, code, err := fromVEvent(ve)
		if err != nil {
			out.Errors = append(out.Errors, ImportError{
				ID:      ev.uid,
				Type:    RecordEvent,
				Code:    code,
				Message: err.Error(),
			})
			out.Skipped++
			continue
		}
		parsed = append(parsed, ev)
	}
	if mode == ImportModeError && len(out.Errors) > 0 {
		out.Skipped = 0
		return out, nil
	}

	createdAt := time.Now().Unix()
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		categoryIDs := make(map[string]*string)
		for _, ev := range parsed {
			if err := checkCancelled(ctx, "import"); err != nil {
				return err
			}
			categoryID, err := icsCategoryID(ctx, tx, cfg, user, ev.category, categoryIDs, createdAt)
			if err != nil {
				return err
			}
			id, err := generateULID()
			if err != nil {
				return errors.NewInternal(err)
			}
			row := &db.Event{
				Event: planner.Event{
					ID:         id,
					Title:      ev.title,
					CategoryID: categoryID,
					Schedule:   ev.schedule,
				},
				User:      user,
				CreatedAt: createdAt,
			}
			if err := db.InsertEvent(ctx, tx, row); err != nil {
				return err
			}
			out.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// icsCategoryID resolves a CATEGORIES name to a category ID, creating the
// category on first use.
func icsCategoryID(ctx context.Context, q db.Querier, cfg *config.Config, user, name string, cache map[string]*string, now int64) (*string, error) {
	norm := planner.Normalize(name)
	if norm == "" {
		return nil, nil
	}
	if id, ok := cache[norm]; ok {
		return id, nil
	}

	existing, err := db.GetCategoryByName(ctx, q, user, norm)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if existing == nil {
		id, err := generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		existing, err = db.UpsertCategory(ctx, q, &db.Category{
			ID:        id,
			User:      user,
			Name:      strings.TrimSpace(name),
			NameNorm:  norm,
			Color:     strings.ToUpper(cfg.DefaultCategoryColor),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return nil, err
		}
	}
	cache[norm] = &existing.ID
	return &existing.ID, nil
}

// fromVEvent converts a VEVENT. On failure it returns the import error code
// to report.
func fromVEvent(ve *ical.VEvent) (icsEvent, string, error) {
	var ev icsEvent
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.uid = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.title = strings.TrimSpace(p.Value)
	}
	if ev.title == "" {
		return ev, CodeInvalidRecord, fmt.Errorf("event has no summary")
	}
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		ev.category, _, _ = strings.Cut(p.Value, ",")
	}

	dtstart := ve.GetProperty(ical.ComponentPropertyDtStart)
	dtend := ve.GetProperty(ical.ComponentPropertyDtEnd)
	if dtstart == nil || dtend == nil {
		return ev, CodeUnsupported, fmt.Errorf("event needs both DTSTART and DTEND")
	}
	start, err := parseICSDateTime(dtstart.Value, dtstart.ICalParameters)
	if err != nil {
		return ev, CodeUnsupported, fmt.Errorf("DTSTART: %v", err)
	}
	end, err := parseICSDateTime(dtend.Value, dtend.ICalParameters)
	if err != nil {
		return ev, CodeUnsupported, fmt.Errorf("DTEND: %v", err)
	}
	day := timeutil.DateOf(start)
	if !timeutil.DateOf(end).Equal(day) {
		return ev, CodeUnsupported, fmt.Errorf("event spans midnight")
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		mask, until, err := planner.ParseWeeklyRule(p.Value, day)
		if err != nil {
			return ev, CodeUnsupported, err
		}
		ev.schedule = planner.Recurring{
			Days:  mask,
			From:  day,
			Until: until,
			Start: timeutil.TimeOfDayOf(start),
			End:   timeutil.TimeOfDayOf(end),
		}
	} else {
		ev.schedule = planner.Punctual{
			Date:  day,
			Start: timeutil.TimeOfDayOf(start),
			End:   timeutil.TimeOfDayOf(end),
		}
	}

	if err := planner.ValidateSchedule(ev.schedule); err != nil {
		return ev, CodeInvalidRecord, err
	}
	return ev, "", nil
}

// parseICSDateTime reads a DATE-TIME value as a wall clock. UTC values and
// TZID parameters are taken at face value; all-day DATE values are rejected.
func parseICSDateTime(value string, params map[string][]string) (time.Time, error) {
	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return time.Time{}, fmt.Errorf("all-day events are not supported")
	}
	v := strings.TrimSuffix(strings.TrimSpace(value), "Z")
	if !strings.Contains(v, "T") {
		return time.Time{}, fmt.Errorf("all-day events are not supported")
	}
	t, err := time.Parse(icsFloating, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date-time %q", value)
	}
	return t, nil
}
