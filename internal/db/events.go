package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// Event is a stored event definition row.
type Event struct {
	planner.Event
	User      string
	CreatedAt int64
}

const eventColumns = `id, user_id, title, category_id, kind, date, start_time, end_time,
	days, range_start, range_end, created_at`

// eventArgs flattens the schedule union into the nullable row shape.
func eventArgs(e *Event) ([]any, error) {
	var (
		date, days, rangeStart, rangeEnd sql.NullString
		start, end                       string
		kind                             planner.Kind
	)
	switch s := e.Schedule.(type) {
	case planner.Punctual:
		kind = planner.KindPunctual
		date = sql.NullString{String: s.Date.String(), Valid: true}
		start, end = s.Start.String(), s.End.String()
	case planner.Recurring:
		kind = planner.KindRecurring
		days = sql.NullString{String: s.Days.String(), Valid: true}
		rangeStart = sql.NullString{String: s.From.String(), Valid: true}
		rangeEnd = sql.NullString{String: s.Until.String(), Valid: true}
		start, end = s.Start.String(), s.End.String()
	default:
		return nil, errors.NewInternal(fmt.Errorf("event %s has no schedule", e.ID))
	}
	return []any{
		e.ID, e.User, e.Title, toNullString(e.CategoryID), string(kind), date, start, end,
		days, rangeStart, rangeEnd, e.CreatedAt,
	}, nil
}

// InsertEvent stores a new event definition.
func InsertEvent(ctx context.Context, q Querier, e *Event) error {
	args, err := eventArgs(e)
	if err != nil {
		return err
	}
	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// InsertEventsTx stores all events or none.
func InsertEventsTx(ctx context.Context, db *sql.DB, events []Event) error {
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		for i := range events {
			if err := InsertEvent(ctx, tx, &events[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertEvent inserts e or overwrites the event with the same ID.
func UpsertEvent(ctx context.Context, q Querier, e *Event) error {
	args, err := eventArgs(e)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			category_id = excluded.category_id,
			kind = excluded.kind,
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			days = excluded.days,
			range_start = excluded.range_start,
			range_end = excluded.range_end,
			created_at = excluded.created_at
	`
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetEvent retrieves a user's event by ID.
func GetEvent(ctx context.Context, q Querier, user, id string) (*Event, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE user_id = ? AND id = ?`, user, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("event", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return e, nil
}

// ListEventsFilter narrows ListEvents.
type ListEventsFilter struct {
	User string // empty: all users

	// From/To keep only events that can occur inside [From, To].
	From, To *timeutil.Date
}

// ListEvents returns event definitions ordered by creation.
func ListEvents(ctx context.Context, q Querier, f ListEventsFilter) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	var args []any
	if f.User != "" {
		query += ` AND user_id = ?`
		args = append(args, f.User)
	}
	// Dates are stored as YYYY-MM-DD, so string comparison orders them.
	if f.To != nil {
		query += ` AND ((kind = 'punctual' AND date <= ?) OR (kind = 'recurring' AND range_start <= ?))`
		args = append(args, f.To.String(), f.To.String())
	}
	if f.From != nil {
		query += ` AND ((kind = 'punctual' AND date >= ?) OR (kind = 'recurring' AND range_end >= ?))`
		args = append(args, f.From.String(), f.From.String())
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// DeleteEvent removes an event definition and with it all its occurrences.
func DeleteEvent(ctx context.Context, q Querier, user, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM events WHERE user_id = ? AND id = ?`, user, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(result, "event", id)
}

// ListUsers returns every user key that owns at least one event.
func ListUsers(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT user_id FROM events ORDER BY user_id`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, errors.NewInternal(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return users, nil
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e                                Event
		categoryID                       sql.NullString
		kind, start, end                 string
		date, days, rangeStart, rangeEnd sql.NullString
	)
	if err := row.Scan(
		&e.ID, &e.User, &e.Title, &categoryID, &kind, &date, &start, &end,
		&days, &rangeStart, &rangeEnd, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.CategoryID = fromNullString(categoryID)

	startTime, err := timeutil.ParseTimeOfDay(start)
	if err != nil {
		return nil, err
	}
	endTime, err := timeutil.ParseTimeOfDay(end)
	if err != nil {
		return nil, err
	}

	switch planner.Kind(kind) {
	case planner.KindPunctual:
		d, err := timeutil.ParseDate(date.String)
		if err != nil {
			return nil, err
		}
		e.Schedule = planner.Punctual{Date: d, Start: startTime, End: endTime}
	case planner.KindRecurring:
		mask, err := planner.ParseDaySet(days.String)
		if err != nil {
			return nil, err
		}
		from, err := timeutil.ParseDate(rangeStart.String)
		if err != nil {
			return nil, err
		}
		until, err := timeutil.ParseDate(rangeEnd.String)
		if err != nil {
			return nil, err
		}
		e.Schedule = planner.Recurring{Days: mask, From: from, Until: until, Start: startTime, End: endTime}
	default:
		return nil, fmt.Errorf("event %s has unknown kind %q", e.ID, kind)
	}
	return &e, nil
}
