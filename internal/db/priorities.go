package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// PriorityItem is one of the three weekly priorities.
type PriorityItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Priorities is a user's goals and top three priorities for one week.
type Priorities struct {
	User      string
	WeekStart timeutil.Date
	Goals     string
	Items     [3]PriorityItem
	UpdatedAt int64
}

const priorityColumns = `user_id, week_start, goals, p1, p1_done, p2, p2_done, p3, p3_done, updated_at`

// GetPriorities retrieves a user's priorities for the week starting at weekStart.
func GetPriorities(ctx context.Context, q Querier, user string, weekStart timeutil.Date) (*Priorities, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+priorityColumns+` FROM priorities WHERE user_id = ? AND week_start = ?`,
		user, weekStart.String())
	p, err := scanPriorities(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("priorities", weekStart.String())
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// UpsertPriorities stores p, replacing any record for the same user and week.
func UpsertPriorities(ctx context.Context, q Querier, p *Priorities) error {
	query := `
		INSERT INTO priorities (` + priorityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, week_start) DO UPDATE SET
			goals = excluded.goals,
			p1 = excluded.p1, p1_done = excluded.p1_done,
			p2 = excluded.p2, p2_done = excluded.p2_done,
			p3 = excluded.p3, p3_done = excluded.p3_done,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		p.User, p.WeekStart.String(), p.Goals,
		p.Items[0].Text, boolToInt(p.Items[0].Done),
		p.Items[1].Text, boolToInt(p.Items[1].Done),
		p.Items[2].Text, boolToInt(p.Items[2].Done),
		p.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListPriorities returns priorities ordered by week. An empty user lists all users.
func ListPriorities(ctx context.Context, q Querier, user string) ([]Priorities, error) {
	query := `SELECT ` + priorityColumns + ` FROM priorities`
	var args []any
	if user != "" {
		query += ` WHERE user_id = ?`
		args = append(args, user)
	}
	query += ` ORDER BY user_id, week_start`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := make([]Priorities, 0)
	for rows.Next() {
		p, err := scanPriorities(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func scanPriorities(row rowScanner) (*Priorities, error) {
	var (
		p                   Priorities
		week                string
		done1, done2, done3 int
	)
	if err := row.Scan(&p.User, &week, &p.Goals,
		&p.Items[0].Text, &done1, &p.Items[1].Text, &done2, &p.Items[2].Text, &done3,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d, err := timeutil.ParseDate(week)
	if err != nil {
		return nil, err
	}
	p.WeekStart = d
	p.Items[0].Done = done1 != 0
	p.Items[1].Done = done2 != 0
	p.Items[2].Done = done3 != 0
	return &p, nil
}
