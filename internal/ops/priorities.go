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
	"github.com/hpungsan/agenda/internal/timeutil"
)

// MaxGoalsChars bounds the free-text weekly goals.
const MaxGoalsChars = 10000

// PrioritiesOutput is a week's goals and top three priorities.
type PrioritiesOutput struct {
	User      string            `json:"user"`
	WeekStart string            `json:"week_start"`
	Goals     string            `json:"goals"`
	Items     []db.PriorityItem `json:"items"`
	Progress  float64           `json:"progress"`
	UpdatedAt int64             `json:"updated_at,omitempty"`
}

// Progress is the share of completed priorities, or 0 when no priority has
// any text.
func Progress(items [3]db.PriorityItem) float64 {
	anyText := false
	done := 0
	for _, it := range items {
		if strings.TrimSpace(it.Text) != "" {
			anyText = true
		}
		if it.Done {
			done++
		}
	}
	if !anyText {
		return 0
	}
	return float64(done) / 3
}

func toPrioritiesOutput(p *db.Priorities) *PrioritiesOutput {
	return &PrioritiesOutput{
		User:      p.User,
		WeekStart: p.WeekStart.String(),
		Goals:     p.Goals,
		Items:     p.Items[:],
		Progress:  Progress(p.Items),
		UpdatedAt: p.UpdatedAt,
	}
}

// GetPrioritiesInput contains parameters for the GetPriorities operation.
type GetPrioritiesInput struct {
	User string
	Date string // any day of the week; default: today
}

// GetPriorities returns the priorities of the week containing Date. A week
// with nothing saved yields an empty record.
func GetPriorities(ctx context.Context, database *sql.DB, cfg *config.Config, clock timeutil.Clock, input GetPrioritiesInput) (*PrioritiesOutput, error) {
	d, err := parseDateOr("date", input.Date, timeutil.DateOf(clock.Now()))
	if err != nil {
		return nil, err
	}
	user := resolveUser(cfg, input.User)
	ws := timeutil.WeekStart(d)

	p, err := db.GetPriorities(ctx, database, user, ws)
	if errors.Is(err, errors.ErrNotFound) {
		p = &db.Priorities{User: user, WeekStart: ws}
	} else if err != nil {
		return nil, err
	}
	return toPrioritiesOutput(p), nil
}

// SavePrioritiesInput contains parameters for the SavePriorities operation.
type SavePrioritiesInput struct {
	User  string
	Date  string // any day of the week; default: today
	Goals string
	Items []db.PriorityItem // at most 3
}

// SavePriorities replaces the priorities of the week containing Date.
func SavePriorities(ctx context.Context, database *sql.DB, cfg *config.Config, clock timeutil.Clock, input SavePrioritiesInput) (*PrioritiesOutput, error) {
	d, err := parseDateOr("date", input.Date, timeutil.DateOf(clock.Now()))
	if err != nil {
		return nil, err
	}
	if len(input.Items) > 3 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("at most 3 priorities allowed, got %d", len(input.Items)))
	}
	if utf8.RuneCountInString(input.Goals) > MaxGoalsChars {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("goals exceed %d characters", MaxGoalsChars))
	}

	p := &db.Priorities{
		User:      resolveUser(cfg, input.User),
		WeekStart: timeutil.WeekStart(d),
		Goals:     input.Goals,
		UpdatedAt: time.Now().Unix(),
	}
	for i, it := range input.Items {
		text := strings.TrimSpace(it.Text)
		if utf8.RuneCountInString(text) > MaxTitleChars {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("priority %d exceeds %d characters", i+1, MaxTitleChars))
		}
		p.Items[i] = db.PriorityItem{Text: text, Done: it.Done}
	}

	if err := db.UpsertPriorities(ctx, database, p); err != nil {
		return nil, err
	}
	return toPrioritiesOutput(p), nil
}
