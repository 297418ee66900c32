package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// BaseDirName is the per-user data directory under $HOME.
const BaseDirName = ".agenda"

// DefaultUser is used when neither the request nor the config names a user.
const DefaultUser = "default"

// MaxTitleChars bounds event titles and category names.
const MaxTitleChars = 200

var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// generateULID returns a new ULID. IDs generated by one process sort in
// creation order.
func generateULID() (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// resolveUser normalizes the user key, falling back to the configured default.
func resolveUser(cfg *config.Config, user string) string {
	u := planner.Normalize(user)
	if u == "" && cfg != nil {
		u = planner.Normalize(cfg.DefaultUser)
	}
	if u == "" {
		u = DefaultUser
	}
	return u
}

func parseDate(field, value string) (timeutil.Date, error) {
	d, err := timeutil.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return timeutil.Date{}, errors.NewInvalidRequest(fmt.Sprintf("%s: %v", field, err))
	}
	return d, nil
}

// parseDateOr parses value, or returns def when value is blank.
func parseDateOr(field, value string, def timeutil.Date) (timeutil.Date, error) {
	if strings.TrimSpace(value) == "" {
		return def, nil
	}
	return parseDate(field, value)
}

func parseTime(field, value string) (timeutil.TimeOfDay, error) {
	t, err := timeutil.ParseTimeOfDay(strings.TrimSpace(value))
	if err != nil {
		return timeutil.TimeOfDay{}, errors.NewInvalidRequest(fmt.Sprintf("%s: %v", field, err))
	}
	return t, nil
}

// parseTimeOr parses value, or def when value is blank.
func parseTimeOr(field, value, def string) (timeutil.TimeOfDay, error) {
	if strings.TrimSpace(value) == "" {
		value = def
	}
	return parseTime(field, value)
}

func daySetFromInts(field string, days []int) (planner.DaySet, error) {
	s, err := planner.NewDaySet(days...)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("%s: %v", field, err))
	}
	return s, nil
}

func checkCancelled(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return errors.NewCancelled(op)
	default:
		return nil
	}
}

// snapshot is a consistent view of one user's events and categories.
type snapshot struct {
	events     []planner.Event
	categories map[string]planner.Category
}

// loadSnapshot reads the events that can occur in [from, to] together with
// the user's categories, in one read-only transaction.
func loadSnapshot(ctx context.Context, database *sql.DB, user string, from, to timeutil.Date) (*snapshot, error) {
	tx, err := database.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := db.ListEvents(ctx, tx, db.ListEventsFilter{User: user, From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	cats, err := db.ListCategories(ctx, tx, user)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		events:     make([]planner.Event, 0, len(rows)),
		categories: make(map[string]planner.Category, len(cats)),
	}
	for _, r := range rows {
		snap.events = append(snap.events, r.Event)
	}
	for _, c := range cats {
		snap.categories[c.ID] = toPlannerCategory(c)
	}
	return snap, nil
}

func toPlannerCategory(c db.Category) planner.Category {
	return planner.Category{ID: c.ID, Name: c.Name, Color: c.Color}
}
