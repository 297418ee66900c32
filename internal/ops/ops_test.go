package ops

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// setup opens a fresh store in a temp dir that is also an allowed
// import/export location.
func setup(t *testing.T) (*sql.DB, *config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	database, err := db.Init(dir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	return database, cfg, dir
}

// clockAt returns a clock fixed at a YYYY-MM-DDTHH:MM wall time.
func clockAt(t *testing.T, s string) timeutil.Clock {
	t.Helper()
	v, err := timeutil.ParseDateTime(s)
	require.NoError(t, err)
	return timeutil.FixedClock{T: v}
}

func stringPtr(s string) *string { return &s }

func mustAddEvent(t *testing.T, database *sql.DB, cfg *config.Config, in AddEventInput) *EventOutput {
	t.Helper()
	out, err := AddEvent(context.Background(), database, cfg, in)
	require.NoError(t, err, "AddEvent(%q)", in.Title)
	return out
}

func mustSaveCategory(t *testing.T, database *sql.DB, cfg *config.Config, user, name, color string) *CategoryOutput {
	t.Helper()
	out, err := SaveCategory(context.Background(), database, cfg, SaveCategoryInput{User: user, Name: name, Color: color})
	require.NoError(t, err)
	return out
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, code), "want %s, got %v", code, err)
}

func TestResolveUser(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		name string
		cfg  *config.Config
		user string
		want string
	}{
		{"explicit", cfg, "Ana", "ana"},
		{"whitespace collapsed", cfg, "  Ana   Maria ", "ana maria"},
		{"config default", &config.Config{DefaultUser: "Team"}, "", "team"},
		{"blank config", &config.Config{}, " ", DefaultUser},
		{"nil config", nil, "", DefaultUser},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, resolveUser(tc.cfg, tc.user))
		})
	}
}

func TestGenerateULID_Monotonic(t *testing.T) {
	prev := ""
	for i := 0; i < 100; i++ {
		id, err := generateULID()
		require.NoError(t, err)
		require.Len(t, id, 26)
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestParseHelpers(t *testing.T) {
	_, err := parseDate("date", "2025-13-01")
	requireCode(t, err, errors.ErrInvalidRequest)

	def := timeutil.NewDate(2025, time.March, 3)
	d, err := parseDateOr("date", "  ", def)
	require.NoError(t, err)
	require.Equal(t, def, d)

	v, err := parseTimeOr("start", "", "06:00")
	require.NoError(t, err)
	require.Equal(t, "06:00", v.String())

	_, err = parseTime("start", "25:00")
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = daySetFromInts("days", []int{0, 7})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, checkCancelled(ctx, "op"))
	cancel()
	requireCode(t, checkCancelled(ctx, "op"), errors.ErrCancelled)
}
