package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/timeutil"
)

func TestCalendar_Views(t *testing.T) {
	database, cfg, _ := setup(t)
	ctx := context.Background()
	clock := clockAt(t, "2025-03-05T12:00")

	cat := mustSaveCategory(t, database, cfg, "", "Study", "#00AA00")
	mustAddEvent(t, database, cfg, AddEventInput{
		Title: "Class", CategoryID: stringPtr(cat.ID), Kind: "recurring",
		Days: []int{0, 2}, From: "2025-03-01", Until: "2025-03-31", Start: "18:00", End: "19:30",
	})
	mustAddEvent(t, database, cfg, AddEventInput{Title: "Dentist", Date: "2025-03-04", Start: "09:00", End: "10:00"})

	t.Run("default week", func(t *testing.T) {
		out, err := Calendar(ctx, database, cfg, clock, CalendarInput{})
		require.NoError(t, err)
		require.Equal(t, ViewWeek, out.View)
		require.Equal(t, "2025-03-03", out.From)
		require.Equal(t, "2025-03-09", out.To)
		require.Len(t, out.Occurrences, 3)

		first := out.Occurrences[0]
		require.Equal(t, "Class", first.Title)
		require.Equal(t, "2025-03-03T18:00", timeutil.FormatDateTime(first.Start))
		require.True(t, first.Recurring)
		require.NotNil(t, first.Category)
		require.Equal(t, "#00AA00", first.Category.Color)

		require.Equal(t, "Dentist", out.Occurrences[1].Title)
		require.False(t, out.Occurrences[1].Recurring)
		require.Nil(t, out.Occurrences[1].Category)
	})

	t.Run("day", func(t *testing.T) {
		out, err := Calendar(ctx, database, cfg, clock, CalendarInput{View: "day", Date: "2025-03-04"})
		require.NoError(t, err)
		require.Len(t, out.Occurrences, 1)
		require.Equal(t, "Dentist", out.Occurrences[0].Title)
	})

	t.Run("month", func(t *testing.T) {
		out, err := Calendar(ctx, database, cfg, clock, CalendarInput{View: "Month"})
		require.NoError(t, err)
		require.Equal(t, "2025-03-01", out.From)
		require.Equal(t, "2025-03-31", out.To)
		// Mondays 3,10,17,24,31 and Wednesdays 5,12,19,26 plus the dentist.
		require.Len(t, out.Occurrences, 10)
	})

	t.Run("year", func(t *testing.T) {
		out, err := Calendar(ctx, database, cfg, clock, CalendarInput{View: "year", Date: "2025-07-01"})
		require.NoError(t, err)
		require.Equal(t, "2025-01-01", out.From)
		require.Equal(t, "2025-12-31", out.To)
		require.Len(t, out.Occurrences, 10)
	})

	t.Run("range outside events", func(t *testing.T) {
		out, err := Calendar(ctx, database, cfg, clock, CalendarInput{View: "range", From: "2025-04-01", To: "2025-04-30"})
		require.NoError(t, err)
		require.Empty(t, out.Occurrences)
	})

	t.Run("other user", func(t *testing.T) {
		out, err := Calendar(ctx, database, cfg, clock, CalendarInput{User: "ben"})
		require.NoError(t, err)
		require.Empty(t, out.Occurrences)
	})
}

func TestCalendar_DeletedCategoryShowsUncategorized(t *testing.T) {
	database, cfg, _ := setup(t)
	ctx := context.Background()

	cat := mustSaveCategory(t, database, cfg, "", "Work", "")
	mustAddEvent(t, database, cfg, AddEventInput{
		Title: "Review", CategoryID: stringPtr(cat.ID), Date: "2025-03-04", Start: "09:00", End: "10:00",
	})
	_, err := DeleteCategory(ctx, database, cfg, DeleteCategoryInput{ID: cat.ID})
	require.NoError(t, err)

	out, err := Calendar(ctx, database, cfg, clockAt(t, "2025-03-04T08:00"), CalendarInput{View: "day"})
	require.NoError(t, err)
	require.Len(t, out.Occurrences, 1)
	require.Nil(t, out.Occurrences[0].Category)
}

func TestCalendar_Invalid(t *testing.T) {
	database, cfg, _ := setup(t)
	clock := clockAt(t, "2025-03-05T12:00")

	tests := []struct {
		name string
		in   CalendarInput
		code errors.ErrorCode
	}{
		{"unknown view", CalendarInput{View: "decade"}, errors.ErrInvalidRequest},
		{"bad date", CalendarInput{Date: "2025-02-30"}, errors.ErrInvalidRequest},
		{"range missing to", CalendarInput{View: "range", From: "2025-01-01"}, errors.ErrInvalidRequest},
		{"range reversed", CalendarInput{View: "range", From: "2025-02-01", To: "2025-01-01"}, errors.ErrInvalidRequest},
		{"range too large", CalendarInput{View: "range", From: "2025-01-01", To: "2026-12-31"}, errors.ErrRangeTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Calendar(context.Background(), database, cfg, clock, tc.in)
			requireCode(t, err, tc.code)
		})
	}
}

func TestUpcoming(t *testing.T) {
	database, cfg, _ := setup(t)
	ctx := context.Background()

	mustAddEvent(t, database, cfg, AddEventInput{
		Title: "Class", Kind: "recurring", Days: []int{0, 2, 4}, From: "2025-03-01", Until: "2025-03-31", Start: "18:00", End: "19:00",
	})
	mustAddEvent(t, database, cfg, AddEventInput{Title: "Dentist", Date: "2025-03-04", Start: "09:00", End: "10:00"})

	// Tuesday 10:00: Monday's class and the dentist have started already.
	clock := clockAt(t, "2025-03-04T10:00")

	out, err := Upcoming(ctx, database, cfg, clock, UpcomingInput{})
	require.NoError(t, err)
	require.Equal(t, "2025-03-03", out.WeekStart)
	require.Len(t, out.Occurrences, 2)
	require.Equal(t, "2025-03-05T18:00", timeutil.FormatDateTime(out.Occurrences[0].Start))
	require.Equal(t, "2025-03-07T18:00", timeutil.FormatDateTime(out.Occurrences[1].Start))

	limited, err := Upcoming(ctx, database, cfg, clock, UpcomingInput{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited.Occurrences, 1)

	// A past week has nothing left.
	past, err := Upcoming(ctx, database, cfg, clock, UpcomingInput{Date: "2025-02-25"})
	require.NoError(t, err)
	require.Empty(t, past.Occurrences)

	_, err = Upcoming(ctx, database, cfg, clock, UpcomingInput{Limit: -1})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestHeatmap_Counts(t *testing.T) {
	database, cfg, _ := setup(t)
	ctx := context.Background()

	mustAddEvent(t, database, cfg, AddEventInput{
		Title: "Run", Kind: "recurring", Days: []int{0}, From: "2025-03-01", Until: "2025-03-31", Start: "07:00", End: "08:00",
	})
	mustAddEvent(t, database, cfg, AddEventInput{Title: "A", Date: "2025-03-03", Start: "09:00", End: "10:00"})

	out, err := Heatmap(ctx, database, cfg, clockAt(t, "2025-06-01T12:00"), HeatmapInput{})
	require.NoError(t, err)
	require.Equal(t, 2025, out.Year)
	require.Len(t, out.Days, 365)
	require.Equal(t, 6, out.Total)

	byDate := make(map[string]HeatmapCell, len(out.Days))
	for _, c := range out.Days {
		byDate[c.Date] = c
	}
	require.Equal(t, 2, byDate["2025-03-03"].Count)
	require.Equal(t, 1, byDate["2025-03-10"].Count)
	require.Equal(t, 0, byDate["2025-03-04"].Count)
	require.Equal(t, 0, byDate["2025-03-03"].Weekday)
}

func TestHeatmap_WeekColumns(t *testing.T) {
	database, cfg, _ := setup(t)
	ctx := context.Background()
	clock := clockAt(t, "2025-06-01T12:00")

	// 2025-12-29..31 belong to ISO week 1 of 2026.
	out, err := Heatmap(ctx, database, cfg, clock, HeatmapInput{Year: 2025})
	require.NoError(t, err)
	require.Equal(t, 1, out.Days[0].Week)
	last := out.Days[len(out.Days)-1]
	require.Equal(t, "2025-12-31", last.Date)
	require.Equal(t, 53, last.Week)
	require.Equal(t, 54, out.Weeks)

	// 2027-01-01..03 belong to ISO week 53 of 2026.
	out, err = Heatmap(ctx, database, cfg, clock, HeatmapInput{Year: 2027})
	require.NoError(t, err)
	require.Equal(t, 0, out.Days[0].Week)
	require.Equal(t, 0, out.Days[2].Week)
	require.Equal(t, 1, out.Days[3].Week)

	_, err = Heatmap(ctx, database, cfg, clock, HeatmapInput{Year: -3})
	requireCode(t, err, errors.ErrInvalidRequest)
}
