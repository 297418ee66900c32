package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/agenda/internal/errors"
)

func TestAddEvent_Punctual(t *testing.T) {
	database, cfg, _ := setup(t)
	cat := mustSaveCategory(t, database, cfg, "", "Work", "#112233")

	out := mustAddEvent(t, database, cfg, AddEventInput{
		Title:      "  Standup ",
		CategoryID: stringPtr(cat.ID),
		Date:       "2025-03-03",
		Start:      "09:00",
		End:        "09:15",
	})
	require.Len(t, out.ID, 26)
	require.Equal(t, "Standup", out.Title)
	require.Equal(t, "punctual", out.Kind)
	require.Equal(t, "2025-03-03", out.Date)
	require.Equal(t, "09:00", out.Start)
	require.Equal(t, "09:15", out.End)
	require.NotNil(t, out.CategoryID)
	require.Equal(t, cat.ID, *out.CategoryID)
}

func TestAddEvent_Recurring(t *testing.T) {
	database, cfg, _ := setup(t)

	out := mustAddEvent(t, database, cfg, AddEventInput{
		Title: "Gym",
		Kind:  "Recurring",
		Days:  []int{4, 0, 2},
		From:  "2025-03-01",
		Until: "2025-03-31",
		Start: "18:00",
		End:   "19:00",
	})
	require.Equal(t, "recurring", out.Kind)
	require.Equal(t, []int{0, 2, 4}, out.Days)
	require.Equal(t, "2025-03-01", out.From)
	require.Equal(t, "2025-03-31", out.Until)
	require.Empty(t, out.Date)
}

func TestAddEvent_BlankCategoryIsUncategorized(t *testing.T) {
	database, cfg, _ := setup(t)

	out := mustAddEvent(t, database, cfg, AddEventInput{
		Title: "Read", CategoryID: stringPtr("  "), Date: "2025-03-03", Start: "20:00", End: "21:00",
	})
	require.Nil(t, out.CategoryID)
}

func TestAddEvent_Invalid(t *testing.T) {
	database, cfg, _ := setup(t)
	other := mustSaveCategory(t, database, cfg, "someone-else", "Work", "")

	base := func() AddEventInput {
		return AddEventInput{Title: "x", Date: "2025-03-03", Start: "09:00", End: "10:00"}
	}

	tests := []struct {
		name string
		mod  func(in *AddEventInput)
		code errors.ErrorCode
	}{
		{"missing title", func(in *AddEventInput) { in.Title = " " }, errors.ErrInvalidRequest},
		{"end before start", func(in *AddEventInput) { in.End = "08:00" }, errors.ErrInvalidRequest},
		{"end equals start", func(in *AddEventInput) { in.End = "09:00" }, errors.ErrInvalidRequest},
		{"bad time", func(in *AddEventInput) { in.Start = "9am" }, errors.ErrInvalidRequest},
		{"missing date", func(in *AddEventInput) { in.Date = "" }, errors.ErrInvalidRequest},
		{"unknown kind", func(in *AddEventInput) { in.Kind = "monthly" }, errors.ErrInvalidRequest},
		{"recurring without days", func(in *AddEventInput) {
			in.Kind, in.From, in.Until = "recurring", "2025-03-01", "2025-03-31"
		}, errors.ErrInvalidRequest},
		{"recurring until before from", func(in *AddEventInput) {
			in.Kind, in.Days, in.From, in.Until = "recurring", []int{0}, "2025-03-31", "2025-03-01"
		}, errors.ErrInvalidRequest},
		{"weekday out of range", func(in *AddEventInput) {
			in.Kind, in.Days, in.From, in.Until = "recurring", []int{7}, "2025-03-01", "2025-03-31"
		}, errors.ErrInvalidRequest},
		{"unknown category", func(in *AddEventInput) { in.CategoryID = stringPtr("nope") }, errors.ErrNotFound},
		{"another user's category", func(in *AddEventInput) { in.CategoryID = stringPtr(other.ID) }, errors.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := base()
			tc.mod(&in)
			_, err := AddEvent(context.Background(), database, cfg, in)
			requireCode(t, err, tc.code)
		})
	}
}

func TestListEvents_Filter(t *testing.T) {
	database, cfg, _ := setup(t)
	ctx := context.Background()

	early := mustAddEvent(t, database, cfg, AddEventInput{Title: "Early", Date: "2025-01-10", Start: "09:00", End: "10:00"})
	late := mustAddEvent(t, database, cfg, AddEventInput{Title: "Late", Date: "2025-06-10", Start: "09:00", End: "10:00"})
	weekly := mustAddEvent(t, database, cfg, AddEventInput{
		Title: "Weekly", Kind: "recurring", Days: []int{1}, From: "2025-01-01", Until: "2025-03-31", Start: "12:00", End: "13:00",
	})
	mustAddEvent(t, database, cfg, AddEventInput{User: "other", Title: "Hidden", Date: "2025-01-10", Start: "09:00", End: "10:00"})

	all, err := ListEvents(ctx, database, cfg, ListEventsInput{})
	require.NoError(t, err)
	require.Len(t, all.Items, 3)
	require.Equal(t, early.ID, all.Items[0].ID)
	require.Equal(t, late.ID, all.Items[1].ID)
	require.Equal(t, weekly.ID, all.Items[2].ID)

	spring, err := ListEvents(ctx, database, cfg, ListEventsInput{From: "2025-03-01", To: "2025-06-30"})
	require.NoError(t, err)
	require.Len(t, spring.Items, 2)
	require.Equal(t, late.ID, spring.Items[0].ID)
	require.Equal(t, weekly.ID, spring.Items[1].ID)

	_, err = ListEvents(ctx, database, cfg, ListEventsInput{From: "2025-06-30", To: "2025-03-01"})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestDeleteEvent(t *testing.T) {
	database, cfg, _ := setup(t)
	ctx := context.Background()

	ev := mustAddEvent(t, database, cfg, AddEventInput{Title: "Once", Date: "2025-03-03", Start: "09:00", End: "10:00"})

	_, err := DeleteEvent(ctx, database, cfg, DeleteEventInput{User: "other", ID: ev.ID})
	requireCode(t, err, errors.ErrNotFound)

	out, err := DeleteEvent(ctx, database, cfg, DeleteEventInput{ID: ev.ID})
	require.NoError(t, err)
	require.True(t, out.Deleted)

	list, err := ListEvents(ctx, database, cfg, ListEventsInput{})
	require.NoError(t, err)
	require.Empty(t, list.Items)
}
