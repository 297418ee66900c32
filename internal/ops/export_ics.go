package ops

import (
	"context"
	"database/sql"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// icsNamespace seeds the name-based UIDs of exported VEVENTs, so exporting
// the same event twice yields the same UID.
var icsNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hpungsan/agenda"))

// icsFloating is the RFC 5545 local ("floating") date-time form.
const icsFloating = "20060102T150405"

// EventUID returns the iCalendar UID of an event definition.
func EventUID(eventID string) string {
	return uuid.NewSHA1(icsNamespace, []byte(eventID)).String()
}

// writeICS writes one VEVENT per event definition of user and returns how
// many it wrote. Times are floating: they carry no TZID and mean the same
// wall clock everywhere. Weekly definitions with no occurrence between From
// and Until are left out, as no DTSTART could satisfy their rule.
func writeICS(ctx context.Context, database *sql.DB, w io.Writer, user string, now time.Time) (int, error) {
	events, err := db.ListEvents(ctx, database, db.ListEventsFilter{User: user})
	if err != nil {
		return 0, err
	}
	cats, err := db.ListCategories(ctx, database, user)
	if err != nil {
		return 0, err
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//hpungsan//agenda//EN")

	stamp := now.UTC()
	written := 0
	for i := range events {
		if err := checkCancelled(ctx, "export"); err != nil {
			return 0, err
		}
		e := &events[i]

		var first timeutil.Date
		if rec, ok := e.Schedule.(planner.Recurring); ok {
			var found bool
			if first, found = firstOccurrence(rec); !found {
				continue
			}
		}

		vevent := cal.AddEvent(EventUID(e.ID))
		vevent.SetDtStampTime(stamp)
		vevent.SetSummary(e.Title)
		if e.CategoryID != nil {
			if name, ok := names[*e.CategoryID]; ok {
				vevent.SetProperty(ical.ComponentPropertyCategories, name)
			}
		}

		switch s := e.Schedule.(type) {
		case planner.Punctual:
			setFloating(vevent, s.Date, s.Start, s.End)
		case planner.Recurring:
			setFloating(vevent, first, s.Start, s.End)
			vevent.SetProperty(ical.ComponentPropertyRrule, planner.WeeklyRule(s))
		}
		written++
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return 0, errors.NewInternal(err)
	}
	return written, nil
}

func setFloating(vevent *ical.VEvent, d timeutil.Date, start, end timeutil.TimeOfDay) {
	vevent.SetProperty(ical.ComponentPropertyDtStart, timeutil.Combine(d, start).Format(icsFloating))
	vevent.SetProperty(ical.ComponentPropertyDtEnd, timeutil.Combine(d, end).Format(icsFloating))
}

// firstOccurrence is the first date in [s.From, s.Until] whose weekday is in
// s.Days. DTSTART must itself be an occurrence of the rule.
func firstOccurrence(s planner.Recurring) (timeutil.Date, bool) {
	d := s.From
	for i := 0; i < 7 && !d.After(s.Until); i++ {
		if s.Days.Has(d.Weekday()) {
			return d, true
		}
		d = d.AddDays(1)
	}
	return timeutil.Date{}, false
}
