package planner

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/hpungsan/agenda/internal/timeutil"
)

// rruleWeekdays maps weekday indices (0=Monday) to rrule weekdays.
var rruleWeekdays = [7]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// Expand returns the occurrences of events between from and to, both inclusive,
// sorted by start. Events whose category is missing from categories get a nil
// Category. An inverted range yields no occurrences.
func Expand(events []Event, categories map[string]Category, from, to timeutil.Date) []Occurrence {
	out := make([]Occurrence, 0)
	if to.Before(from) {
		return out
	}

	for _, ev := range events {
		switch s := ev.Schedule.(type) {
		case Punctual:
			if s.Date.Before(from) || s.Date.After(to) {
				continue
			}
			out = append(out, makeOccurrence(ev, categories, timeutil.Combine(s.Date, s.Start), timeutil.Combine(s.Date, s.End), false))
		case Recurring:
			for _, d := range recurringDates(s, from, to) {
				out = append(out, makeOccurrence(ev, categories, timeutil.Combine(d, s.Start), timeutil.Combine(d, s.End), true))
			}
		}
	}

	SortOccurrences(out)
	return out
}

// recurringDates lists the dates of s within [from, to] ∩ [s.From, s.Until]
// whose weekday is in s.Days.
func recurringDates(s Recurring, from, to timeutil.Date) []timeutil.Date {
	if s.Days.IsEmpty() {
		return nil
	}
	lo, hi := from, to
	if s.From.After(lo) {
		lo = s.From
	}
	if s.Until.Before(hi) {
		hi = s.Until
	}
	if hi.Before(lo) {
		return nil
	}

	days := s.Days.Days()
	byweekday := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		byweekday = append(byweekday, rruleWeekdays[d])
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: byweekday,
		Dtstart:   lo.Midnight(),
		Until:     hi.Midnight(),
	})
	if err != nil {
		return walkDates(s.Days, lo, hi)
	}

	times := r.All()
	dates := make([]timeutil.Date, 0, len(times))
	for _, t := range times {
		dates = append(dates, timeutil.DateOf(t))
	}
	return dates
}

// walkDates is the day-by-day equivalent of the weekly rule.
func walkDates(mask DaySet, lo, hi timeutil.Date) []timeutil.Date {
	var dates []timeutil.Date
	for d := lo; !d.After(hi); d = d.AddDays(1) {
		if mask.Has(d.Weekday()) {
			dates = append(dates, d)
		}
	}
	return dates
}

func makeOccurrence(ev Event, categories map[string]Category, start, end time.Time, recurring bool) Occurrence {
	occ := Occurrence{
		EventID:   ev.ID,
		Title:     ev.Title,
		Start:     start,
		End:       end,
		Recurring: recurring,
	}
	if ev.CategoryID != nil {
		if cat, ok := categories[*ev.CategoryID]; ok {
			occ.Category = &cat
		}
	}
	return occ
}
