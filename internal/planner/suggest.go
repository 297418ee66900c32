package planner

import (
	"time"

	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// SuggestRequest describes a free-time search over one week.
type SuggestRequest struct {
	WeekStart       timeutil.Date
	Days            DaySet // empty: any day, stop at the first hit
	DurationMinutes int
	WindowStart     timeutil.TimeOfDay
	WindowEnd       timeutil.TimeOfDay
	RespectExisting bool
	ClipToNow       bool
	OnlyNext        bool
}

// Suggest searches the week starting at req.WeekStart for free slots.
//
// With a day mask every selected day is searched and all hits are returned in
// weekday order. Without one the days are tried Monday to Sunday and the
// search stops at the first hit. OnlyNext reduces the result to the earliest
// slot starting at or after now; when no slot is in the future the earliest
// slot overall is returned, even if it already started.
func Suggest(occurrences []Occurrence, req SuggestRequest, now time.Time) ([]Slot, error) {
	if !req.WindowEnd.After(req.WindowStart) {
		return nil, errors.NewInvalidRequest("window end must be after window start")
	}
	if req.DurationMinutes <= 0 {
		return nil, errors.NewInvalidRequest("duration_minutes must be positive")
	}

	weekStart := timeutil.WeekStart(req.WeekStart)

	var busyByDay [7][]Interval
	if req.RespectExisting {
		weekEnd := weekStart.AddDays(6)
		for _, o := range occurrences {
			d := timeutil.DateOf(o.Start)
			if d.Before(weekStart) || d.After(weekEnd) {
				continue
			}
			wd := d.Weekday()
			busyByDay[wd] = append(busyByDay[wd], Interval{Start: o.Start, End: o.End})
		}
	}

	days := req.Days.Days()
	stopAtFirst := req.Days.IsEmpty()
	if stopAtFirst {
		days = AllDays.Days()
	}

	today := timeutil.DateOf(now)
	slots := make([]Slot, 0)
	for _, wd := range days {
		day := weekStart.AddDays(wd)
		winStart := timeutil.Combine(day, req.WindowStart)
		winEnd := timeutil.Combine(day, req.WindowEnd)
		if req.ClipToNow && day.Equal(today) && now.After(winStart) && now.Before(winEnd) {
			winStart = now
		}

		slot, err := FindSlot(busyByDay[wd], winStart, winEnd, req.DurationMinutes)
		if err != nil {
			return nil, err
		}
		if slot == nil {
			continue
		}
		slots = append(slots, *slot)
		if req.RespectExisting {
			busyByDay[wd] = append(busyByDay[wd], Interval{Start: slot.Start, End: slot.End})
		}
		if stopAtFirst {
			break
		}
	}

	if req.OnlyNext && len(slots) > 0 {
		return []Slot{nextSlot(slots, now)}, nil
	}
	return slots, nil
}

// nextSlot picks the earliest slot starting at or after now, falling back to
// the earliest slot overall.
// TODO: report "no upcoming slot" instead of returning a past slot once the
// CLI and web surfaces can display that case.
func nextSlot(slots []Slot, now time.Time) Slot {
	candidates := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if !s.Start.Before(now) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		candidates = slots
	}
	best := candidates[0]
	for _, s := range candidates[1:] {
		if s.Start.Before(best.Start) {
			best = s
		}
	}
	return best
}
