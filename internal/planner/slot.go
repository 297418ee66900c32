package planner

import (
	"sort"
	"time"

	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// FindSlot returns the earliest gap of durationMinutes inside
// [windowStart, windowEnd) that avoids every busy interval, or nil when the
// window has no such gap. The search is first-fit: the earliest gap wins even
// if a later one fits more snugly.
func FindSlot(busy []Interval, windowStart, windowEnd time.Time, durationMinutes int) (*Slot, error) {
	if !windowEnd.After(windowStart) {
		return nil, errors.NewInvalidRequest("window end must be after window start")
	}
	if durationMinutes <= 0 {
		return nil, errors.NewInvalidRequest("duration_minutes must be positive")
	}

	inWindow := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if timeutil.Overlaps(b.Start, b.End, windowStart, windowEnd) {
			inWindow = append(inWindow, b)
		}
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		return inWindow[i].Start.Before(inWindow[j].Start)
	})

	duration := time.Duration(durationMinutes) * time.Minute
	cursor := windowStart
	for _, b := range inWindow {
		if timeutil.MinutesBetween(cursor, b.Start) >= durationMinutes {
			return &Slot{Start: cursor, End: cursor.Add(duration)}, nil
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}

	if timeutil.MinutesBetween(cursor, windowEnd) >= durationMinutes {
		return &Slot{Start: cursor, End: cursor.Add(duration)}, nil
	}
	return nil, nil
}
