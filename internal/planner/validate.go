package planner

import (
	"fmt"
	"regexp"

	"github.com/hpungsan/agenda/internal/errors"
)

var colorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidColor reports whether c is a #RRGGBB hex color.
func ValidColor(c string) bool {
	return colorRegex.MatchString(c)
}

// ValidateSchedule rejects malformed schedules before they are stored.
// The expander assumes every schedule it sees passed this check.
func ValidateSchedule(s Schedule) error {
	switch s := s.(type) {
	case Punctual:
		if s.Date.IsZero() {
			return errors.NewInvalidRequest("date is required")
		}
		if !s.End.After(s.Start) {
			return errors.NewInvalidRequest(fmt.Sprintf("end %s must be after start %s", s.End, s.Start))
		}
	case Recurring:
		if !s.End.After(s.Start) {
			return errors.NewInvalidRequest(fmt.Sprintf("end %s must be after start %s", s.End, s.Start))
		}
		if s.Days.IsEmpty() {
			return errors.NewInvalidRequest("at least one weekday is required")
		}
		if s.Days&^AllDays != 0 {
			return errors.NewInvalidRequest("weekdays must be within 0..6")
		}
		if s.From.IsZero() || s.Until.IsZero() {
			return errors.NewInvalidRequest("from and until dates are required")
		}
		if s.Until.Before(s.From) {
			return errors.NewInvalidRequest(fmt.Sprintf("until %s is before from %s", s.Until, s.From))
		}
	case nil:
		return errors.NewInvalidRequest("schedule is required")
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("unsupported schedule %T", s))
	}
	return nil
}
