package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/hpungsan/agenda/internal/timeutil"
)

// icsDays are the RFC 5545 weekday codes, indexed by weekday.
var icsDays = [7]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// WeeklyRule renders s as an RRULE value with a floating UNTIL at the end of
// the last day.
func WeeklyRule(s Recurring) string {
	days := s.Days.Days()
	codes := make([]string, 0, len(days))
	for _, d := range days {
		codes = append(codes, icsDays[d])
	}
	until := timeutil.Combine(s.Until, timeutil.TimeOfDay{Hour: 23, Minute: 59}).Add(59 * time.Second)
	return fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;UNTIL=%s", strings.Join(codes, ","), until.Format("20060102T150405"))
}

// ParseWeeklyRule reads the weekdays and last date of a weekly RRULE value.
// Rules with another frequency, an interval other than 1, a COUNT or no
// UNTIL cannot be represented and are rejected.
func ParseWeeklyRule(value string, dtstart timeutil.Date) (DaySet, timeutil.Date, error) {
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return 0, timeutil.Date{}, fmt.Errorf("parse rrule: %w", err)
	}
	if opt.Freq != rrule.WEEKLY {
		return 0, timeutil.Date{}, fmt.Errorf("only weekly rules are supported")
	}
	if opt.Interval > 1 {
		return 0, timeutil.Date{}, fmt.Errorf("rule interval %d is not supported", opt.Interval)
	}
	if opt.Count > 0 || opt.Until.IsZero() {
		return 0, timeutil.Date{}, fmt.Errorf("rule must be bounded by UNTIL")
	}

	var mask DaySet
	for _, wd := range opt.Byweekday {
		mask |= 1 << wd.Day()
	}
	if mask.IsEmpty() {
		// A weekly rule without BYDAY repeats on DTSTART's weekday.
		mask = 1 << dtstart.Weekday()
	}
	return mask, timeutil.DateOf(opt.Until), nil
}
