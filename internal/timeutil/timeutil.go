// Package timeutil holds the naive wall-clock helpers used by the planner.
//
// Every datetime handled by the planner is a floating wall-clock value: a
// time.Time in time.UTC whose fields are read as local wall-clock time. No
// zone conversion is ever applied to it.
package timeutil

import (
	"fmt"
	"time"
)

// Layouts used for parsing and formatting.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04"
	DateTimeLayout  = "2006-01-02T15:04:05"
	DateTimeMinutes = "2006-01-02T15:04"
)

// Date is a calendar day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the normalized date (overflowing days roll into the next month).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t's wall clock.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Midnight returns the floating datetime at 00:00 of d.
func (d Date) Midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Midnight().AddDate(0, 0, n))
}

// Weekday returns the ISO weekday index, 0=Monday .. 6=Sunday.
func (d Date) Weekday() int {
	return (int(d.Midnight().Weekday()) + 6) % 7
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	return d.Midnight().Compare(o.Midnight())
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }
func (d Date) Equal(o Date) bool  { return d.Compare(o) == 0 }

// DaysUntil returns the number of days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.Midnight().Sub(d.Midnight()).Hours() / 24)
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return d.Midnight().Format(DateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an HH:MM time.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// TimeOfDayOf returns the wall-clock time of t, truncated to the minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) Before(o TimeOfDay) bool { return t.Minutes() < o.Minutes() }
func (t TimeOfDay) After(o TimeOfDay) bool  { return t.Minutes() > o.Minutes() }
func (t TimeOfDay) Equal(o TimeOfDay) bool  { return t.Minutes() == o.Minutes() }

// String formats t as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// WeekStart returns the Monday on or before d.
func WeekStart(d Date) Date {
	return d.AddDays(-d.Weekday())
}

// Combine builds the floating datetime of d at t.
func Combine(d Date, t TimeOfDay) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, time.UTC)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) overlap.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// MinutesBetween returns the whole minutes from a to b, floor-divided.
// The result is negative when b is before a.
func MinutesBetween(a, b time.Time) int {
	d := b.Sub(a)
	mins := d / time.Minute
	if d < 0 && d%time.Minute != 0 {
		mins--
	}
	return int(mins)
}

// Floating returns t's wall-clock fields as a floating datetime.
func Floating(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// FormatDateTime formats a floating datetime without zone information as
// YYYY-MM-DDTHH:MM. Seconds are only written when the value carries them.
func FormatDateTime(t time.Time) string {
	if t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(DateTimeMinutes)
	}
	return t.Format(DateTimeLayout)
}

// CeilMinute rounds t up to the next whole minute unless it already is one.
func CeilMinute(t time.Time) time.Time {
	if f := t.Truncate(time.Minute); !f.Equal(t) {
		return f.Add(time.Minute)
	}
	return t
}

// ParseDateTime parses a floating datetime (YYYY-MM-DDTHH:MM[:SS]).
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(DateTimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(DateTimeMinutes, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q (want YYYY-MM-DDTHH:MM[:SS])", s)
	}
	return t, nil
}

// MonthBounds returns the first and last day of d's month.
func MonthBounds(d Date) (Date, Date) {
	first := NewDate(d.Year, d.Month, 1)
	last := NewDate(d.Year, d.Month+1, 1).AddDays(-1)
	return first, last
}

// YearBounds returns January 1st and December 31st of year.
func YearBounds(year int) (Date, Date) {
	return NewDate(year, time.January, 1), NewDate(year, time.December, 31)
}

// ISOWeek returns the ISO 8601 week number of d.
func ISOWeek(d Date) int {
	_, w := d.Midnight().ISOWeek()
	return w
}
