// Package planner turns stored event definitions into dated occurrences and
// searches those occurrences for free time.
//
// Everything here is pure: callers hand in a snapshot of events and
// categories plus an explicit "now", and get fresh values back.
package planner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/agenda/internal/timeutil"
)

// Category groups events for display. Events reference it by ID only.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Kind names a Schedule variant.
type Kind string

const (
	KindPunctual  Kind = "punctual"
	KindRecurring Kind = "recurring"
)

// Schedule is the variant part of an Event: either Punctual or Recurring.
type Schedule interface {
	Kind() Kind
	isSchedule()
}

// Punctual is a one-off event on a single date.
type Punctual struct {
	Date  timeutil.Date      `json:"date"`
	Start timeutil.TimeOfDay `json:"start"`
	End   timeutil.TimeOfDay `json:"end"`
}

// Recurring repeats weekly on Days between From and Until (both inclusive).
type Recurring struct {
	Days  DaySet             `json:"days"`
	From  timeutil.Date      `json:"from"`
	Until timeutil.Date      `json:"until"`
	Start timeutil.TimeOfDay `json:"start"`
	End   timeutil.TimeOfDay `json:"end"`
}

func (Punctual) Kind() Kind  { return KindPunctual }
func (Recurring) Kind() Kind { return KindRecurring }

func (Punctual) isSchedule()  {}
func (Recurring) isSchedule() {}

// Event is a stored event definition.
type Event struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	CategoryID *string  `json:"category_id,omitempty"`
	Schedule   Schedule `json:"-"`
}

// eventJSON is the flattened wire shape of an Event.
type eventJSON struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	CategoryID *string    `json:"category_id,omitempty"`
	Kind       Kind       `json:"kind"`
	Punctual   *Punctual  `json:"punctual,omitempty"`
	Recurring  *Recurring `json:"recurring,omitempty"`
}

// MarshalJSON encodes the schedule variant under its kind.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{ID: e.ID, Title: e.Title, CategoryID: e.CategoryID}
	switch s := e.Schedule.(type) {
	case Punctual:
		out.Kind = KindPunctual
		out.Punctual = &s
	case Recurring:
		out.Kind = KindRecurring
		out.Recurring = &s
	default:
		return nil, fmt.Errorf("event %s has no schedule", e.ID)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the flattened wire shape.
func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.ID = in.ID
	e.Title = in.Title
	e.CategoryID = in.CategoryID
	switch in.Kind {
	case KindPunctual:
		if in.Punctual == nil {
			return fmt.Errorf("punctual event %s is missing its schedule", in.ID)
		}
		e.Schedule = *in.Punctual
	case KindRecurring:
		if in.Recurring == nil {
			return fmt.Errorf("recurring event %s is missing its schedule", in.ID)
		}
		e.Schedule = *in.Recurring
	default:
		return fmt.Errorf("unknown event kind %q", in.Kind)
	}
	return nil
}

// Occurrence is one dated instance of an Event.
type Occurrence struct {
	EventID   string
	Title     string
	Category  *Category
	Start     time.Time
	End       time.Time
	Recurring bool
}

type occurrenceJSON struct {
	EventID   string    `json:"event_id"`
	Title     string    `json:"title"`
	Category  *Category `json:"category,omitempty"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Recurring bool      `json:"recurring"`
}

// MarshalJSON writes start/end as zone-less wall-clock datetimes.
func (o Occurrence) MarshalJSON() ([]byte, error) {
	return json.Marshal(occurrenceJSON{
		EventID:   o.EventID,
		Title:     o.Title,
		Category:  o.Category,
		Start:     timeutil.FormatDateTime(o.Start),
		End:       timeutil.FormatDateTime(o.End),
		Recurring: o.Recurring,
	})
}

// Interval is a busy span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is a free span found by the slot finder.
type Slot struct {
	Start time.Time
	End   time.Time
}

type slotJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON writes start/end as zone-less wall-clock datetimes.
func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(slotJSON{
		Start: timeutil.FormatDateTime(s.Start),
		End:   timeutil.FormatDateTime(s.End),
	})
}

// UnmarshalJSON parses zone-less wall-clock datetimes.
func (s *Slot) UnmarshalJSON(data []byte) error {
	var in slotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	start, err := timeutil.ParseDateTime(in.Start)
	if err != nil {
		return err
	}
	end, err := timeutil.ParseDateTime(in.End)
	if err != nil {
		return err
	}
	s.Start, s.End = start, end
	return nil
}

// DaySet is a set of weekday indices, 0=Monday .. 6=Sunday.
type DaySet uint8

// AllDays contains every weekday.
const AllDays DaySet = 1<<7 - 1

// Weekday short names, indexed by weekday.
var WeekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// NewDaySet builds a DaySet, rejecting indices outside 0..6.
func NewDaySet(days ...int) (DaySet, error) {
	var s DaySet
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, fmt.Errorf("weekday %d out of range 0..6", d)
		}
		s |= 1 << d
	}
	return s, nil
}

// Has reports whether weekday d is in the set.
func (s DaySet) Has(d int) bool {
	return d >= 0 && d <= 6 && s&(1<<d) != 0
}

// IsEmpty reports whether no weekday is set.
func (s DaySet) IsEmpty() bool {
	return s&AllDays == 0
}

// Days returns the weekday indices in ascending order.
func (s DaySet) Days() []int {
	days := make([]int, 0, 7)
	for d := 0; d < 7; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// String formats the set as comma-separated indices ("0,2,4").
func (s DaySet) String() string {
	parts := make([]string, 0, 7)
	for _, d := range s.Days() {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

// ParseDaySet parses comma-separated weekday indices or short names.
func ParseDaySet(str string) (DaySet, error) {
	var days []int
	for _, part := range strings.Split(str, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			days = append(days, n)
			continue
		}
		idx := -1
		for i, name := range WeekdayNames {
			if strings.EqualFold(name, part) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, idx)
	}
	return NewDaySet(days...)
}

// MarshalJSON encodes the set as an array of indices.
func (s DaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Days())
}

// UnmarshalJSON decodes an array of indices.
func (s *DaySet) UnmarshalJSON(data []byte) error {
	var days []int
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	parsed, err := NewDaySet(days...)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SortOccurrences orders occurrences by start, keeping input order on ties.
func SortOccurrences(occs []Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		return occs[i].Start.Before(occs[j].Start)
	})
}
