package planner

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/hpungsan/agenda/internal/errors"
)

func TestDaySet(t *testing.T) {
	s, err := NewDaySet(4, 0, 2, 2)
	if err != nil {
		t.Fatalf("NewDaySet error = %v", err)
	}
	if got := s.String(); got != "0,2,4" {
		t.Errorf("String() = %q, want %q", got, "0,2,4")
	}
	if !s.Has(2) || s.Has(1) || s.Has(7) || s.Has(-1) {
		t.Errorf("Has() wrong for %v", s.Days())
	}
	if s.IsEmpty() {
		t.Error("IsEmpty() = true")
	}
	if _, err := NewDaySet(7); err == nil {
		t.Error("NewDaySet(7) expected error")
	}
	if !DaySet(0).IsEmpty() {
		t.Error("zero DaySet not empty")
	}
}

func TestParseDaySet(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0,2,4", "0,2,4", false},
		{"mon, wed ,FRI", "0,2,4", false},
		{"sun,0", "0,6", false},
		{"", "", false},
		{"8", "", true},
		{"someday", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDaySet(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDaySet(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDaySet(%q) error = %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseDaySet(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEventJSON(t *testing.T) {
	ev := Event{
		ID:         "01HX",
		Title:      "Gym",
		CategoryID: strPtr("cat"),
		Schedule: Recurring{
			Days:  days(t, 0, 2, 4),
			From:  date(t, "2024-01-01"),
			Until: date(t, "2024-01-31"),
			Start: tod(t, "18:00"),
			End:   tod(t, "19:00"),
		},
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	for _, want := range []string{`"kind":"recurring"`, `"days":[0,2,4]`, `"from":"2024-01-01"`, `"start":"18:00"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Marshal = %s, missing %s", data, want)
		}
	}

	var back Event
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if back.Schedule != ev.Schedule || back.ID != ev.ID || *back.CategoryID != "cat" {
		t.Errorf("decoded = %+v", back)
	}

	if err := json.Unmarshal([]byte(`{"id":"x","kind":"weekly"}`), &back); err == nil {
		t.Error("unknown kind expected error")
	}
	if err := json.Unmarshal([]byte(`{"id":"x","kind":"punctual"}`), &back); err == nil {
		t.Error("missing punctual body expected error")
	}
}

func TestOccurrenceJSON(t *testing.T) {
	o := Occurrence{EventID: "e", Title: "T", Start: dt(t, "2024-01-08T18:00"), End: dt(t, "2024-01-08T19:00")}
	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if !strings.Contains(string(data), `"start":"2024-01-08T18:00"`) {
		t.Errorf("Marshal = %s", data)
	}
	if strings.Contains(string(data), "category") {
		t.Errorf("nil category should be omitted: %s", data)
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name    string
		s       Schedule
		wantErr bool
	}{
		{"punctual ok", Punctual{Date: date(t, "2024-01-08"), Start: tod(t, "09:00"), End: tod(t, "10:00")}, false},
		{"punctual end before start", Punctual{Date: date(t, "2024-01-08"), Start: tod(t, "10:00"), End: tod(t, "09:00")}, true},
		{"punctual zero length", Punctual{Date: date(t, "2024-01-08"), Start: tod(t, "10:00"), End: tod(t, "10:00")}, true},
		{"punctual without date", Punctual{Start: tod(t, "09:00"), End: tod(t, "10:00")}, true},
		{"recurring ok", Recurring{Days: days(t, 1), From: date(t, "2024-01-01"), Until: date(t, "2024-01-01"), Start: tod(t, "09:00"), End: tod(t, "10:00")}, false},
		{"recurring no days", Recurring{From: date(t, "2024-01-01"), Until: date(t, "2024-02-01"), Start: tod(t, "09:00"), End: tod(t, "10:00")}, true},
		{"recurring bad day bits", Recurring{Days: DaySet(1 << 7), From: date(t, "2024-01-01"), Until: date(t, "2024-02-01"), Start: tod(t, "09:00"), End: tod(t, "10:00")}, true},
		{"recurring inverted range", Recurring{Days: days(t, 1), From: date(t, "2024-02-01"), Until: date(t, "2024-01-01"), Start: tod(t, "09:00"), End: tod(t, "10:00")}, true},
		{"recurring end before start", Recurring{Days: days(t, 1), From: date(t, "2024-01-01"), Until: date(t, "2024-02-01"), Start: tod(t, "19:00"), End: tod(t, "18:00")}, true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.s)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidRequest) {
					t.Errorf("ValidateSchedule() = %v, want INVALID_REQUEST", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateSchedule() error = %v", err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Hello World", "hello world"},
		{"  hello  ", "hello"},
		{"hello\t\n  world", "hello world"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidColor(t *testing.T) {
	for _, ok := range []string{"#4C78A8", "#ffffff"} {
		if !ValidColor(ok) {
			t.Errorf("ValidColor(%q) = false", ok)
		}
	}
	for _, bad := range []string{"4C78A8", "#FFF", "#GGGGGG", ""} {
		if ValidColor(bad) {
			t.Errorf("ValidColor(%q) = true", bad)
		}
	}
}

func TestWeeklyRule(t *testing.T) {
	s := Recurring{
		Days:  days(t, 0, 2, 4),
		From:  date(t, "2025-01-06"),
		Until: date(t, "2025-01-31"),
		Start: tod(t, "09:00"),
		End:   tod(t, "10:00"),
	}
	got := WeeklyRule(s)
	want := "FREQ=WEEKLY;BYDAY=MO,WE,FR;UNTIL=20250131T235959"
	if got != want {
		t.Errorf("WeeklyRule() = %q, want %q", got, want)
	}
}

func TestParseWeeklyRule(t *testing.T) {
	mask, until, err := ParseWeeklyRule("FREQ=WEEKLY;BYDAY=MO,WE,FR;UNTIL=20250131T235959", date(t, "2025-01-06"))
	if err != nil {
		t.Fatalf("ParseWeeklyRule() error = %v", err)
	}
	if mask != days(t, 0, 2, 4) {
		t.Errorf("mask = %v, want 0,2,4", mask)
	}
	if until != date(t, "2025-01-31") {
		t.Errorf("until = %v, want 2025-01-31", until)
	}

	mask, _, err = ParseWeeklyRule("FREQ=WEEKLY;UNTIL=20250131T000000Z", date(t, "2025-01-09"))
	if err != nil {
		t.Fatalf("ParseWeeklyRule() error = %v", err)
	}
	if mask != days(t, 3) {
		t.Errorf("mask without BYDAY = %v, want dtstart weekday 3", mask)
	}

	for _, bad := range []string{
		"FREQ=DAILY;UNTIL=20250131T000000Z",
		"FREQ=WEEKLY;COUNT=3",
		"FREQ=WEEKLY;BYDAY=MO",
		"FREQ=WEEKLY;INTERVAL=2;UNTIL=20250131T000000Z",
		"not a rule",
	} {
		if _, _, err := ParseWeeklyRule(bad, date(t, "2025-01-06")); err == nil {
			t.Errorf("ParseWeeklyRule(%q) expected error", bad)
		}
	}
}
