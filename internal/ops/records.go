package ops

import (
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// ExportSchemaVersion is written in the header of every JSONL export.
const ExportSchemaVersion = "1.0"

// Record types in a JSONL export.
const (
	RecordCategory   = "category"
	RecordEvent      = "event"
	RecordPriorities = "priorities"
)

// ExportHeader is the first line of a JSONL export.
type ExportHeader struct {
	AgendaExport  bool   `json:"_agenda_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportRecord is one line of a JSONL export. Exactly one of Category,
// Event and Priorities is set, as named by Type.
type ExportRecord struct {
	AgendaExport bool   `json:"_agenda_export,omitempty"`
	Type         string `json:"type,omitempty"`
	User         string `json:"user,omitempty"`
	CreatedAt    int64  `json:"created_at,omitempty"`
	UpdatedAt    int64  `json:"updated_at,omitempty"`

	Category   *planner.Category `json:"category,omitempty"`
	Event      *planner.Event    `json:"event,omitempty"`
	Priorities *PrioritiesRecord `json:"priorities,omitempty"`
}

// PrioritiesRecord is the exported form of one week's priorities.
type PrioritiesRecord struct {
	WeekStart timeutil.Date      `json:"week_start"`
	Goals     string             `json:"goals"`
	Items     [3]db.PriorityItem `json:"items"`
}

func categoryRecord(c *db.Category) ExportRecord {
	cat := toPlannerCategory(*c)
	return ExportRecord{
		Type:      RecordCategory,
		User:      c.User,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Category:  &cat,
	}
}

func eventRecord(e *db.Event) ExportRecord {
	ev := e.Event
	return ExportRecord{
		Type:      RecordEvent,
		User:      e.User,
		CreatedAt: e.CreatedAt,
		Event:     &ev,
	}
}

func prioritiesRecord(p *db.Priorities) ExportRecord {
	return ExportRecord{
		Type:      RecordPriorities,
		User:      p.User,
		UpdatedAt: p.UpdatedAt,
		Priorities: &PrioritiesRecord{
			WeekStart: p.WeekStart,
			Goals:     p.Goals,
			Items:     p.Items,
		},
	}
}

// id returns the identifier reported in import errors.
func (r *ExportRecord) id() string {
	switch {
	case r.Category != nil:
		return r.Category.ID
	case r.Event != nil:
		return r.Event.ID
	case r.Priorities != nil:
		return r.Priorities.WeekStart.String()
	}
	return ""
}
