package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision (atomic)
	ImportModeReplace ImportMode = "replace" // overwrite on collision
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required; .jsonl export or .ics calendar
	Mode ImportMode // default: error
	User string     // owner of events read from .ics files
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import codes reported per record.
const (
	CodeParseError    = "PARSE_ERROR"
	CodeInvalidRecord = "INVALID_RECORD"
	CodeReadError     = "READ_ERROR"
	CodeIDCollision   = "ID_COLLISION"
	CodeNameCollision = "NAME_COLLISION"
	CodeWeekCollision = "WEEK_COLLISION"
	CodeUnsupported   = "UNSUPPORTED"
	CodeInsertFailed  = "INSERT_FAILED"
)

// Import reads a JSONL export or an iCalendar file into the store.
//
// In error mode nothing is written unless every record can be stored
// without colliding with existing data. In replace mode records overwrite
// what they collide with and invalid records are skipped.
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg, ".jsonl", ".ics"); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if errors.As(err).Code != errors.ErrInternal {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(input.Path), ".ics") {
		return importICS(ctx, database, cfg, file, resolveUser(cfg, input.User), input.Mode)
	}

	records, parseErrors := parseExportFile(file)
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	switch input.Mode {
	case ImportModeError:
		return importModeError(ctx, database, records)
	default:
		return importModeReplace(ctx, database, records, parseErrors)
	}
}

// parsedRecord is a validated line of an export file.
type parsedRecord struct {
	line       int
	typ        string
	category   *db.Category
	event      *db.Event
	priorities *db.Priorities
}

func (p *parsedRecord) id() string {
	switch {
	case p.category != nil:
		return p.category.ID
	case p.event != nil:
		return p.event.ID
	case p.priorities != nil:
		return p.priorities.WeekStart.String()
	}
	return ""
}

// parseExportFile parses and validates a JSONL export.
func parseExportFile(r io.Reader) ([]parsedRecord, []ImportError) {
	var records []parsedRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var rec ExportRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    CodeParseError,
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if rec.AgendaExport {
			continue
		}

		p, err := toParsedRecord(&rec)
		if err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ID:      rec.id(),
				Type:    rec.Type,
				Code:    CodeInvalidRecord,
				Message: err.Error(),
			})
			continue
		}
		p.line = lineNum
		records = append(records, *p)
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    CodeReadError,
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

// toParsedRecord validates rec and converts it to store rows.
func toParsedRecord(rec *ExportRecord) (*parsedRecord, error) {
	user := planner.Normalize(rec.User)
	if user == "" {
		return nil, fmt.Errorf("missing user field")
	}

	switch rec.Type {
	case RecordCategory:
		c := rec.Category
		if c == nil || c.ID == "" {
			return nil, fmt.Errorf("missing category id")
		}
		nameNorm := planner.Normalize(c.Name)
		if nameNorm == "" {
			return nil, fmt.Errorf("category %s has no name", c.ID)
		}
		if !planner.ValidColor(c.Color) {
			return nil, fmt.Errorf("category %s has invalid color %q", c.ID, c.Color)
		}
		return &parsedRecord{typ: rec.Type, category: &db.Category{
			ID:        c.ID,
			User:      user,
			Name:      strings.TrimSpace(c.Name),
			NameNorm:  nameNorm,
			Color:     strings.ToUpper(c.Color),
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}}, nil

	case RecordEvent:
		e := rec.Event
		if e == nil || e.ID == "" {
			return nil, fmt.Errorf("missing event id")
		}
		if strings.TrimSpace(e.Title) == "" {
			return nil, fmt.Errorf("event %s has no title", e.ID)
		}
		if err := planner.ValidateSchedule(e.Schedule); err != nil {
			return nil, fmt.Errorf("event %s: %v", e.ID, err)
		}
		return &parsedRecord{typ: rec.Type, event: &db.Event{
			Event:     *e,
			User:      user,
			CreatedAt: rec.CreatedAt,
		}}, nil

	case RecordPriorities:
		p := rec.Priorities
		if p == nil || p.WeekStart.IsZero() {
			return nil, fmt.Errorf("missing week_start")
		}
		return &parsedRecord{typ: rec.Type, priorities: &db.Priorities{
			User:      user,
			WeekStart: timeutil.WeekStart(p.WeekStart),
			Goals:     p.Goals,
			Items:     p.Items,
			UpdatedAt: rec.UpdatedAt,
		}}, nil
	}
	return nil, fmt.Errorf("unknown record type %q", rec.Type)
}

// importModeError imports all records atomically, stopping at the first
// collision.
func importModeError(ctx context.Context, database *sql.DB, records []parsedRecord) (*ImportOutput, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	imported := 0
	for i := range records {
		if err := checkCancelled(ctx, "import"); err != nil {
			return nil, err
		}
		r := &records[i]
		collision, err := insertRecord(ctx, tx, r)
		if err != nil {
			return nil, err
		}
		if collision != nil {
			return &ImportOutput{Errors: []ImportError{*collision}}, nil
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ImportOutput{Imported: imported, Errors: []ImportError{}}, nil
}

// insertRecord inserts r, reporting a collision instead of overwriting.
func insertRecord(ctx context.Context, tx *sql.Tx, r *parsedRecord) (*ImportError, error) {
	collision := func(code, msg string) *ImportError {
		return &ImportError{Line: r.line, ID: r.id(), Type: r.typ, Code: code, Message: msg}
	}

	switch {
	case r.category != nil:
		c := r.category
		if _, err := db.GetCategoryByName(ctx, tx, c.User, c.NameNorm); err == nil {
			return collision(CodeNameCollision, fmt.Sprintf("category %q already exists for user %q", c.Name, c.User)), nil
		} else if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		if err := db.InsertCategory(ctx, tx, c); err != nil {
			if err == db.ErrUniqueConstraint {
				return collision(CodeIDCollision, fmt.Sprintf("category with id %q already exists", c.ID)), nil
			}
			return nil, err
		}

	case r.event != nil:
		if err := db.InsertEvent(ctx, tx, r.event); err != nil {
			if err == db.ErrUniqueConstraint {
				return collision(CodeIDCollision, fmt.Sprintf("event with id %q already exists", r.event.ID)), nil
			}
			return nil, err
		}

	case r.priorities != nil:
		p := r.priorities
		if _, err := db.GetPriorities(ctx, tx, p.User, p.WeekStart); err == nil {
			return collision(CodeWeekCollision, fmt.Sprintf("priorities for week %s already exist for user %q", p.WeekStart, p.User)), nil
		} else if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		if err := db.UpsertPriorities(ctx, tx, p); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// importModeReplace imports records one by one, overwriting on collision.
// A category whose name is taken by another category of the same user is
// merged into that category, and later events follow it.
func importModeReplace(ctx context.Context, database *sql.DB, records []parsedRecord, parseErrors []ImportError) (*ImportOutput, error) {
	out := &ImportOutput{Errors: append([]ImportError{}, parseErrors...)}
	out.Skipped = len(parseErrors)

	merged := make(map[string]string) // imported category ID -> stored ID

	for i := range records {
		if err := checkCancelled(ctx, "import"); err != nil {
			return nil, err
		}
		r := &records[i]

		var err error
		switch {
		case r.category != nil:
			c := r.category
			existing, lookupErr := db.GetCategoryByName(ctx, database, c.User, c.NameNorm)
			if lookupErr != nil && !errors.Is(lookupErr, errors.ErrNotFound) {
				return nil, lookupErr
			}
			if existing != nil && existing.ID != c.ID {
				merged[c.ID] = existing.ID
				c.ID = existing.ID
				c.CreatedAt = existing.CreatedAt
			}
			err = db.ReplaceCategory(ctx, database, c)

		case r.event != nil:
			if r.event.CategoryID != nil {
				if to, ok := merged[*r.event.CategoryID]; ok {
					r.event.CategoryID = &to
				}
			}
			err = db.UpsertEvent(ctx, database, r.event)

		case r.priorities != nil:
			err = db.UpsertPriorities(ctx, database, r.priorities)
		}

		if err != nil {
			if errors.Is(err, errors.ErrInternal) {
				return nil, err
			}
			out.Errors = append(out.Errors, ImportError{
				Line:    r.line,
				ID:      r.id(),
				Type:    r.typ,
				Code:    CodeInsertFailed,
				Message: err.Error(),
			})
			out.Skipped++
			continue
		}
		out.Imported++
	}
	return out, nil
}
