package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// Export formats.
const (
	FormatJSONL = "jsonl"
	FormatICS   = "ics"
	FormatXLSX  = "xlsx"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	User     string
	AllUsers bool   // jsonl only: export every user's data
	Format   string // jsonl, ics or xlsx; default: from Path's extension, else jsonl
	Path     string // optional, default: ~/.agenda/exports/<user>-<timestamp>.<format>

	// Occurrence range for xlsx; default: the current year.
	From string
	To   string
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes the user's planner to a file.
//
// jsonl holds categories, event definitions and priorities and can be read
// back by Import. ics holds one VEVENT per event definition. xlsx holds the
// expanded occurrences of a date range.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, clock timeutil.Clock, input ExportInput) (*ExportOutput, error) {
	format, err := exportFormat(input.Format, input.Path)
	if err != nil {
		return nil, err
	}
	if input.AllUsers && format != FormatJSONL {
		return nil, errors.NewInvalidRequest("all_users is only supported for jsonl exports")
	}

	now := time.Now()
	user := resolveUser(cfg, input.User)
	exportPath := input.Path
	if exportPath == "" {
		name := user
		if input.AllUsers {
			name = "all"
		}
		if exportPath, err = defaultExportPath(name, format, now); err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(exportPath, PathCheckWrite, cfg, "."+format); err != nil {
		return nil, err
	}

	var write func(w io.Writer) (int, error)
	switch format {
	case FormatJSONL:
		filterUser := user
		if input.AllUsers {
			filterUser = ""
		}
		write = func(w io.Writer) (int, error) {
			return writeJSONL(ctx, database, w, filterUser, now.Unix())
		}
	case FormatICS:
		write = func(w io.Writer) (int, error) {
			return writeICS(ctx, database, w, user, now)
		}
	case FormatXLSX:
		year := clock.Now().Year()
		first, last := timeutil.YearBounds(year)
		from, err := parseDateOr("from", input.From, first)
		if err != nil {
			return nil, err
		}
		to, err := parseDateOr("to", input.To, last)
		if err != nil {
			return nil, err
		}
		if to.Before(from) {
			return nil, errors.NewInvalidRequest("to must not be before from")
		}
		occs, err := expandRange(ctx, database, cfg, user, from, to)
		if err != nil {
			return nil, err
		}
		write = func(w io.Writer) (int, error) {
			return writeXLSX(w, occs)
		}
	}

	count, err := writeFileAtomic(exportPath, write)
	if err != nil {
		return nil, err
	}
	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Count:      count,
		ExportedAt: now.Unix(),
	}, nil
}

// exportFormat resolves the requested format, falling back to the path's
// extension and then to jsonl.
func exportFormat(format, path string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if format == "" {
			format = FormatJSONL
		}
	}
	switch format {
	case FormatJSONL, FormatICS, FormatXLSX:
		return format, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("format must be one of jsonl, ics, xlsx (got %q)", format))
}

// writeFileAtomic writes to a temp file next to path and renames it into
// place, so a failed export never clobbers an existing file.
func writeFileAtomic(path string, write func(w io.Writer) (int, error)) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	bw := bufio.NewWriter(file)
	count, err := write(bw)
	if err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return 0, errors.NewInternal(err)
	}

	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return 0, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows os.Rename fails when the destination exists. The existing
	// file is kept rather than replaced non-atomically.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return 0, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return 0, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return count, nil
}

// writeJSONL writes the header, then categories, events and priorities.
// An empty user exports every user.
func writeJSONL(ctx context.Context, database *sql.DB, w io.Writer, user string, exportedAt int64) (int, error) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(ExportHeader{
		AgendaExport:  true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    exportedAt,
	}); err != nil {
		return 0, errors.NewInternal(err)
	}

	var records []ExportRecord
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		cats, err := db.ListCategories(ctx, tx, user)
		if err != nil {
			return err
		}
		events, err := db.ListEvents(ctx, tx, db.ListEventsFilter{User: user})
		if err != nil {
			return err
		}
		prios, err := db.ListPriorities(ctx, tx, user)
		if err != nil {
			return err
		}

		records = make([]ExportRecord, 0, len(cats)+len(events)+len(prios))
		for i := range cats {
			records = append(records, categoryRecord(&cats[i]))
		}
		for i := range events {
			records = append(records, eventRecord(&events[i]))
		}
		for i := range prios {
			records = append(records, prioritiesRecord(&prios[i]))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i := range records {
		if err := checkCancelled(ctx, "export"); err != nil {
			return 0, err
		}
		if err := enc.Encode(&records[i]); err != nil {
			return 0, errors.NewInternal(err)
		}
	}
	return len(records), nil
}

// defaultExportPath generates ~/.agenda/exports/<name>-<timestamp>.<format>.
func defaultExportPath(name, format string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	timestamp := now.Format("2006-01-02T150405")
	filename := fmt.Sprintf("%s-%s.%s", SanitizeForFilename(name), timestamp, format)
	return filepath.Join(dir, filename), nil
}
