package ops

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

const occurrenceSheet = "Occurrences"

var occurrenceColumns = []string{"Date", "Weekday", "Start", "End", "Minutes", "Title", "Category", "Recurring"}

// writeXLSX writes one row per occurrence to a single-sheet workbook.
func writeXLSX(w io.Writer, occs []planner.Occurrence) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", occurrenceSheet)

	if err := setRow(f, 1, stringsToCells(occurrenceColumns)); err != nil {
		return 0, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(occurrenceColumns), 1)
		_ = f.SetCellStyle(occurrenceSheet, "A1", last, style)
	}

	for i, o := range occs {
		category := ""
		if o.Category != nil {
			category = o.Category.Name
		}
		d := timeutil.DateOf(o.Start)
		row := []any{
			d.String(),
			planner.WeekdayNames[d.Weekday()],
			timeutil.TimeOfDayOf(o.Start).String(),
			timeutil.TimeOfDayOf(o.End).String(),
			timeutil.MinutesBetween(o.Start, o.End),
			o.Title,
			category,
			o.Recurring,
		}
		if err := setRow(f, i+2, row); err != nil {
			return 0, err
		}
	}

	if err := f.Write(w); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("write workbook: %w", err))
	}
	return len(occs), nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := f.SetSheetRow(occurrenceSheet, cell, &values); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func stringsToCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
