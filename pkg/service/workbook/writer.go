package workbook

import (
	"context"
	"fmt"
	"math"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/xuri/excelize/v2"
)

// maxSheetName is the Excel limit on sheet name length
const maxSheetName = 31

// SummarySheet is the name of the sheet listing every hazard series
const SummarySheet = "KCOR_summary"

// Options controls the workbook layout
type Options struct {
	// BySex adds a Sex column to the attrition and rate sheets
	BySex bool
	// StandardPersonTime is written as the Alive count of ASMR rows
	StandardPersonTime float64
}

// Writer renders enrollment results into an XLSX workbook
type Writer struct {
	opts Options
}

// New creates a Writer
func New(opts Options) *Writer {
	return &Writer{opts: opts}
}

// Write saves the workbook to path. Sheets are written in enrollment order,
// followed by the summary sheet.
func (w *Writer) Write(ctx context.Context, path string, results []*model.EnrollmentResult) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			ctxlog.From(ctx).Warn("failed to close workbook", "error", err)
		}
	}()

	names := newSheetNames()
	for _, r := range results {
		base := r.Enrollment.SheetName()
		if err := w.writeSheet(f, names.unique(base), w.attritionRows(r)); err != nil {
			return err
		}
		if err := w.writeSheet(f, names.unique(base+"_CMR"), w.rateRows(r)); err != nil {
			return err
		}
		for _, h := range r.Hazards {
			if err := w.writeSheet(f, names.unique(h.Name()+"_KCOR"), hazardRows(h)); err != nil {
				return err
			}
		}
	}
	if err := w.writeSheet(f, names.unique(SummarySheet), summaryRows(results)); err != nil {
		return err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return goerr.Wrap(err, "failed to remove default sheet")
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return goerr.Wrap(err, "failed to save workbook", goerr.V("path", path))
	}

	ctxlog.From(ctx).Info("workbook written", "path", path, "sheets", len(f.GetSheetList()))
	return nil
}

func (w *Writer) writeSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return goerr.Wrap(err, "failed to create sheet", goerr.V("sheet", name))
	}
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return goerr.Wrap(err, "failed to open sheet writer", goerr.V("sheet", name))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return goerr.Wrap(err, "invalid cell", goerr.V("sheet", name), goerr.V("row", i+1))
		}
		if err := sw.SetRow(cell, row); err != nil {
			return goerr.Wrap(err, "failed to write row", goerr.V("sheet", name), goerr.V("row", i+1))
		}
	}
	if err := sw.Flush(); err != nil {
		return goerr.Wrap(err, "failed to flush sheet", goerr.V("sheet", name))
	}
	return nil
}

// num converts a float to a cell value, leaving NaN and infinities empty
func num(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// sheetNames keeps sheet names unique and within the Excel length limit
type sheetNames struct {
	used map[string]bool
}

func newSheetNames() *sheetNames {
	return &sheetNames{used: make(map[string]bool)}
}

func (s *sheetNames) unique(name string) string {
	candidate := name
	if len(candidate) > maxSheetName {
		candidate = candidate[:maxSheetName]
	}
	for n := 2; s.used[candidate]; n++ {
		suffix := fmt.Sprintf("~%d", n)
		base := name
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = base + suffix
	}
	s.used[candidate] = true
	return candidate
}
