package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ironsheep/doc-intake-mcp/internal/aggregate"
)

const workbookSheet = "Records"

// WorkbookExporter appends one row per record to an .xlsx file, creating it
// with a header row on first use.
type WorkbookExporter struct {
	path    string
	columns []Column
	logger  *slog.Logger

	mu sync.Mutex
}

// NewWorkbookExporter creates an exporter writing to path.
func NewWorkbookExporter(path string, logger *slog.Logger) *WorkbookExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookExporter{path: path, columns: DefaultColumns, logger: logger}
}

// Headers returns the workbook header row.
func (w *WorkbookExporter) Headers() []string {
	headers := []string{"Person Key"}
	for _, c := range w.columns {
		headers = append(headers, c.Header)
	}
	return append(headers, "Exported At")
}

// Export appends rec as a new row.
func (w *WorkbookExporter) Export(ctx context.Context, rec aggregate.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	defer f.Close()

	rows, err := f.GetRows(workbookSheet)
	if err != nil {
		return fmt.Errorf("%w: read rows: %w", ErrExport, err)
	}
	row := len(rows) + 1

	values := []any{string(rec.Key)}
	for _, c := range w.columns {
		v, _ := rec.Get(c.Field)
		values = append(values, v)
	}
	values = append(values, time.Now().UTC().Format(time.RFC3339))

	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(workbookSheet, cell, &values); err != nil {
		return fmt.Errorf("%w: write row: %w", ErrExport, err)
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrExport, w.path, err)
	}

	w.logger.Info("record appended to workbook", "person_key", rec.Key, "path", w.path, "row", row)
	return nil
}

// open loads the workbook or creates it with a header row.
func (w *WorkbookExporter) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if err == nil {
		if index, _ := f.GetSheetIndex(workbookSheet); index == -1 {
			if _, err := f.NewSheet(workbookSheet); err != nil {
				f.Close()
				return nil, err
			}
			if err := w.writeHeader(f); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", w.path, err)
	}

	f = excelize.NewFile()
	if err := f.SetSheetName("Sheet1", workbookSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := w.writeHeader(f); err != nil {
		f.Close()
		return nil, err
	}
	_ = f.SetColWidth(workbookSheet, "A", "A", 20)
	_ = f.SetColWidth(workbookSheet, "B", "K", 24)
	return f, nil
}

func (w *WorkbookExporter) writeHeader(f *excelize.File) error {
	headers := w.Headers()
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return f.SetSheetRow(workbookSheet, "A1", &row)
}
