// -----------------------------------------------------------------------
// Spreadsheet Workbook - xlsx input via excelize
// -----------------------------------------------------------------------

package spreadsheet

import (
	"errors"
	"fmt"
	"io"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when a workbook has no sheet with the requested name.
var ErrSheetNotFound = errors.New("sheet not found")

// Workbook implements interfaces.Workbook over an xlsx document
type Workbook struct {
	file   *excelize.File
	name   string
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Workbook = (*Workbook)(nil)

// Open opens the xlsx workbook at path
func Open(path string, logger arbor.ILogger) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Workbook{file: f, name: path, logger: logger}, nil
}

// OpenReader reads an xlsx workbook from r; name is used in log messages only
func OpenReader(r io.Reader, name string, logger arbor.ILogger) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook %s: %w", name, err)
	}
	return &Workbook{file: f, name: name, logger: logger}, nil
}

// SheetNames lists the sheets in workbook order
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// Sheet reads the named sheet into a table. The first row is the header; shorter
// rows are padded and longer rows truncated to the header width. The name must
// match exactly, including case.
func (w *Workbook) Sheet(name string) (*models.Table, error) {
	if !w.hasSheet(name) {
		return nil, fmt.Errorf("%w: %q in %s", ErrSheetNotFound, name, w.name)
	}

	rows, err := w.file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}
	if len(rows) == 0 {
		w.logger.Warn().Str("sheet", name).Msg("Sheet is empty")
		return models.NewTable(nil), nil
	}

	table := models.NewTable(rows[0])
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		table.AppendRow(row)
	}

	w.logger.Debug().
		Str("sheet", name).
		Int("columns", len(table.Columns)).
		Int("rows", table.Len()).
		Msg("Sheet read")

	return table, nil
}

// Close releases the underlying file
func (w *Workbook) Close() error {
	return w.file.Close()
}

// hasSheet checks the sheet list directly; excelize's own lookups ignore case
func (w *Workbook) hasSheet(name string) bool {
	for _, s := range w.file.GetSheetList() {
		if s == name {
			return true
		}
	}
	return false
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
