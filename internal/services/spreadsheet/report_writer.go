package spreadsheet

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
	"github.com/xuri/excelize/v2"
)

// ReportWriter implements interfaces.ReportWriter, producing one xlsx sheet per section
type ReportWriter struct {
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ReportWriter = (*ReportWriter)(nil)

// NewReportWriter creates a new xlsx report writer
func NewReportWriter(logger arbor.ILogger) *ReportWriter {
	return &ReportWriter{logger: logger}
}

// Write renders sections in order. The first section replaces the default sheet.
// Header cells are bold.
func (rw *ReportWriter) Write(sections []interfaces.ReportSection) ([]byte, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("report has no sections")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for i, section := range sections {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, section.Name); err != nil {
				return nil, fmt.Errorf("failed to name sheet %q: %w", section.Name, err)
			}
		} else if _, err := f.NewSheet(section.Name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %q: %w", section.Name, err)
		}

		if err := writeTable(f, section.Name, section.Table, headerStyle); err != nil {
			return nil, err
		}

		rw.logger.Debug().
			Str("sheet", section.Name).
			Int("rows", section.Table.Len()).
			Msg("Report sheet written")
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sheet string, table *models.Table, headerStyle int) error {
	if table == nil {
		return nil
	}

	header := table.Columns
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %q: %w", sheet, err)
	}
	if len(header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(header), 1)
		if err != nil {
			return fmt.Errorf("failed to address header of %q: %w", sheet, err)
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header of %q: %w", sheet, err)
		}
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d of %q: %w", i+1, sheet, err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", i+1, sheet, err)
		}
	}
	return nil
}
