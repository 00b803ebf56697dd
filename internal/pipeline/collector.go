package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
)

// Source sheet names. Lookups are exact and case-sensitive.
const (
	SheetEDW     = "EDW"
	SheetJournal = "Journal"
)

// Collector reads the EDW and Journal sheets from the source workbook
type Collector struct {
	logger arbor.ILogger
}

// NewCollector creates a new collector stage
func NewCollector(logger arbor.ILogger) *Collector {
	return &Collector{logger: logger}
}

func (c *Collector) Name() string { return StageCollector }

// Run reads both sheets into the payload. A missing or unreadable sheet is ErrInput.
func (c *Collector) Run(ctx context.Context, in Payload, procedure string) (Payload, models.LogTrail, error) {
	rec := models.NewTrailRecorder(StageCollector, c.logger)
	rec.Add("Reading Excel sheets: %s and %s", SheetEDW, SheetJournal)

	if in.Source == nil {
		rec.Add("Error reading Excel file: no workbook supplied")
		return in, rec.Trail(), fmt.Errorf("%w: no workbook supplied", ErrInput)
	}

	edw, err := in.Source.Sheet(SheetEDW)
	if err != nil {
		return in, c.fail(rec, in.Source, SheetEDW, err), fmt.Errorf("%w: sheet %s: %w", ErrInput, SheetEDW, err)
	}
	journal, err := in.Source.Sheet(SheetJournal)
	if err != nil {
		return in, c.fail(rec, in.Source, SheetJournal, err), fmt.Errorf("%w: sheet %s: %w", ErrInput, SheetJournal, err)
	}

	rec.Add("Successfully read both sheets (%s: %d rows, %s: %d rows).", SheetEDW, edw.Len(), SheetJournal, journal.Len())

	out := in
	out.EDW = edw
	out.Journal = journal
	return out, rec.Trail(), nil
}

// fail records the read error and the sheets the workbook does have.
func (c *Collector) fail(rec *models.TrailRecorder, source interfaces.Workbook, sheet string, err error) models.LogTrail {
	rec.Add("Error reading Excel file: %v", err)
	rec.Add("Sheets available: %s", strings.Join(source.SheetNames(), ", "))

	c.logger.Warn().
		Str("sheet", sheet).
		Strs("available", source.SheetNames()).
		Msg("Required sheet missing from workbook")

	return rec.Trail()
}
