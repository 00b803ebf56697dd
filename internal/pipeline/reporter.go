package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
)

// Report sheet names, in output order.
const (
	SectionReconciliation = "Reconciliation"
	SectionEDW            = "EDW"
	SectionJournal        = "Journal"
	SectionSuggestions    = "Resolution Suggestions"
)

// Reporter assembles the multi-sheet report
type Reporter struct {
	writer interfaces.ReportWriter
	logger arbor.ILogger
}

// NewReporter creates a new reporter stage
func NewReporter(writer interfaces.ReportWriter, logger arbor.ILogger) *Reporter {
	return &Reporter{writer: writer, logger: logger}
}

func (r *Reporter) Name() string { return StageReporter }

// Run writes the non-empty tables in fixed section order; nil or empty tables are
// left out without comment.
func (r *Reporter) Run(ctx context.Context, in Payload, procedure string) (Payload, models.LogTrail, error) {
	rec := models.NewTrailRecorder(StageReporter, r.logger)
	rec.Add("Generating final Excel report.")

	candidates := []struct {
		name  string
		table *models.Table
		note  string
	}{
		{SectionReconciliation, in.Reconciliation, "Added reconciliation results."},
		{SectionEDW, in.EDW, "Added EDW data."},
		{SectionJournal, in.Journal, "Added Journal data."},
		{SectionSuggestions, in.Suggestions, "Added resolution suggestions."},
	}

	var sections []interfaces.ReportSection
	for _, c := range candidates {
		if c.table.IsEmpty() {
			continue
		}
		sections = append(sections, interfaces.ReportSection{Name: c.name, Table: c.table})
		rec.Add("%s", c.note)
	}

	if len(sections) == 0 {
		rec.Add("Error generating report: no data to report")
		return in, rec.Trail(), fmt.Errorf("%w: no data to report", ErrInput)
	}

	report, err := r.writer.Write(sections)
	if err != nil {
		rec.Add("Error generating report: %v", err)
		return in, rec.Trail(), fmt.Errorf("failed to write report: %w", err)
	}
	rec.Add("Excel file generated successfully.")

	out := in
	out.Report = report
	return out, rec.Trail(), nil
}
