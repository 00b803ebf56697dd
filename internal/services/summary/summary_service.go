// -----------------------------------------------------------------------
// Run Summary - markdown and PDF summary of a reconciliation run
// -----------------------------------------------------------------------

package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
)

// Service renders a finished run as markdown and, through the PDF service, as PDF
type Service struct {
	pdfService interfaces.PDFService
	logger     arbor.ILogger
	now        func() time.Time
}

// Compile-time assertion
var _ interfaces.SummaryService = (*Service)(nil)

// NewService creates a new run summary service
func NewService(pdfService interfaces.PDFService, logger arbor.ILogger) *Service {
	return &Service{
		pdfService: pdfService,
		logger:     logger,
		now:        time.Now,
	}
}

// BuildMarkdown renders status counts, anomalies and the log trail
func (s *Service) BuildMarkdown(source string, result *models.RunResult) string {
	var b strings.Builder
	stats := result.Stats

	b.WriteString("# Reconciliation Summary\n\n")
	fmt.Fprintf(&b, "- **Run ID:** %s\n", result.RunID)
	fmt.Fprintf(&b, "- **Source:** %s\n", source)
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", s.now().UTC().Format(time.RFC3339))

	b.WriteString("## Results\n\n")
	b.WriteString("| Measure | Count |\n|---|---|\n")
	rows := []struct {
		label string
		count int
	}{
		{"EDW rows", stats.EDWRows},
		{"Journal rows", stats.JournalRows},
		{models.StatusMatched, stats.Matched},
		{models.StatusPartial, stats.Partial},
		{models.StatusUnmatched, stats.Unmatched},
		{"Unrecognised status", stats.Other},
		{"Resolution suggestions", stats.Suggestions},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %d |\n", row.label, row.count)
	}
	b.WriteString("\n")

	if len(result.Anomalies) > 0 {
		b.WriteString("## Anomalies\n\n")
		b.WriteString("| Row | Column | Value |\n|---|---|---|\n")
		for _, a := range result.Anomalies {
			fmt.Fprintf(&b, "| %d | %s | %s |\n", a.Row+1, a.Column, escapeCell(a.Value))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Log Trail\n\n```text\n")
	for _, entry := range result.Logs {
		b.WriteString(entry)
		b.WriteString("\n")
	}
	b.WriteString("```\n")

	return b.String()
}

// GeneratePDF renders the markdown summary as a PDF document
func (s *Service) GeneratePDF(source string, result *models.RunResult) ([]byte, error) {
	markdown := s.BuildMarkdown(source, result)

	pdfBytes, err := s.pdfService.ConvertMarkdownToPDF(markdown, "Reconciliation Summary "+result.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to render summary PDF: %w", err)
	}

	s.logger.Info().
		Str("run_id", result.RunID).
		Int("pdf_size", len(pdfBytes)).
		Msg("Run summary generated")

	return pdfBytes, nil
}

// escapeCell keeps a value inside one markdown table cell
func escapeCell(v string) string {
	v = strings.ReplaceAll(v, "|", `\|`)
	return strings.ReplaceAll(v, "\n", " ")
}
