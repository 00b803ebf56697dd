package interfaces

import (
	"github.com/ternarybob/recon/internal/models"
)

// SummaryService produces a human-readable summary of a finished run
type SummaryService interface {
	// BuildMarkdown renders the run statistics, anomalies and log trail as markdown
	BuildMarkdown(source string, result *models.RunResult) string

	// GeneratePDF renders the markdown summary as a PDF document
	GeneratePDF(source string, result *models.RunResult) ([]byte, error)
}
