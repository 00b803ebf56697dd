// -----------------------------------------------------------------------
// Stage - one transformation step of a reconciliation run
// -----------------------------------------------------------------------

package pipeline

import (
	"context"

	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
	"github.com/ternarybob/recon/internal/prompts"
)

// Stage names, also used as log trail component prefixes.
const (
	StageCollector = "Collector"
	StageMatcher   = "Matcher"
	StageResolver  = "Resolver"
	StageReporter  = "Reporter"
)

// Payload carries the named tables between stages. Each stage returns a new Payload
// built from its input; tables it does not produce are passed through untouched.
type Payload struct {
	Source         interfaces.Workbook
	EDW            *models.Table
	Journal        *models.Table
	Reconciliation *models.Table
	Suggestions    *models.Table
	Anomalies      []models.Anomaly
	Report         []byte
}

// Stage is one step of the pipeline. Run returns the stage's own log trail even
// when it fails.
type Stage interface {
	Name() string
	Run(ctx context.Context, in Payload, procedure string) (Payload, models.LogTrail, error)
}

// recordProcedure logs whether a procedure was supplied for the given task.
func recordProcedure(rec *models.TrailRecorder, procedure, task, fallback string) {
	words, provided := prompts.ProcedureStats(procedure)
	if !provided {
		rec.Add("No procedure provided, using %s.", fallback)
		return
	}
	rec.Add("Using provided procedure for %s.", task)
	rec.Add("Procedure length: %d words", words)
}
