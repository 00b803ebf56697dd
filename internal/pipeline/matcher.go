package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
	"github.com/ternarybob/recon/internal/prompts"
	"github.com/ternarybob/recon/internal/schema"
)

// Matcher asks the text-generation service to pair EDW and Journal transactions and
// recovers the 17-column reconciliation table from its answer.
type Matcher struct {
	client   interfaces.TextGenerationClient
	enforcer *schema.Enforcer
	logger   arbor.ILogger
}

// NewMatcher creates a new matcher stage
func NewMatcher(client interfaces.TextGenerationClient, enforcer *schema.Enforcer, logger arbor.ILogger) *Matcher {
	return &Matcher{
		client:   client,
		enforcer: enforcer,
		logger:   logger,
	}
}

func (m *Matcher) Name() string { return StageMatcher }

// Run makes exactly one Generate call.
func (m *Matcher) Run(ctx context.Context, in Payload, procedure string) (Payload, models.LogTrail, error) {
	rec := models.NewTrailRecorder(StageMatcher, m.logger)

	if in.EDW == nil || in.Journal == nil {
		rec.Add("Error in transaction analysis: EDW and Journal tables are required")
		return in, rec.Trail(), fmt.Errorf("%w: matcher requires EDW and Journal tables", ErrInput)
	}

	recordProcedure(rec, procedure, "transaction analysis", "default reconciliation rules")
	rec.Add("Preparing data for prompt.")

	prompt, err := prompts.BuildMatchPrompt(procedure, in.EDW, in.Journal)
	if err != nil {
		rec.Add("Error building prompt: %v", err)
		return in, rec.Trail(), fmt.Errorf("%w: %w", ErrInput, err)
	}

	raw, err := m.client.Generate(ctx, prompt)
	if err != nil {
		rec.Add("Error in transaction analysis: %v", err)
		return in, rec.Trail(), fmt.Errorf("%w: %w", ErrService, err)
	}
	rec.Add("Received response from text generation service.")

	result, err := m.enforcer.Enforce(raw, models.ReconciliationSchema)
	if err != nil {
		rec.Add("Error parsing response: %v", err)
		return in, rec.Trail(), err
	}
	recordEnforcement(rec, result)
	if err := conforms(rec, result, models.ReconciliationSchema); err != nil {
		return in, rec.Trail(), err
	}

	for _, a := range result.Anomalies {
		rec.Add("Row %d has unrecognised %s %q; kept as returned.", a.Row+1, a.Column, a.Value)
	}
	if len(result.Anomalies) > 0 {
		m.logger.Warn().
			Int("anomalies", len(result.Anomalies)).
			Msg("Reconciliation contains unrecognised status values")
	}

	rec.Add("Successfully parsed response into %d reconciliation rows.", result.Table.Len())

	out := in
	out.Reconciliation = result.Table
	out.Anomalies = result.Anomalies
	return out, rec.Trail(), nil
}

// conforms rejects an enforced table whose columns or row widths drifted from schema.
func conforms(rec *models.TrailRecorder, result *schema.Result, s models.Schema) error {
	if s.Conforms(result.Table) {
		return nil
	}
	rec.Add("Error parsing response: table does not match the %s schema", s.Name)
	return fmt.Errorf("%w: %s: table does not match schema", schema.ErrSchemaRecovery, s.Name)
}

// recordEnforcement notes any header insertion or row repair applied to a response.
func recordEnforcement(rec *models.TrailRecorder, result *schema.Result) {
	if result.HeaderInserted {
		rec.Add("Response had no header row; expected header inserted.")
	}
	if result.Repaired {
		rec.Add("Strict parse failed; rows repaired to %d columns.", len(result.Table.Columns))
	}
}
