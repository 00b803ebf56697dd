package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
	"github.com/ternarybob/recon/internal/prompts"
	"github.com/ternarybob/recon/internal/schema"
)

// Resolver asks for resolution suggestions for every reconciliation row that is not
// MATCHED. With nothing unmatched it makes no call at all.
type Resolver struct {
	client   interfaces.TextGenerationClient
	enforcer *schema.Enforcer
	logger   arbor.ILogger
}

// NewResolver creates a new resolver stage
func NewResolver(client interfaces.TextGenerationClient, enforcer *schema.Enforcer, logger arbor.ILogger) *Resolver {
	return &Resolver{
		client:   client,
		enforcer: enforcer,
		logger:   logger,
	}
}

func (r *Resolver) Name() string { return StageResolver }

// Run makes zero or one Generate call.
func (r *Resolver) Run(ctx context.Context, in Payload, procedure string) (Payload, models.LogTrail, error) {
	rec := models.NewTrailRecorder(StageResolver, r.logger)

	if in.Reconciliation == nil {
		rec.Add("Error resolving discrepancies: reconciliation table is required")
		return in, rec.Trail(), fmt.Errorf("%w: resolver requires the reconciliation table", ErrInput)
	}

	rec.Add("Filtering unmatched rows.")
	recordProcedure(rec, procedure, "discrepancy resolution", "default resolution guidelines")

	unmatched := Unmatched(in.Reconciliation)
	if unmatched.IsEmpty() {
		rec.Add("No unmatched transactions found.")
		return in, rec.Trail(), nil
	}
	rec.Add("Found %d unmatched transactions.", unmatched.Len())

	prompt, err := prompts.BuildResolutionPrompt(procedure, unmatched)
	if err != nil {
		rec.Add("Error building prompt: %v", err)
		return in, rec.Trail(), fmt.Errorf("%w: %w", ErrInput, err)
	}

	raw, err := r.client.Generate(ctx, prompt)
	if err != nil {
		rec.Add("Error resolving discrepancies: %v", err)
		return in, rec.Trail(), fmt.Errorf("%w: %w", ErrService, err)
	}
	rec.Add("Received resolution suggestions.")

	result, err := r.enforcer.Enforce(raw, models.SuggestionSchema)
	if err != nil {
		rec.Add("Error parsing suggestions: %v", err)
		return in, rec.Trail(), err
	}
	recordEnforcement(rec, result)
	if err := conforms(rec, result, models.SuggestionSchema); err != nil {
		return in, rec.Trail(), err
	}
	rec.Add("Successfully parsed %d suggestions.", result.Table.Len())

	out := in
	out.Suggestions = result.Table
	return out, rec.Trail(), nil
}

// Unmatched returns the rows whose Status, trimmed and compared case-insensitively,
// is anything other than MATCHED. Empty statuses count as unmatched.
func Unmatched(recon *models.Table) *models.Table {
	idx := recon.ColumnIndex(models.ColumnStatus)
	return recon.Filter(func(row []string) bool {
		if idx < 0 || idx >= len(row) {
			return true
		}
		return !strings.EqualFold(strings.TrimSpace(row[idx]), models.StatusMatched)
	})
}
