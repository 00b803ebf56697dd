// -----------------------------------------------------------------------
// Orchestrator - runs Collector, Matcher, Resolver and Reporter in order
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/common"
	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
)

// Orchestrator sequences the four stages, accumulates their log trails and stops at
// the first failure. It holds no per-run state, so one orchestrator may serve
// several runs.
type Orchestrator struct {
	collector Stage
	matcher   Stage
	resolver  Stage
	reporter  Stage
	logger    arbor.ILogger
	newRunID  func() string
}

// NewOrchestrator creates an orchestrator over the given stages
func NewOrchestrator(collector, matcher, resolver, reporter Stage, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		collector: collector,
		matcher:   matcher,
		resolver:  resolver,
		reporter:  reporter,
		logger:    logger,
		newRunID:  common.NewRunID,
	}
}

// Run executes one reconciliation over source. On failure the returned error is a
// *RunError carrying the trail up to the failing stage.
func (o *Orchestrator) Run(ctx context.Context, source interfaces.Workbook, procedure string) (*models.RunResult, error) {
	runID := o.newRunID()
	started := time.Now()

	o.logger.Info().
		Str("run_id", runID).
		Bool("procedure", procedure != "").
		Msg("Starting reconciliation run")

	var (
		trail   models.LogTrail
		pair    models.DatasetPair
		payload = Payload{Source: source}
	)

	stages := []Stage{o.collector, o.matcher, o.resolver, o.reporter}
	for i, stage := range stages {
		if i == len(stages)-1 {
			// The report always carries the source tables as read.
			payload.EDW = pair.EDW
			payload.Journal = pair.Journal
		}

		out, logs, err := o.runStage(ctx, runID, stage, payload, procedure)
		trail = trail.Concat(logs)
		if err != nil {
			trail = trail.Concat(models.LogTrail{fmt.Sprintf("[Orchestrator] Error: %v", err)})

			o.logger.Error().
				Err(err).
				Str("run_id", runID).
				Str("stage", stage.Name()).
				Msg("Reconciliation run failed")

			return nil, &RunError{
				RunID: runID,
				Stage: stage.Name(),
				Logs:  trail,
				Err:   err,
			}
		}

		payload = out
		if i == 0 {
			pair = models.DatasetPair{EDW: out.EDW.Clone(), Journal: out.Journal.Clone()}
		}
	}

	result := &models.RunResult{
		RunID:     runID,
		Report:    payload.Report,
		Logs:      trail,
		Stats:     models.ComputeStats(payload.Reconciliation, payload.Suggestions, pair),
		Anomalies: payload.Anomalies,
	}

	o.logger.Info().
		Str("run_id", runID).
		Int("matched", result.Stats.Matched).
		Int("partial", result.Stats.Partial).
		Int("unmatched", result.Stats.Unmatched).
		Int("suggestions", result.Stats.Suggestions).
		Str("duration", time.Since(started).String()).
		Msg("Reconciliation run completed")

	return result, nil
}

func (o *Orchestrator) runStage(ctx context.Context, runID string, stage Stage, in Payload, procedure string) (Payload, models.LogTrail, error) {
	if err := ctx.Err(); err != nil {
		return in, nil, fmt.Errorf("run cancelled before %s: %w", stage.Name(), err)
	}

	o.logger.Debug().
		Str("run_id", runID).
		Str("stage", stage.Name()).
		Msg("Stage started")

	started := time.Now()
	out, logs, err := stage.Run(ctx, in, procedure)

	o.logger.Debug().
		Str("run_id", runID).
		Str("stage", stage.Name()).
		Str("duration", time.Since(started).String()).
		Bool("ok", err == nil).
		Msg("Stage finished")

	return out, logs, err
}
