package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
	"github.com/ternarybob/recon/internal/schema"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGenerator returns canned responses in call order and records every prompt.
type fakeGenerator struct {
	responses []string
	err       error
	prompts   []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.prompts) > len(f.responses) {
		return "", errors.New("unexpected call")
	}
	return f.responses[len(f.prompts)-1], nil
}

func (f *fakeGenerator) Provider() string { return "fake" }
func (f *fakeGenerator) Close() error     { return nil }

func (f *fakeGenerator) callCount() int { return len(f.prompts) }

type memWorkbook map[string]*models.Table

func (w memWorkbook) SheetNames() []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	return names
}

func (w memWorkbook) Sheet(name string) (*models.Table, error) {
	t, ok := w[name]
	if !ok {
		return nil, errors.New("sheet not found: " + name)
	}
	return t, nil
}

type fakeWriter struct {
	sections []interfaces.ReportSection
	err      error
}

func (f *fakeWriter) Write(sections []interfaces.ReportSection) ([]byte, error) {
	f.sections = sections
	if f.err != nil {
		return nil, f.err
	}
	return []byte("xlsx"), nil
}

func (f *fakeWriter) names() []string {
	var out []string
	for _, s := range f.sections {
		out = append(out, s.Name)
	}
	return out
}

func sourceWorkbook() memWorkbook {
	edw := models.NewTable([]string{"Account", "Tran Code", "Date", "Amount"})
	edw.AppendRow([]string{"100200", "TRF", "2024-03-01", "-150.00"})
	edw.AppendRow([]string{"100200", "FEE", "2024-03-02", "-2.50"})

	journal := models.NewTable([]string{"Account", "Tran Code", "Date", "Debit"})
	journal.AppendRow([]string{"100200", "TRF", "2024-03-01", "150.00"})

	return memWorkbook{SheetEDW: edw, SheetJournal: journal}
}

func reconRow(no, ref, status string) string {
	fields := []string{
		no, "Transfer", "Bank EUR", "EDW", "2024-03-01", ref, "-150.00",
		"EUR", "BE01", "2024-03-01", "R1", "2024-03-01", "", "", "", "TRF", status,
	}
	return strings.Join(fields, ",")
}

func reconResponse(rows ...string) string {
	return "```csv\n" + models.ReconciliationSchema.Header() + "\n" + strings.Join(rows, "\n") + "\n```"
}

type harness struct {
	generator    *fakeGenerator
	writer       *fakeWriter
	orchestrator *Orchestrator
}

func newHarness(responses ...string) *harness {
	logger := arbor.NewLogger()
	enforcer := schema.NewEnforcer(logger)
	generator := &fakeGenerator{responses: responses}
	writer := &fakeWriter{}

	o := NewOrchestrator(
		NewCollector(logger),
		NewMatcher(generator, enforcer, logger),
		NewResolver(generator, enforcer, logger),
		NewReporter(writer, logger),
		logger,
	)
	o.newRunID = func() string { return "run_test" }

	return &harness{generator: generator, writer: writer, orchestrator: o}
}

func TestOrchestrator_FullRun(t *testing.T) {
	h := newHarness(
		reconResponse(reconRow("1", "TRF-001", "MATCHED"), reconRow("2", "FEE-002", "UNMATCHED")),
		"Ref 1,Issue,Suggested Resolution\nFEE-002,No journal entry,\"Post fee, then re-run\"",
	)

	result, err := h.orchestrator.Run(context.Background(), sourceWorkbook(), "")
	require.NoError(t, err)

	assert.Equal(t, "run_test", result.RunID)
	assert.Equal(t, []byte("xlsx"), result.Report)
	assert.Equal(t, 2, h.generator.callCount())
	assert.Equal(t, []string{SectionReconciliation, SectionEDW, SectionJournal, SectionSuggestions}, h.writer.names())

	assert.Equal(t, models.RunStats{
		Matched:     1,
		Unmatched:   1,
		Suggestions: 1,
		EDWRows:     2,
		JournalRows: 1,
	}, result.Stats)
	assert.Empty(t, result.Anomalies)

	suggestions := h.writer.sections[3].Table
	assert.Equal(t, "Post fee, then re-run", suggestions.Value(0, "Suggested Resolution"))

	// Only the unmatched row reaches the resolution prompt.
	assert.Contains(t, h.generator.prompts[1], "FEE-002")
	assert.NotContains(t, h.generator.prompts[1], "TRF-001")

	require.NotEmpty(t, result.Logs)
	assert.Equal(t, "[Collector] Reading Excel sheets: EDW and Journal", result.Logs[0])
	assert.Contains(t, result.Logs, "[Matcher] No procedure provided, using default reconciliation rules.")
	assert.Contains(t, result.Logs, "[Resolver] Found 1 unmatched transactions.")
	assert.Equal(t, "[Reporter] Excel file generated successfully.", result.Logs[len(result.Logs)-1])
}

func TestOrchestrator_AllMatchedSkipsResolution(t *testing.T) {
	h := newHarness(reconResponse(reconRow("1", "TRF-001", "MATCHED"), reconRow("2", "FEE-002", " matched ")))

	result, err := h.orchestrator.Run(context.Background(), sourceWorkbook(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, h.generator.callCount())
	assert.Equal(t, []string{SectionReconciliation, SectionEDW, SectionJournal}, h.writer.names())
	assert.Contains(t, result.Logs, "[Resolver] No unmatched transactions found.")
	assert.Zero(t, result.Stats.Suggestions)
}

func TestOrchestrator_ProcedureIsUsedByBothStages(t *testing.T) {
	h := newHarness(
		reconResponse(reconRow("1", "FEE-002", "PARTIAL")),
		"Ref 1,Issue,Suggested Resolution\nFEE-002,Amount short,Check split",
	)
	procedure := "Escalate partial matches to treasury."

	result, err := h.orchestrator.Run(context.Background(), sourceWorkbook(), procedure)
	require.NoError(t, err)

	require.Equal(t, 2, h.generator.callCount())
	for _, prompt := range h.generator.prompts {
		assert.Contains(t, prompt, procedure)
	}
	assert.Contains(t, result.Logs, "[Matcher] Procedure length: 5 words")
	assert.Contains(t, result.Logs, "[Resolver] Using provided procedure for discrepancy resolution.")
	assert.Equal(t, 1, result.Stats.Partial)
}

func TestOrchestrator_UnknownStatusIsKeptAndReported(t *testing.T) {
	h := newHarness(
		reconResponse(reconRow("1", "TRF-001", "MATCHED"), reconRow("2", "FEE-002", "REVIEW")),
		"Ref 1,Issue,Suggested Resolution\nFEE-002,Needs review,Ask operations",
	)

	result, err := h.orchestrator.Run(context.Background(), sourceWorkbook(), "")
	require.NoError(t, err)

	assert.Equal(t, []models.Anomaly{{Row: 1, Column: models.ColumnStatus, Value: "REVIEW"}}, result.Anomalies)
	assert.Equal(t, 1, result.Stats.Other)
	assert.Equal(t, 2, h.generator.callCount(), "unrecognised statuses are treated as unmatched")
	assert.Equal(t, "REVIEW", h.writer.sections[0].Table.Value(1, models.ColumnStatus))
}

func TestOrchestrator_MissingSheetFailsBeforeAnyCall(t *testing.T) {
	h := newHarness()
	source := sourceWorkbook()
	delete(source, SheetJournal)

	result, err := h.orchestrator.Run(context.Background(), source, "")
	require.Error(t, err)
	assert.Nil(t, result)

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, StageCollector, runErr.Stage)
	assert.Equal(t, "run_test", runErr.RunID)
	assert.True(t, errors.Is(err, ErrInput))

	assert.Zero(t, h.generator.callCount())
	assert.Nil(t, h.writer.sections)

	require.Len(t, runErr.Logs, 4)
	assert.Equal(t, "[Collector] Reading Excel sheets: EDW and Journal", runErr.Logs[0])
	assert.Equal(t, "[Collector] Sheets available: EDW", runErr.Logs[2])
	assert.True(t, strings.HasPrefix(runErr.Logs[3], "[Orchestrator] Error: "))
}

func TestOrchestrator_ServiceFailureKeepsTrail(t *testing.T) {
	h := newHarness()
	h.generator.err = errors.New("quota exhausted")

	_, err := h.orchestrator.Run(context.Background(), sourceWorkbook(), "")
	require.Error(t, err)

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, StageMatcher, runErr.Stage)
	assert.True(t, errors.Is(err, ErrService))
	assert.Contains(t, err.Error(), "quota exhausted")

	assert.Contains(t, runErr.Logs, "[Collector] Successfully read both sheets (EDW: 2 rows, Journal: 1 rows).")
	assert.Contains(t, runErr.Logs, "[Matcher] Error in transaction analysis: quota exhausted")
	assert.Equal(t, 1, h.generator.callCount())
	assert.Nil(t, h.writer.sections, "no report after a failed stage")
}

func TestOrchestrator_UnrecoverableResponse(t *testing.T) {
	h := newHarness("INV-1,\"open quote,retry")

	_, err := h.orchestrator.Run(context.Background(), sourceWorkbook(), "")
	require.Error(t, err)

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, StageMatcher, runErr.Stage)
	assert.True(t, errors.Is(err, schema.ErrSchemaRecovery))
}

func TestOrchestrator_ReportWriterFailure(t *testing.T) {
	h := newHarness(reconResponse(reconRow("1", "TRF-001", "MATCHED")))
	h.writer.err = errors.New("disk full")

	_, err := h.orchestrator.Run(context.Background(), sourceWorkbook(), "")
	require.Error(t, err)

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, StageReporter, runErr.Stage)
	assert.Contains(t, runErr.Logs, "[Reporter] Error generating report: disk full")
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orchestrator.Run(ctx, sourceWorkbook(), "")
	require.Error(t, err)

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, StageCollector, runErr.Stage)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, h.generator.callCount())
}

// dropTables simulates a stage that does not forward the source tables.
type dropTables struct{ Stage }

func (d dropTables) Run(ctx context.Context, in Payload, procedure string) (Payload, models.LogTrail, error) {
	out, logs, err := d.Stage.Run(ctx, in, procedure)
	out.EDW, out.Journal = nil, nil
	return out, logs, err
}

func TestOrchestrator_ReattachesSourceTablesForReport(t *testing.T) {
	logger := arbor.NewLogger()
	enforcer := schema.NewEnforcer(logger)
	generator := &fakeGenerator{responses: []string{reconResponse(reconRow("1", "TRF-001", "MATCHED"))}}
	writer := &fakeWriter{}

	o := NewOrchestrator(
		NewCollector(logger),
		dropTables{NewMatcher(generator, enforcer, logger)},
		NewResolver(generator, enforcer, logger),
		NewReporter(writer, logger),
		logger,
	)

	result, err := o.Run(context.Background(), sourceWorkbook(), "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.RunID, "run_"))
	assert.Equal(t, []string{SectionReconciliation, SectionEDW, SectionJournal}, writer.names())
	assert.Equal(t, 2, writer.sections[1].Table.Len())
}

func TestOrchestrator_RunsAreIndependent(t *testing.T) {
	response := reconResponse(reconRow("1", "TRF-001", "MATCHED"))
	h := newHarness(response, response)

	first, err := h.orchestrator.Run(context.Background(), sourceWorkbook(), "")
	require.NoError(t, err)
	second, err := h.orchestrator.Run(context.Background(), sourceWorkbook(), "")
	require.NoError(t, err)

	assert.Equal(t, first.Logs, second.Logs)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestUnmatched(t *testing.T) {
	recon := models.NewTable(models.ReconciliationSchema.Columns)
	for _, status := range []string{"MATCHED", " Matched ", "UNMATCHED", "PARTIAL", "", "REVIEW"} {
		row := make([]string, len(recon.Columns))
		row[0] = status
		row[len(row)-1] = status
		recon.AppendRow(row)
	}

	unmatched := Unmatched(recon)
	require.Equal(t, 4, unmatched.Len())
	assert.Equal(t, recon.Columns, unmatched.Columns)
	assert.Equal(t, "UNMATCHED", unmatched.Value(0, models.ColumnStatus))
	assert.Equal(t, "REVIEW", unmatched.Value(3, models.ColumnStatus))
}

func TestStages_RequireInputs(t *testing.T) {
	logger := arbor.NewLogger()
	enforcer := schema.NewEnforcer(logger)
	generator := &fakeGenerator{}
	ctx := context.Background()

	_, logs, err := NewCollector(logger).Run(ctx, Payload{}, "")
	assert.True(t, errors.Is(err, ErrInput))
	assert.NotEmpty(t, logs)

	_, _, err = NewMatcher(generator, enforcer, logger).Run(ctx, Payload{EDW: models.NewTable([]string{"A"})}, "")
	assert.True(t, errors.Is(err, ErrInput))

	_, _, err = NewResolver(generator, enforcer, logger).Run(ctx, Payload{}, "")
	assert.True(t, errors.Is(err, ErrInput))

	_, _, err = NewReporter(&fakeWriter{}, logger).Run(ctx, Payload{}, "")
	assert.True(t, errors.Is(err, ErrInput))

	assert.Zero(t, generator.callCount())
}

func TestReporter_SkipsEmptyTables(t *testing.T) {
	writer := &fakeWriter{}
	recon := models.NewTable(models.ReconciliationSchema.Columns)
	recon.AppendRow(make([]string, len(recon.Columns)))

	out, logs, err := NewReporter(writer, arbor.NewLogger()).Run(context.Background(), Payload{
		Reconciliation: recon,
		EDW:            models.NewTable([]string{"Account"}),
		Suggestions:    models.NewTable(models.SuggestionSchema.Columns),
	}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{SectionReconciliation}, writer.names())
	assert.Equal(t, []byte("xlsx"), out.Report)
	assert.Equal(t, models.LogTrail{
		"[Reporter] Generating final Excel report.",
		"[Reporter] Added reconciliation results.",
		"[Reporter] Excel file generated successfully.",
	}, logs)
}

func TestConforms_RejectsDriftedTable(t *testing.T) {
	rec := models.NewTrailRecorder(StageResolver, arbor.NewLogger())

	good := &schema.Result{Table: models.NewTable(models.SuggestionSchema.Columns)}
	require.NoError(t, conforms(rec, good, models.SuggestionSchema))

	drifted := &schema.Result{Table: models.NewTable([]string{"Ref 1", "Issue"})}
	err := conforms(rec, drifted, models.SuggestionSchema)
	assert.True(t, errors.Is(err, schema.ErrSchemaRecovery))
	assert.Equal(t, models.LogTrail{"[Resolver] Error parsing response: table does not match the suggestions schema"}, rec.Trail())
}

func TestOrchestrator_RepairsQuotedFieldsNextToLongRow(t *testing.T) {
	h := newHarness(reconResponse(
		reconRow("1", `"TRF-001, part A"`, "MATCHED"),
		reconRow("2", "FEE-002", "MATCHED")+",see note,check again",
	), "Ref 1,Issue,Suggested Resolution\nFEE-002,Status unclear,Review")

	result, err := h.orchestrator.Run(context.Background(), sourceWorkbook(), "")
	require.NoError(t, err)

	recon := h.writer.sections[0].Table
	assert.Equal(t, "TRF-001, part A", recon.Value(0, "Ref 1"))
	assert.Equal(t, "MATCHED,SEE NOTE,CHECK AGAIN", recon.Value(1, models.ColumnStatus))
	assert.Contains(t, result.Logs, "[Matcher] Strict parse failed; rows repaired to 17 columns.")
	assert.Equal(t, 1, result.Stats.Other)
}
