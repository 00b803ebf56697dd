package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/common"
	"github.com/ternarybob/recon/internal/interfaces"
	"github.com/ternarybob/recon/internal/models"
	"github.com/ternarybob/recon/internal/pipeline"
	"github.com/ternarybob/recon/internal/schema"
	"github.com/ternarybob/recon/internal/services/llm"
	"github.com/ternarybob/recon/internal/services/pdf"
	"github.com/ternarybob/recon/internal/services/spreadsheet"
	"github.com/ternarybob/recon/internal/services/summary"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Stdin supplies the workbook when its path is StdinPath
	Stdin io.Reader

	// Text generation client shared by the Matcher and Resolver
	Generator interfaces.TextGenerationClient

	// Reconciliation pipeline
	Orchestrator *pipeline.Orchestrator

	// Procedure loading and run summaries
	PDFExtractor   interfaces.PDFExtractor
	PDFService     interfaces.PDFService
	SummaryService interfaces.SummaryService
}

// New initializes the application, creating the text-generation client for the
// configured provider. Missing credentials fail here, before any input is read.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	generator, err := llm.NewProviderFactory(cfg, logger).NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize text generation client: %w", err)
	}
	return NewWithGenerator(cfg, logger, generator), nil
}

// NewWithGenerator initializes the application around an existing client
func NewWithGenerator(cfg *common.Config, logger arbor.ILogger, generator interfaces.TextGenerationClient) *App {
	app := &App{
		Config:    cfg,
		Logger:    logger,
		Stdin:     os.Stdin,
		Generator: generator,
	}
	app.initServices()

	logger.Info().
		Str("provider", generator.Provider()).
		Msg("Application initialized")

	return app
}

func (a *App) initServices() {
	enforcer := schema.NewEnforcer(a.Logger)

	a.Orchestrator = pipeline.NewOrchestrator(
		pipeline.NewCollector(a.Logger),
		pipeline.NewMatcher(a.Generator, enforcer, a.Logger),
		pipeline.NewResolver(a.Generator, enforcer, a.Logger),
		pipeline.NewReporter(spreadsheet.NewReportWriter(a.Logger), a.Logger),
		a.Logger,
	)

	pdfService := pdf.NewService(a.Logger)
	a.PDFExtractor = pdf.NewExtractor(a.Logger)
	a.PDFService = pdfService
	a.SummaryService = summary.NewService(pdfService, a.Logger)
}

// LoadProcedure returns the procedure text at path. PDFs are converted to text; any
// other file is read as-is. An unreadable procedure is logged and treated as absent,
// so the run falls back to the default rules.
func (a *App) LoadProcedure(ctx context.Context, path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}

	var (
		text string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = a.loadPDFProcedure(ctx, path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	}
	if err != nil {
		a.Logger.Warn().
			Err(err).
			Str("path", path).
			Msg("Failed to load procedure, continuing with default rules")
		return ""
	}

	a.Logger.Info().
		Str("path", path).
		Int("length", len(text)).
		Msg("Procedure loaded")

	return text
}

func (a *App) loadPDFProcedure(ctx context.Context, path string) (string, error) {
	meta, err := a.PDFExtractor.GetMetadata(ctx, path)
	if err != nil {
		return "", err
	}
	if meta.IsEncrypted {
		return "", fmt.Errorf("procedure %s is encrypted", filepath.Base(path))
	}

	a.Logger.Debug().
		Str("path", path).
		Int("pages", meta.PageCount).
		Int64("size", meta.FileSize).
		Msg("Extracting procedure text")

	return a.PDFExtractor.ExtractText(ctx, path)
}

// Reconcile runs the pipeline over the workbook at path and writes the report, plus
// the summary PDF when one is configured. A pipeline failure is returned as the
// orchestrator's *pipeline.RunError.
func (a *App) Reconcile(ctx context.Context, workbookPath string) (*models.RunResult, error) {
	workbook, err := a.openWorkbook(workbookPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrInput, err)
	}
	defer workbook.Close()

	procedure := a.LoadProcedure(ctx, a.Config.Reconcile.Procedure)

	result, err := a.Orchestrator.Run(ctx, workbook, procedure)
	if err != nil {
		return nil, err
	}

	if err := writeFile(a.Config.Reconcile.Output, result.Report); err != nil {
		return result, fmt.Errorf("failed to write report: %w", err)
	}
	a.Logger.Info().
		Str("path", a.Config.Reconcile.Output).
		Int("size", len(result.Report)).
		Msg("Report written")

	if a.Config.Reconcile.SummaryPDF != "" {
		summaryPDF, err := a.SummaryService.GeneratePDF(filepath.Base(workbookPath), result)
		if err != nil {
			return result, err
		}
		if err := writeFile(a.Config.Reconcile.SummaryPDF, summaryPDF); err != nil {
			return result, fmt.Errorf("failed to write summary: %w", err)
		}
		a.Logger.Info().
			Str("path", a.Config.Reconcile.SummaryPDF).
			Msg("Run summary written")
	}

	return result, nil
}

// StdinPath selects standard input as the workbook source.
const StdinPath = "-"

func (a *App) openWorkbook(path string) (*spreadsheet.Workbook, error) {
	if path == StdinPath {
		return spreadsheet.OpenReader(a.Stdin, "stdin", a.Logger)
	}
	return spreadsheet.Open(path, a.Logger)
}

// Close releases the text-generation client
func (a *App) Close() error {
	if a.Generator == nil {
		return nil
	}
	if err := a.Generator.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close text generation client")
		return err
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
