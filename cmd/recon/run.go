package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/recon/internal/app"
	"github.com/ternarybob/recon/internal/common"
	"github.com/ternarybob/recon/internal/models"
	"github.com/ternarybob/recon/internal/pipeline"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var flags common.FlagOverrides

	cmd := &cobra.Command{
		Use:   "run <workbook.xlsx>",
		Short: "Reconcile the EDW and Journal sheets of a workbook",
		Long: `Reconcile the EDW and Journal sheets of a workbook. Pass "-" to read the
workbook from standard input.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, root, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.Procedure, "procedure", "", "Procedure document (.pdf or text) guiding matching and resolution")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "Report path (default: "+common.DefaultReportName+")")
	cmd.Flags().StringVar(&flags.SummaryPDF, "summary-pdf", "", "Also write a PDF run summary to this path")
	cmd.Flags().StringVar(&flags.Provider, "provider", "", "Text generation provider (gemini, claude)")
	cmd.Flags().StringVar(&flags.Model, "model", "", "Model for the selected provider")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	return cmd
}

// runReconcile follows the startup order: config files, env, flags, validation,
// logger, banner. Credentials are checked before the workbook is opened.
func runReconcile(cmd *cobra.Command, root *rootOptions, flags common.FlagOverrides, workbookPath string) error {
	configFiles := root.resolveConfigFiles()

	cfg, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		common.GetLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		return err
	}
	common.ApplyFlagOverrides(cfg, flags)
	if err := cfg.Validate(); err != nil {
		common.GetLogger().Error().Err(err).Msg("Invalid configuration")
		return err
	}

	logger := common.InitLogger(cfg)
	common.PrintBanner(common.GetVersion())

	logger.Debug().
		Strs("config_files", configFiles).
		Str("provider", string(cfg.LLM.DefaultProvider)).
		Str("log_level", cfg.Logging.Level).
		Str("output", cfg.Reconcile.Output).
		Msg("Resolved configuration (sanitized)")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	out := cmd.OutOrStdout()
	application.Stdin = cmd.InOrStdin()
	result, err := application.Reconcile(ctx, workbookPath)
	if err != nil {
		var runErr *pipeline.RunError
		switch {
		case errors.As(err, &runErr):
			printTrail(out, runErr.Logs)
		case result != nil:
			printTrail(out, result.Logs)
		}
		return err
	}

	printTrail(out, result.Logs)
	printStats(out, result)
	fmt.Fprintf(out, "Report written to %s\n", cfg.Reconcile.Output)
	if cfg.Reconcile.SummaryPDF != "" {
		fmt.Fprintf(out, "Summary written to %s\n", cfg.Reconcile.SummaryPDF)
	}
	return nil
}

func printTrail(w io.Writer, trail models.LogTrail) {
	fmt.Fprintln(w, "Log trail:")
	for _, entry := range trail {
		fmt.Fprintf(w, "  %s\n", entry)
	}
	fmt.Fprintln(w)
}

func printStats(w io.Writer, result *models.RunResult) {
	s := result.Stats
	fmt.Fprintf(w, "Run %s: %d rows, %d matched, %d partial, %d unmatched, %d suggestions\n",
		result.RunID, s.Total(), s.Matched, s.Partial, s.Unmatched, s.Suggestions)
	for _, a := range result.Anomalies {
		fmt.Fprintf(w, "  row %d: unrecognised %s %q\n", a.Row+1, a.Column, a.Value)
	}
}
