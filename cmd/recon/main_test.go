package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/recon/internal/common"
	"github.com/ternarybob/recon/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func clearKeys(t *testing.T) {
	t.Helper()
	for _, name := range []string{"RECON_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "RECON_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(name, "")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Recon version "+common.GetVersion())
}

func TestRunCommand_RequiresWorkbook(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestRunCommand_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "run", "-c", filepath.Join(t.TempDir(), "missing.toml"), "book.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestRunCommand_InvalidProvider(t *testing.T) {
	_, err := execute(t, "run", "--provider", "openai", "book.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunCommand_MissingCredentialsFailFast(t *testing.T) {
	clearKeys(t)
	t.Setenv("RECON_LOG_LEVEL", "error")

	_, err := execute(t, "run", "--provider", "claude", filepath.Join(t.TempDir(), "does-not-exist.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Anthropic API key")
}

func TestPrintStats(t *testing.T) {
	var out bytes.Buffer
	printStats(&out, &models.RunResult{
		RunID:     "run_1",
		Stats:     models.RunStats{Matched: 3, Partial: 1, Unmatched: 2, Suggestions: 2},
		Anomalies: []models.Anomaly{{Row: 4, Column: models.ColumnStatus, Value: "REVIEW"}},
	})

	assert.Equal(t, "Run run_1: 6 rows, 3 matched, 1 partial, 2 unmatched, 2 suggestions\n  row 5: unrecognised Status \"REVIEW\"\n", out.String())
}
