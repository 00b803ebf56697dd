package pipeline

import (
	"errors"
	"fmt"

	"github.com/ternarybob/recon/internal/models"
)

var (
	// ErrInput marks a missing or unreadable input: a workbook section, or a table a
	// stage needs from an earlier stage.
	ErrInput = errors.New("invalid input")

	// ErrService marks a failed call to the text-generation service.
	ErrService = errors.New("text generation failed")
)

// RunError is the single terminal failure of a run. Logs holds the trail accumulated
// up to and including the failing stage, followed by the orchestrator's error line.
type RunError struct {
	RunID string
	Stage string
	Logs  models.LogTrail
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed in %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
