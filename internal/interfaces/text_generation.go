package interfaces

import (
	"context"
)

// TextGenerationClient sends one prompt to an external text-generation service and
// returns the raw response text.
//
// Each Generate call is a single blocking request; implementations do not retry.
// Timeouts, authentication failures and empty responses are returned as errors.
type TextGenerationClient interface {
	// Generate returns the service's text for prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Provider names the backing service (e.g. "gemini", "claude").
	Provider() string

	// Close releases resources held by the client.
	Close() error
}
