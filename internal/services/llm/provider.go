package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/common"
	"github.com/ternarybob/recon/internal/interfaces"
	"golang.org/x/time/rate"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// ProviderFactory builds the text-generation client for the configured provider
type ProviderFactory struct {
	config *common.Config
	logger arbor.ILogger
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(config *common.Config, logger arbor.ILogger) *ProviderFactory {
	return &ProviderFactory{
		config: config,
		logger: logger,
	}
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-sonnet-4-5" -> Claude
// - "anthropic/claude-sonnet-4-5" -> Claude (with prefix)
// - "gemini-2.5-flash" -> Gemini
// - "google/gemini-2.5-flash" -> Gemini (with prefix)
// - Empty or unrecognised -> default provider from config
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "claude/"), strings.HasPrefix(model, "anthropic/"), strings.HasPrefix(model, "claude-"):
		return ProviderClaude
	case strings.HasPrefix(model, "gemini/"), strings.HasPrefix(model, "google/"), strings.HasPrefix(model, "gemini-"):
		return ProviderGemini
	default:
		return ProviderType(f.config.LLM.DefaultProvider)
	}
}

// NormalizeModel removes provider prefix from model name if present
func NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// GetDefaultModel returns the configured model for a provider
func (f *ProviderFactory) GetDefaultModel(provider ProviderType) string {
	switch provider {
	case ProviderClaude:
		return f.config.Claude.Model
	default:
		return f.config.Gemini.Model
	}
}

// NewClient creates the client for the configured default provider. The configured
// model may carry a provider prefix, which then takes precedence over default_provider;
// the requested model is kept either way.
func (f *ProviderFactory) NewClient(ctx context.Context) (interfaces.TextGenerationClient, error) {
	provider := ProviderType(f.config.LLM.DefaultProvider)
	model := f.GetDefaultModel(provider)
	if detected := f.DetectProvider(model); detected != provider {
		f.logger.Warn().
			Str("configured", string(provider)).
			Str("detected", string(detected)).
			Str("model", model).
			Msg("Model name implies a different provider, using detected provider with the requested model")
		provider = detected
	}
	model = NormalizeModel(model)

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Msg("Creating text generation client")

	switch provider {
	case ProviderClaude:
		return NewClaudeClient(&f.config.Claude, model, f.logger)
	case ProviderGemini:
		return NewGeminiClient(ctx, &f.config.Gemini, model, f.logger)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// newLimiter returns a limiter allowing one call per interval, or nil when interval is zero
func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// pace waits for the limiter, if any, and applies the per-call timeout to ctx
func pace(ctx context.Context, limiter *rate.Limiter, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}
	if timeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		return callCtx, cancel, nil
	}
	return ctx, func() {}, nil
}
