package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/common"
	"github.com/ternarybob/recon/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiClient implements TextGenerationClient using the Google Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.TextGenerationClient = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini client. The API key is resolved from the
// environment first, then config.
func NewGeminiClient(ctx context.Context, config *common.GeminiConfig, model string, logger arbor.ILogger) (*GeminiClient, error) {
	apiKey, err := common.ResolveAPIKey("gemini_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}
	if model == "" {
		model = config.Model
	}

	timeout, err := common.ParseDuration(config.Timeout, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid Gemini timeout: %w", err)
	}
	interval, err := common.ParseDuration(config.RateLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid Gemini rate limit: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    config.Endpoint,
			APIVersion: config.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Info().
		Str("model", model).
		Str("timeout", timeout.String()).
		Str("rate_limit", interval.String()).
		Msg("Gemini client initialized")

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: config.Temperature,
		timeout:     timeout,
		limiter:     newLimiter(interval),
		logger:      logger,
	}, nil
}

// Generate sends prompt as a single user turn and returns the response text.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel, err := pace(ctx, c.limiter, c.timeout)
	if err != nil {
		return "", err
	}
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(callCtx, c.model, contents, config)
	if err != nil {
		return "", wrapAPIError(ProviderGemini, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("prompt_chars", len(prompt)).
		Int("response_chars", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Gemini response received")

	return text, nil
}

// Provider returns "gemini"
func (c *GeminiClient) Provider() string {
	return string(ProviderGemini)
}

// Close releases the client reference
func (c *GeminiClient) Close() error {
	c.client = nil
	return nil
}
