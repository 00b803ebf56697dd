package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/common"
	"github.com/ternarybob/recon/internal/interfaces"
	"golang.org/x/time/rate"
)

// ClaudeClient implements TextGenerationClient using the Anthropic Messages API.
type ClaudeClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.TextGenerationClient = (*ClaudeClient)(nil)

// NewClaudeClient creates a Claude client. The SDK's own retries are disabled;
// each Generate call is exactly one request.
func NewClaudeClient(config *common.ClaudeConfig, model string, logger arbor.ILogger) (*ClaudeClient, error) {
	apiKey, err := common.ResolveAPIKey("anthropic_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Anthropic API key: %w", err)
	}
	if model == "" {
		model = config.Model
	}

	timeout, err := common.ParseDuration(config.Timeout, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid Claude timeout: %w", err)
	}
	interval, err := common.ParseDuration(config.RateLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid Claude rate limit: %w", err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if config.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(config.Endpoint))
	}
	if config.APIVersion != "" {
		opts = append(opts, option.WithHeader("anthropic-version", config.APIVersion))
	}

	logger.Info().
		Str("model", model).
		Int("max_tokens", maxTokens).
		Str("timeout", timeout.String()).
		Msg("Claude client initialized")

	return &ClaudeClient{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: config.Temperature,
		timeout:     timeout,
		limiter:     newLimiter(interval),
		logger:      logger,
	}, nil
}

// Generate sends prompt as a single user message and returns the concatenated text blocks.
func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel, err := pace(ctx, c.limiter, c.timeout)
	if err != nil {
		return "", err
	}
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(float64(c.temperature)),
	}

	start := time.Now()
	resp, err := c.client.Messages.New(callCtx, params)
	if err != nil {
		return "", wrapAPIError(ProviderClaude, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("claude: %w", ErrEmptyResponse)
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("stop_reason", string(resp.StopReason)).
		Int("response_chars", text.Len()).
		Dur("duration", time.Since(start)).
		Msg("Claude response received")

	return text.String(), nil
}

// Provider returns "claude"
func (c *ClaudeClient) Provider() string {
	return string(ProviderClaude)
}

// Close is a no-op; the SDK client holds no resources that need releasing
func (c *ClaudeClient) Close() error {
	return nil
}
