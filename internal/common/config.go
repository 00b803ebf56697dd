package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	LLM       LLMConfig       `toml:"llm"`
	Gemini    GeminiConfig    `toml:"gemini"`
	Claude    ClaudeConfig    `toml:"claude"`
	Reconcile ReconcileConfig `toml:"reconcile"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`
	Dir        string   `toml:"dir"`         // Log directory for file output (default: <executable dir>/logs)
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model used for matching and resolution (default: "gemini-2.5-flash")
	Endpoint    string  `toml:"endpoint"`    // Base URL override, empty for the public endpoint
	APIVersion  string  `toml:"api_version"` // API version, e.g. "v1beta"
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between calls (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature" validate:"gte=0,lte=2"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model used for matching and resolution (default: "claude-sonnet-4-5")
	Endpoint    string  `toml:"endpoint"`    // Base URL override, empty for the public endpoint
	APIVersion  string  `toml:"api_version"` // Sent as the anthropic-version header when set
	MaxTokens   int     `toml:"max_tokens" validate:"gt=0"`
	Timeout     string  `toml:"timeout"`    // Per-call timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"` // Minimum spacing between calls (default: "1s")
	Temperature float32 `toml:"temperature" validate:"gte=0,lte=1"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the text-generation provider
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
}

// ReconcileConfig contains run defaults for the reconcile command
type ReconcileConfig struct {
	Procedure  string `toml:"procedure"`                  // Optional procedure file (.pdf or text)
	Output     string `toml:"output" validate:"required"` // Report path (default: Final_Reconciliation_Report.xlsx)
	SummaryPDF string `toml:"summary_pdf"`                // Optional run summary PDF path
}

// DefaultReportName is the report file written when no output is configured.
const DefaultReportName = "Final_Reconciliation_Report.xlsx"

// NewDefaultConfig creates a configuration with default values.
// Temperatures default to 0 so the same prompt yields the same answer where the
// provider allows it.
func NewDefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "5m",
			RateLimit:   "4s",
			Temperature: 0,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-5",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0,
		},
		Reconcile: ReconcileConfig{
			Output: DefaultReportName,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies RECON_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Logging configuration
	if level := os.Getenv("RECON_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("RECON_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if dir := os.Getenv("RECON_LOG_DIR"); dir != "" {
		config.Logging.Dir = dir
	}

	// Provider selection
	if provider := os.Getenv("RECON_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}

	// Gemini configuration
	if model := os.Getenv("RECON_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if endpoint := os.Getenv("RECON_GEMINI_ENDPOINT"); endpoint != "" {
		config.Gemini.Endpoint = endpoint
	}
	if version := os.Getenv("RECON_GEMINI_API_VERSION"); version != "" {
		config.Gemini.APIVersion = version
	}

	// Claude configuration
	if model := os.Getenv("RECON_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if endpoint := os.Getenv("RECON_CLAUDE_ENDPOINT"); endpoint != "" {
		config.Claude.Endpoint = endpoint
	}
	if version := os.Getenv("RECON_CLAUDE_API_VERSION"); version != "" {
		config.Claude.APIVersion = version
	}
	if maxTokens := os.Getenv("RECON_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}

	// Run defaults
	if output := os.Getenv("RECON_OUTPUT"); output != "" {
		config.Reconcile.Output = output
	}
	if procedure := os.Getenv("RECON_PROCEDURE"); procedure != "" {
		config.Reconcile.Procedure = procedure
	}
}

// FlagOverrides holds command-line values that take precedence over every other source.
// Empty fields leave the config unchanged.
type FlagOverrides struct {
	Provider   string
	Model      string
	Procedure  string
	Output     string
	SummaryPDF string
	LogLevel   string
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.Provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(flags.Provider))
	}
	if flags.Model != "" {
		// The model applies to whichever provider is selected after the provider override
		switch config.LLM.DefaultProvider {
		case LLMProviderClaude:
			config.Claude.Model = flags.Model
		default:
			config.Gemini.Model = flags.Model
		}
	}
	if flags.Procedure != "" {
		config.Reconcile.Procedure = flags.Procedure
	}
	if flags.Output != "" {
		config.Reconcile.Output = flags.Output
	}
	if flags.SummaryPDF != "" {
		config.Reconcile.SummaryPDF = flags.SummaryPDF
	}
	if flags.LogLevel != "" {
		config.Logging.Level = flags.LogLevel
	}
}

// Validate checks field constraints and that the selected provider is usable.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var model, timeout, rateLimit string
	switch c.LLM.DefaultProvider {
	case LLMProviderClaude:
		model, timeout, rateLimit = c.Claude.Model, c.Claude.Timeout, c.Claude.RateLimit
	default:
		model, timeout, rateLimit = c.Gemini.Model, c.Gemini.Timeout, c.Gemini.RateLimit
	}

	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("invalid configuration: model is required for provider %s", c.LLM.DefaultProvider)
	}
	if _, err := ParseDuration(timeout, 0); err != nil {
		return fmt.Errorf("invalid configuration: %s timeout: %w", c.LLM.DefaultProvider, err)
	}
	if _, err := ParseDuration(rateLimit, 0); err != nil {
		return fmt.Errorf("invalid configuration: %s rate_limit: %w", c.LLM.DefaultProvider, err)
	}
	return nil
}

// ParseDuration parses a duration string, returning fallback for an empty value.
func ParseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", value)
	}
	return d, nil
}

// ResolveAPIKey resolves an API key by name with environment variable priority
// Resolution order: environment variables → config fallback → error
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"RECON_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"RECON_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}
