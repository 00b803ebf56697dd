package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/common"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, name := range []string{"RECON_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "RECON_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(name, "")
	}
}

func TestDetectProvider(t *testing.T) {
	cfg := common.NewDefaultConfig()
	factory := NewProviderFactory(cfg, arbor.NewLogger())

	tests := []struct {
		model string
		want  ProviderType
	}{
		{"claude-sonnet-4-5", ProviderClaude},
		{"anthropic/claude-haiku", ProviderClaude},
		{"Claude/claude-opus", ProviderClaude},
		{"gemini-2.5-flash", ProviderGemini},
		{"google/gemini-2.5-pro", ProviderGemini},
		{"", ProviderGemini},
		{"custom-model", ProviderGemini},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, factory.DetectProvider(tt.model))
		})
	}

	cfg.LLM.DefaultProvider = common.LLMProviderClaude
	assert.Equal(t, ProviderClaude, factory.DetectProvider("custom-model"))
}

func TestNormalizeModel(t *testing.T) {
	assert.Equal(t, "claude-sonnet-4-5", NormalizeModel("anthropic/claude-sonnet-4-5"))
	assert.Equal(t, "gemini-2.5-flash", NormalizeModel("Google/gemini-2.5-flash"))
	assert.Equal(t, "gemini-2.5-flash", NormalizeModel("gemini-2.5-flash"))
}

func TestNewClient_MissingKey(t *testing.T) {
	clearKeys(t)

	cfg := common.NewDefaultConfig()
	factory := NewProviderFactory(cfg, arbor.NewLogger())
	_, err := factory.NewClient(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gemini API key")

	cfg.LLM.DefaultProvider = common.LLMProviderClaude
	_, err = factory.NewClient(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Anthropic API key")
}

func TestNewClient_ModelPrefixSelectsProvider(t *testing.T) {
	clearKeys(t)

	cfg := common.NewDefaultConfig()
	cfg.Gemini.Model = "anthropic/claude-haiku-4-5"
	cfg.Claude.APIKey = "test-key"

	client, err := NewProviderFactory(cfg, arbor.NewLogger()).NewClient(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "claude", client.Provider())

	claude, ok := client.(*ClaudeClient)
	require.True(t, ok)
	assert.Equal(t, "claude-haiku-4-5", claude.model)
}

const claudeReply = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-test",
  "content": [{"type": "text", "text": "Ref 1,Issue,Suggested Resolution\nR1,Late,Wait"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 12}
}`

func newClaudeTestClient(t *testing.T, handler http.HandlerFunc) *ClaudeClient {
	t.Helper()
	clearKeys(t)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := common.NewDefaultConfig().Claude
	cfg.APIKey = "test-key"
	cfg.Endpoint = server.URL
	cfg.RateLimit = ""
	cfg.Timeout = "5s"

	client, err := NewClaudeClient(&cfg, "claude-test", arbor.NewLogger())
	require.NoError(t, err)
	return client
}

func TestClaudeClient_Generate(t *testing.T) {
	var calls int32
	var body string
	client := newClaudeTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, claudeReply)
	})

	text, err := client.Generate(context.Background(), "match these rows")
	require.NoError(t, err)

	assert.Equal(t, "Ref 1,Issue,Suggested Resolution\nR1,Late,Wait", text)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Contains(t, body, "match these rows")
}

func TestClaudeClient_FailureIsNotRetried(t *testing.T) {
	var calls int32
	client := newClaudeTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	})

	_, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claude API")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClaudeClient_EmptyContent(t *testing.T) {
	client := newClaudeTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_02","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`)
	})

	_, err := client.Generate(context.Background(), "prompt")
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestPace_RespectsCancelledContext(t *testing.T) {
	limiter := newLimiter(time.Hour)
	require.NotNil(t, limiter)
	require.True(t, limiter.Allow(), "first token is available immediately")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := pace(ctx, limiter, time.Second)
	assert.Error(t, err)

	assert.Nil(t, newLimiter(0))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota exceeded. Please retry in 45.5s., Status: RESOURCE_EXHAUSTED")
	assert.True(t, IsRateLimitError(err))
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(err))

	wrapped := wrapAPIError(ProviderGemini, err)
	assert.Contains(t, wrapped.Error(), "rate limited (retry suggested in 46s)")
	assert.True(t, errors.Is(wrapped, err))

	plain := errors.New("connection refused")
	assert.False(t, IsRateLimitError(plain))
	assert.Zero(t, ExtractRetryDelay(plain))
	assert.Contains(t, wrapAPIError(ProviderClaude, plain).Error(), "claude API call failed")
}
