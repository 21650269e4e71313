package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for pipeline tuning knobs.
const (
	// DefaultFanOut is the maximum number of concurrent LLM classification
	// requests within a single run.
	DefaultFanOut = 5

	// DefaultRequestTimeout bounds every individual network call (token
	// refresh, mail fetch, mail send, LLM request). Distinct from retry
	// backoff, which happens between calls.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxThreads caps how many threads a single run will process.
	DefaultMaxThreads = 50

	// DefaultQuery selects the threads a run looks at.
	DefaultQuery = "is:unread in:inbox"

	// DefaultModel is the Claude model used for classification and drafting.
	DefaultModel = "claude-sonnet-4-5"

	// DefaultPromptBudget is the approximate token budget for the thread
	// excerpt embedded in a classification prompt.
	DefaultPromptBudget = 4000
)

// Config holds the runtime configuration for the triage pipeline.
type Config struct {
	// GoogleClientID and GoogleClientSecret identify the OAuth client used
	// for Gmail access. Without them, only cached tokens can be used and
	// refresh will fail once they expire.
	GoogleClientID     string
	GoogleClientSecret string

	// AnthropicAPIKey authenticates against the Claude API.
	AnthropicAPIKey string

	// Model is the Claude model name.
	Model string

	// FanOut is the concurrent LLM request limit per run.
	FanOut int

	// RequestTimeout bounds each individual network call.
	RequestTimeout time.Duration

	// MaxThreads caps the number of threads fetched per run.
	MaxThreads int

	// Query is the default Gmail search query for a run.
	Query string

	// PromptBudget is the token budget for prompt construction.
	PromptBudget int
}

// FromEnv returns a Config populated from environment variables, falling
// back to defaults for anything unset.
func FromEnv() Config {
	return Config{
		GoogleClientID:     getEnvOrDefault("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnvOrDefault("GOOGLE_CLIENT_SECRET", ""),
		AnthropicAPIKey:    getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		Model:              getEnvOrDefault("MAILPILOT_MODEL", DefaultModel),
		FanOut:             getEnvIntOrDefault("MAILPILOT_FAN_OUT", DefaultFanOut),
		RequestTimeout:     getEnvDurationOrDefault("MAILPILOT_REQUEST_TIMEOUT", DefaultRequestTimeout),
		MaxThreads:         getEnvIntOrDefault("MAILPILOT_MAX_THREADS", DefaultMaxThreads),
		Query:              getEnvOrDefault("MAILPILOT_QUERY", DefaultQuery),
		PromptBudget:       getEnvIntOrDefault("MAILPILOT_PROMPT_BUDGET", DefaultPromptBudget),
	}
}

// Validate checks that the configuration is usable for a pipeline run.
func (c *Config) Validate() error {
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("anthropic API key is required; set ANTHROPIC_API_KEY")
	}
	if c.FanOut < 1 {
		return fmt.Errorf("fan-out must be at least 1, got %d", c.FanOut)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxThreads < 1 {
		return fmt.Errorf("max threads must be at least 1, got %d", c.MaxThreads)
	}
	if c.PromptBudget < 100 {
		return fmt.Errorf("prompt budget must be at least 100 tokens, got %d", c.PromptBudget)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable as an int or a default.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the environment variable parsed as a
// time.Duration ("30s", "2m") or a default.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
