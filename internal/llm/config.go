package llm

import (
	"time"

	"snapline/internal/config"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultEndpoint  = "https://api.anthropic.com"
	DefaultMaxTokens = 4000
	apiVersion       = "2023-06-01"
)

// Config holds everything the Anthropic client needs. The key is passed in
// explicitly; this package never reads the environment.
type Config struct {
	APIKey     string
	Model      string
	Endpoint   string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig returns a Config without an API key.
func DefaultConfig() Config {
	return Config{
		Model:      DefaultModel,
		Endpoint:   DefaultEndpoint,
		MaxTokens:  DefaultMaxTokens,
		Timeout:    60 * time.Second,
		MaxRetries: 1,
	}
}

// FromConfig maps the llm section of snapline.yml onto a client Config.
func FromConfig(c *config.Config) Config {
	cfg := DefaultConfig()
	if c == nil {
		return cfg
	}
	cfg.APIKey = c.LLM.APIKey
	if c.LLM.Model != "" {
		cfg.Model = c.LLM.Model
	}
	if c.LLM.Endpoint != "" {
		cfg.Endpoint = c.LLM.Endpoint
	}
	if c.LLM.MaxTokens > 0 {
		cfg.MaxTokens = c.LLM.MaxTokens
	}
	if c.LLM.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(c.LLM.TimeoutSeconds) * time.Second
	}
	cfg.MaxRetries = c.LLM.MaxRetries
	return cfg
}
