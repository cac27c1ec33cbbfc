package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"snapline/internal/config"
	"snapline/internal/engine"
	"snapline/internal/llm"
)

// APIKeyEnv is checked first, then the generic AnthropicKeyEnv.
const (
	APIKeyEnv       = "SNAPLINE_ANTHROPIC_API_KEY"
	AnthropicKeyEnv = "ANTHROPIC_API_KEY"
)

// ResolveConfig picks the active configuration. An explicit path must exist;
// otherwise the workspace snapline.yml is used when present and defaults when
// not. The generator API key is always taken from the environment.
func ResolveConfig(workspace, configPath string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.FromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadOptional(workspace)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			cfg = config.Default()
		}
	}
	cfg.LLM.APIKey = APIKeyFromEnv(os.Getenv)
	return cfg, nil
}

// APIKeyFromEnv returns the first non-empty API key variable.
func APIKeyFromEnv(getenv func(string) string) string {
	for _, name := range []string{APIKeyEnv, AnthropicKeyEnv} {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// NewEngine wires the engine with an LLM-backed generator. Without an API key
// the engine still schedules but cannot generate.
func NewEngine(cfg *config.Config, logger *slog.Logger) engine.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	var gen engine.Generator
	client, err := llm.NewClient(llm.FromConfig(cfg), logger)
	if err != nil {
		logger.Debug("snapshot generation disabled", "error", err)
	} else {
		gen = llm.NewSnapshotGenerator(client)
	}
	return engine.New(cfg, gen, logger)
}
