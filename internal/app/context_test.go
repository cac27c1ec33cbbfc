package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapline/internal/config"
	"snapline/internal/engine"
	"snapline/internal/llm"
)

func TestResolveConfig_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	t.Setenv(AnthropicKeyEnv, "sk-generic")

	cfg, err := ResolveConfig(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.Equal(t, "sk-generic", cfg.LLM.APIKey)
}

func TestResolveConfig_WorkspaceFile(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-snap")
	t.Setenv(AnthropicKeyEnv, "sk-generic")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapline.yml"), []byte("schedule:\n  blackout_dates: [\"2025-07-04\"]\n"), 0o644))

	cfg, err := ResolveConfig(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-04"}, cfg.Schedule.BlackoutDates)
	assert.Equal(t, "sk-snap", cfg.LLM.APIKey)
}

func TestResolveConfig_ExplicitPathMustExist(t *testing.T) {
	_, err := ResolveConfig(t.TempDir(), filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestAPIKeyFromEnv(t *testing.T) {
	env := map[string]string{AnthropicKeyEnv: "  k2 "}
	assert.Equal(t, "k2", APIKeyFromEnv(func(k string) string { return env[k] }))
	assert.Empty(t, APIKeyFromEnv(func(string) string { return "" }))
}

func TestNewEngine_WithoutKeyCannotGenerate(t *testing.T) {
	cfg := config.Default()
	e := NewEngine(cfg, nil)
	assert.Nil(t, e.Generator)

	_, err := e.GenerateStrategy(context.Background(), llm.SnapshotBrief{WorldName: "Forest", ReleaseDate: "2025-06-13"}, nil)
	assert.True(t, errors.Is(err, engine.ErrGeneratorUnavailable), "got %v", err)
}

func TestNewEngine_WithKeyHasGenerator(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-test"
	e := NewEngine(cfg, nil)
	assert.NotNil(t, e.Generator)
}
