package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "data/signals.db", cfg.Database.Path)

	assert.Equal(t, 10.0, cfg.Detection.MaxGapSeconds)
	assert.Equal(t, 5, cfg.Detection.MinPoints)
	assert.Equal(t, 0.05, cfg.Detection.ModerateThreshold)
	assert.Equal(t, 0.15, cfg.Detection.HighThreshold)

	assert.Equal(t, 200, cfg.Model.NumTrees)
	assert.Equal(t, 0.02, cfg.Model.Contamination)
	assert.NotEmpty(t, cfg.Model.Path)

	assert.Equal(t, "data/sop", cfg.KB.Dir)
	assert.True(t, cfg.KB.Watch)

	assert.Equal(t, "none", cfg.LLM.Provider)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Logging.AuditPath)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		modifyFn  func(*Config)
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid default config",
			modifyFn:  func(cfg *Config) {},
			wantError: false,
		},
		{
			name: "invalid port - too low",
			modifyFn: func(cfg *Config) {
				cfg.Server.Port = 0
			},
			wantError: true,
			errorMsg:  "port must be between 1 and 65535",
		},
		{
			name: "negative max gap",
			modifyFn: func(cfg *Config) {
				cfg.Detection.MaxGapSeconds = -1
			},
			wantError: true,
			errorMsg:  "max_gap_seconds must be >= 0",
		},
		{
			name: "zero min points",
			modifyFn: func(cfg *Config) {
				cfg.Detection.MinPoints = 0
			},
			wantError: true,
			errorMsg:  "min_points must be >= 1",
		},
		{
			name: "inverted severity thresholds",
			modifyFn: func(cfg *Config) {
				cfg.Detection.ModerateThreshold = 0.2
				cfg.Detection.HighThreshold = 0.1
			},
			wantError: true,
			errorMsg:  "severity thresholds",
		},
		{
			name: "missing database path",
			modifyFn: func(cfg *Config) {
				cfg.Database.Path = ""
			},
			wantError: true,
			errorMsg:  "database path is required",
		},
		{
			name: "openai provider without key",
			modifyFn: func(cfg *Config) {
				cfg.LLM.Provider = "openai"
			},
			wantError: true,
			errorMsg:  "API key is required",
		},
		{
			name: "custom provider without base url",
			modifyFn: func(cfg *Config) {
				cfg.LLM.Provider = "custom"
			},
			wantError: true,
			errorMsg:  "base_url is required",
		},
		{
			name: "invalid provider",
			modifyFn: func(cfg *Config) {
				cfg.LLM.Provider = "oracle"
			},
			wantError: true,
			errorMsg:  "invalid provider",
		},
		{
			name: "invalid contamination",
			modifyFn: func(cfg *Config) {
				cfg.Model.Contamination = 0.9
			},
			wantError: true,
			errorMsg:  "contamination must be in",
		},
		{
			name: "invalid log level",
			modifyFn: func(cfg *Config) {
				cfg.Logging.Level = "verbose"
			},
			wantError: true,
			errorMsg:  "invalid level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(cfg)

			errs := cfg.Validate()
			if tt.wantError {
				require.NotEmpty(t, errs)
				found := false
				for _, err := range errs {
					if strings.Contains(err.Error(), tt.errorMsg) {
						found = true
						break
					}
				}
				assert.True(t, found, "expected an error containing %q, got %v", tt.errorMsg, errs)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestManagerLoadDefaults(t *testing.T) {
	m, err := NewManagerWithDefaults()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Load(ctx))
	require.NoError(t, m.Validate(ctx))

	cfg := m.Get(ctx)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "none", cfg.LLM.Provider)
}

func TestManagerLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9191
detection:
  max_gap_seconds: 30
  min_points: 3
llm:
  provider: custom
  model: local-model
  base_url: http://localhost:8000/v1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := NewManager(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Load(ctx))
	require.NoError(t, m.Validate(ctx))

	cfg := m.Get(ctx)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 30.0, cfg.Detection.MaxGapSeconds)
	assert.Equal(t, 3, cfg.Detection.MinPoints)
	assert.Equal(t, "custom", cfg.LLM.Provider)
	// Unset keys keep their defaults.
	assert.Equal(t, "data/signals.db", cfg.Database.Path)
	assert.Equal(t, 0.05, cfg.Detection.ModerateThreshold)
}

func TestManagerEnvOverrides(t *testing.T) {
	t.Setenv("GRIDSIGHT_SERVER_PORT", "7070")
	t.Setenv("GRIDSIGHT_LLM_API_KEY", "env-key")

	m, err := NewManagerWithDefaults()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Load(ctx))

	cfg := m.Get(ctx)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
}

func TestManagerMissingFileFallsBack(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Load(ctx))
	assert.Equal(t, 8080, m.Get(ctx).Server.Port)
}
