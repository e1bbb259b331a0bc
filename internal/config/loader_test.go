package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	t.Setenv(ConfigFileEnv, "")

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "work", cfg.WorkDir)
		assert.Equal(t, filepath.Join("work", "jobs"), cfg.JobsDir())
		assert.Equal(t, -1, cfg.Jobs.Limit)
		assert.Equal(t, "", cfg.Jobs.Selector)
		assert.Equal(t, "txt", cfg.Jobs.RecordExt)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "CONSOLE", cfg.Logging.Profile)
		assert.Equal(t, 2*time.Second, cfg.Progress.Interval)
		assert.Empty(t, cfg.ConfigFile)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"workdir": "/data/run1",
			"jobs": map[string]any{
				"limit": 50,
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "/data/run1", cfg.WorkDir)
		assert.Equal(t, 50, cfg.Jobs.Limit)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "CONSOLE", cfg.Logging.Profile)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("GRIDJOBS_JOB_LIMIT", "7")
		t.Setenv("GRIDJOBS_LOG_LEVEL", "warn")
		t.Setenv("GRIDJOBS_SELECTOR", "class:READY")
		t.Setenv("GRIDJOBS_PROGRESS_INTERVAL", "500ms")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 7, cfg.Jobs.Limit)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "class:READY", cfg.Jobs.Selector)
		assert.Equal(t, 500*time.Millisecond, cfg.Progress.Interval)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		path := writeConfigFile(t, "gridjobs.yaml", `
workdir: /from/file
jobs:
  limit: 3
  record_ext: rec
logging:
  level: error
`)
		t.Setenv("GRIDJOBS_JOB_LIMIT", "4")

		cfg, err := Load(ctx, map[string]any{
			"config_file": path,
			"logging":     map[string]any{"level": "debug"},
		})
		require.NoError(t, err)

		assert.Equal(t, "/from/file", cfg.WorkDir, "file beats default")
		assert.Equal(t, 4, cfg.Jobs.Limit, "env beats file")
		assert.Equal(t, "debug", cfg.Logging.Level, "runtime beats file")
		assert.Equal(t, "rec", cfg.Jobs.RecordExt)
		assert.Equal(t, path, cfg.ConfigFile)
	})

	t.Run("ConfigFileFromEnv", func(t *testing.T) {
		path := writeConfigFile(t, "gridjobs.json", `{"workdir": "/json/work"}`)
		t.Setenv(ConfigFileEnv, path)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/json/work", cfg.WorkDir)
	})

	t.Run("InvalidValues", func(t *testing.T) {
		tests := []struct {
			name      string
			overrides map[string]any
		}{
			{name: "limit below -1", overrides: map[string]any{"jobs": map[string]any{"limit": -2}}},
			{name: "bad selector", overrides: map[string]any{"jobs": map[string]any{"selector": "class:NOPE"}}},
			{name: "bad level", overrides: map[string]any{"logging": map[string]any{"level": "loud"}}},
			{name: "bad profile", overrides: map[string]any{"logging": map[string]any{"profile": "fancy"}}},
			{name: "empty workdir", overrides: map[string]any{"workdir": " "}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Load(ctx, tt.overrides)
				assert.Error(t, err)
			})
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Load(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGetConfig(t *testing.T) {
	ctx := context.Background()
	t.Setenv(ConfigFileEnv, "")

	cfg, err := Load(ctx, map[string]any{"workdir": "/tmp/getconfig"})
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.WorkDir, retrieved.WorkDir)
}

func TestEnvSpecs(t *testing.T) {
	names := make(map[string]string)
	for _, spec := range getEnvSpecs() {
		names[spec.Name] = spec.Key
	}

	assert.Equal(t, "workdir", names["GRIDJOBS_WORKDIR"])
	assert.Equal(t, "jobs.limit", names["GRIDJOBS_JOB_LIMIT"])
	assert.Equal(t, "jobs.selector", names["GRIDJOBS_SELECTOR"])
	assert.Equal(t, "logging.level", names["GRIDJOBS_LOG_LEVEL"])
	assert.Equal(t, "progress.interval", names["GRIDJOBS_PROGRESS_INTERVAL"])
}

func TestRegistryOptions(t *testing.T) {
	cfg := &Config{WorkDir: "w", Jobs: JobsConfig{Limit: 5, Selector: "class:DONE", RecordExt: "txt"}}
	opts, err := cfg.RegistryOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	cfg.Jobs.Selector = "bogus"
	_, err = cfg.RegistryOptions()
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	t.Run("valid yaml", func(t *testing.T) {
		path := writeConfigFile(t, "ok.yaml", "jobs:\n  limit: 10\n  selector: \"class:ATWMS\"\nprogress:\n  interval: 5s\n")
		settings, err := LoadFile(path)
		require.NoError(t, err)
		jobs, ok := settings["jobs"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 10, jobs["limit"])
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeConfigFile(t, "empty.yaml", "\n")
		settings, err := LoadFile(path)
		require.NoError(t, err)
		assert.Empty(t, settings)
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfigFile(t, "bad.yaml", "jobs:\n  limmit: 10\n")
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidationFailed))
	})

	t.Run("wrong type", func(t *testing.T) {
		path := writeConfigFile(t, "bad.yaml", "jobs:\n  limit: many\n")
		_, err := LoadFile(path)
		require.Error(t, err)
		var verrs ValidationErrors
		assert.True(t, errors.As(err, &verrs))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfigFile(t, "bad.yaml", "jobs: [\n")
		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config file not found")
	})
}
