package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("testdata/sketch.yaml")
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
	assert.Equal(t, KindInt, cfg.Sketch.Kind)
	assert.Equal(t, Dimensions{Width: 4096, Depth: 5, Seed: 42}, cfg.Sketch.Dimensions)
	assert.True(t, cfg.Sketch.HasDimensions())
	assert.Equal(t, "debug", cfg.Sketch.Logs.Level)

	dump := cfg.Sketch.Persistence.Dump
	assert.True(t, dump.IsEnabled)
	assert.True(t, dump.Strict)
	assert.Equal(t, "zstd", dump.Format)
	assert.Equal(t, "ring", dump.RotatePolicy)
	assert.Equal(t, 3, dump.MaxFiles)
	assert.Equal(t, 30*time.Second, dump.Interval)

	assert.Equal(t, ":9090", cfg.Sketch.Server.Addr)
	// untouched sections keep defaults
	assert.Equal(t, 5*time.Second, cfg.Sketch.Server.ReadTimeout)
	assert.Equal(t, uint64(5000), cfg.Sketch.Admission.Window)
	assert.Equal(t, 1<<18, cfg.Sketch.Admission.DoorkeeperBits)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"kind":     "sketch:\n  kind: float\n",
		"epsilon":  "sketch:\n  error_rate:\n    epsilon: 1.5\n    delta: 0.1\n",
		"format":   "sketch:\n  persistence:\n    dump:\n      format: lz4\n",
		"policy":   "sketch:\n  persistence:\n    dump:\n      rotate_policy: daily\n",
		"maxFiles": "sketch:\n  persistence:\n    dump:\n      rotate_policy: ring\n      max_files: 0\n",
		"negative": "sketch:\n  dimensions:\n    width: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadConfig(path)
			assert.True(t, errors.Is(err, InvalidConfigError), "got %v", err)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Sketch.HasDimensions())
}
