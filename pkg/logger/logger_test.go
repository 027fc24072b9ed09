package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureWritesToFile(t *testing.T) {
	cfg := config.Default()
	cfg.Sketch.Logs.Level = "warn"
	cfg.Sketch.Logs.File = filepath.Join(t.TempDir(), "cmsketch.log")

	closer, err := Configure(cfg)
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	log.Info().Msg("[test] dropped")
	log.Warn().Msg("[test] kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(cfg.Sketch.Logs.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[test] kept")
	assert.NotContains(t, string(data), "[test] dropped")
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Sketch.Logs.Level = "loud"
	_, err := Configure(cfg)
	assert.Error(t, err)
}
