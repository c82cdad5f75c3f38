package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/InonELGABSI/houseScanner/internal/config"
)

func TestBuildLogger(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		log, err := buildLogger(config.LoggingConfig{}, false)
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("ConfiguredLevel", func(t *testing.T) {
		log, err := buildLogger(config.LoggingConfig{Level: "warn"}, false)
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("VerboseWinsOverLevel", func(t *testing.T) {
		log, err := buildLogger(config.LoggingConfig{Level: "error"}, true)
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("ConsoleFormat", func(t *testing.T) {
		_, err := buildLogger(config.LoggingConfig{Format: "console"}, false)
		require.NoError(t, err)
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := buildLogger(config.LoggingConfig{Level: "shouting"}, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["checklists"])
}
