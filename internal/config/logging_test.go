package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vigil/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]config.LogLevel{
		"off":     config.LogLevelOff,
		"none":    config.LogLevelOff,
		"ERROR":   config.LogLevelError,
		" info ":  config.LogLevelInfo,
		"debug":   config.LogLevelDebug,
		"verbose": config.LogLevelError,
	}
	for in, want := range tests {
		assert.Equal(t, want, config.ParseLogLevel(in), in)
	}
	assert.Equal(t, "info", config.LogLevelInfo.String())
}

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := config.NewWriterLogger(config.LogLevelInfo, &buf)

	logger.Debug("hidden %d", 1)
	logger.Info("cycle %s finished", "abc")
	logger.Error("explorer failed: %v", "timeout")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] cycle abc finished")
	assert.Contains(t, out, "[ERROR] explorer failed: timeout")

	logger.SetLevel(config.LogLevelDebug)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "[DEBUG] now visible")
	assert.Equal(t, config.LogLevelDebug, logger.Level())
}

func TestNullLogger(t *testing.T) {
	t.Parallel()

	logger := config.NullLogger()
	logger.Error("dropped")
	require.NoError(t, logger.Close())
}

func TestFileLogger(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "vigil.log")
	logger, err := config.NewLogger(config.LogLevelDebug, path, 16, 2)
	require.NoError(t, err)

	logger.Info("hello rotator")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello rotator")
}

func TestStderrLogger(t *testing.T) {
	t.Parallel()

	logger, err := config.NewLogger(config.LogLevelDebug, config.StderrLogFile, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, config.LogLevelDebug, logger.Level())

	logger.Debug("to stderr")
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close(), "closing twice leaves stderr alone")
	_, err = os.Stat(config.StderrLogFile)
	assert.True(t, os.IsNotExist(err), "no file named after the marker")
}
