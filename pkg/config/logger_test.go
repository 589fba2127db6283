package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvLoggerDefaults(t *testing.T) {
	getenv := func(string) string { return "" }
	c := FromEnvLogger(getenv)
	assert.Equal(t, "info", c.Level)
	assert.Equal(t, "simple", c.Format)
}

func TestFromEnvLoggerReadsOverrides(t *testing.T) {
	values := map[string]string{"LOG_LEVEL": "debug", "LOG_FORMAT": "verbose", "LOG_FILE": "/tmp/x.log"}
	c := FromEnvLogger(func(k string) string { return values[k] })
	assert.Equal(t, "debug", c.Level)
	assert.Equal(t, "verbose", c.Format)
	assert.Equal(t, "/tmp/x.log", c.File)
}

func TestLoggerConfigApplyRejectsInvalidLevel(t *testing.T) {
	c := &LoggerConfig{Level: "not-a-level"}
	_, err := c.Apply()
	assert.Error(t, err)
}

func TestLoggerConfigApplyWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	c := &LoggerConfig{Level: "info", Format: "simple", File: path}

	closeFn, err := c.Apply()
	require.NoError(t, err)
	defer closeFn()

	slog.Info("hello from test")

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "hello from test")
}
