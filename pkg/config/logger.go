package config

import (
	"fmt"
	"os"

	"github.com/jsnhff/regender/pkg/logger"
)

// LoggerConfig configures logging behavior.
//
// Priority order (highest to lowest):
//  1. Environment variables (LOG_LEVEL, LOG_FILE, LOG_FORMAT)
//  2. Defaults (info level, simple format, stderr)
type LoggerConfig struct {
	Level  string
	File   string
	Format string
}

// SetDefaults applies default values to LoggerConfig.
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks the logger configuration.
func (c *LoggerConfig) Validate() error {
	if c.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
		if !validLevels[c.Level] {
			return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
		}
	}
	return nil
}

// FromEnvLogger builds a LoggerConfig from LOG_LEVEL / LOG_FILE / LOG_FORMAT.
func FromEnvLogger(getenv func(string) string) *LoggerConfig {
	c := &LoggerConfig{
		Level:  getenv("LOG_LEVEL"),
		File:   getenv("LOG_FILE"),
		Format: getenv("LOG_FORMAT"),
	}
	c.SetDefaults()
	return c
}

// Apply initializes the package-level logger (pkg/logger.Init) from c,
// opening c.File for append if set, falling back to stderr otherwise. The
// returned close func must be called once logging is no longer needed if
// a file was opened; it is a no-op for stderr.
func (c *LoggerConfig) Apply() (close func(), err error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("config: parse log level: %w", err)
	}

	output := os.Stderr
	close = func() {}
	if c.File != "" {
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("config: open log file %q: %w", c.File, err)
		}
		output = f
		close = func() { _ = f.Close() }
	}

	logger.Init(level, output, c.Format)
	return close, nil
}
