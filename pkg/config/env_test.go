package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVarsBracedAndSimple(t *testing.T) {
	t.Setenv("REGENDER_TEST_VAR", "hello")

	assert.Equal(t, "hello world", ExpandEnvVars("${REGENDER_TEST_VAR} world"))
	assert.Equal(t, "hello world", ExpandEnvVars("$REGENDER_TEST_VAR world"))
	assert.Equal(t, "no dollar here", ExpandEnvVars("no dollar here"))
}

func TestExpandEnvVarsWithDefault(t *testing.T) {
	os.Unsetenv("REGENDER_TEST_MISSING")
	assert.Equal(t, "fallback", ExpandEnvVars("${REGENDER_TEST_MISSING:-fallback}"))

	t.Setenv("REGENDER_TEST_MISSING", "present")
	assert.Equal(t, "present", ExpandEnvVars("${REGENDER_TEST_MISSING:-fallback}"))
}

func TestLoadEnvFilesSetsProcessEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REGENDER_TEST_FROM_FILE=from-env-file\n"), 0o600))

	chdirTo(t, dir)
	os.Unsetenv("REGENDER_TEST_FROM_FILE")

	require.NoError(t, LoadEnvFiles())
	assert.Equal(t, "from-env-file", os.Getenv("REGENDER_TEST_FROM_FILE"))
}

func TestLoadEnvFilesNeverOverwritesProcessEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REGENDER_TEST_PRECEDENCE=from-file\n"), 0o600))

	chdirTo(t, dir)
	t.Setenv("REGENDER_TEST_PRECEDENCE", "from-process")

	require.NoError(t, LoadEnvFiles())
	assert.Equal(t, "from-process", os.Getenv("REGENDER_TEST_PRECEDENCE"))
}

func TestLoadEnvFilesNoFilesIsNoop(t *testing.T) {
	chdirTo(t, t.TempDir())
	assert.NoError(t, LoadEnvFiles())
}

// chdirTo switches the working directory to dir for the duration of t,
// restoring the original directory on cleanup.
func chdirTo(t *testing.T, dir string) {
	t.Helper()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(original) })
}
