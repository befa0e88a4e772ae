package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, "/srv/sandbox-orchestrator/var/jobs", config.Runner.JobsDir)
	assert.Equal(t, float64(1), config.Runner.PollSecs)
	assert.Equal(t, 30, config.Runner.TimeoutSecs)
	assert.Equal(t, 200, config.API.RateLimitPerMin)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sandrun.toml")
	content := `
[server]
port = 9090

[database]
url = "sqlite:///tmp/test.db"

[runner]
timeout_secs = 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "sqlite:///tmp/test.db", config.Database.URL)
	assert.Equal(t, 5, config.Runner.TimeoutSecs)
	// Untouched values keep their defaults
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/sandrun.toml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://var/jobs.db")
	t.Setenv("RUNNER_JOBS_DIR", "/tmp/jobs")
	t.Setenv("RUNNER_POLL_SECS", "0.5")
	t.Setenv("RUNNER_TIMEOUT_SECS", "10")
	t.Setenv("RATE_LIMIT_PER_MIN", "0")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "sqlite://var/jobs.db", config.Database.URL)
	assert.Equal(t, "/tmp/jobs", config.Runner.JobsDir)
	assert.Equal(t, 0.5, config.Runner.PollSecs)
	assert.Equal(t, 10, config.Runner.TimeoutSecs)
	assert.Equal(t, 0, config.API.RateLimitPerMin)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 7070, "0.0.0.0")
	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)

	// Zero values leave the config untouched
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	config := NewDefaultConfig()
	assert.Error(t, config.Validate())

	config.Database.URL = "sqlite://"
	assert.NoError(t, config.Validate())
}
