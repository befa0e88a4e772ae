package common

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Runner   RunnerConfig   `toml:"runner"`
	API      APIConfig      `toml:"api"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// DatabaseConfig selects the store engine. A "sqlite://" URL prefix selects
// the file/mem engine; anything else is treated as a networked relational URL.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// RunnerConfig controls the worker loop and the job state directory
type RunnerConfig struct {
	JobsDir     string  `toml:"jobs_dir"`     // Root of the job state directory
	PollSecs    float64 `toml:"poll_secs"`    // Worker poll interval in seconds
	TimeoutSecs int     `toml:"timeout_secs"` // Per-command wall-clock budget in seconds
	LogDir      string  `toml:"log_dir"`      // Directory for runner.ndjson and worker.ndjson
	StatsCron   string  `toml:"stats_cron"`   // Schedule for the queue stats reporter
}

type APIConfig struct {
	RateLimitPerMin int `toml:"rate_limit_per_min"` // Requests per client host per minute; 0 disables
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Database: DatabaseConfig{
			URL: "",
		},
		Runner: RunnerConfig{
			JobsDir:     "/srv/sandbox-orchestrator/var/jobs",
			PollSecs:    1,
			TimeoutSecs: 30,
			LogDir:      "logs",
			StatsCron:   "@every 1m",
		},
		API: APIConfig{
			RateLimitPerMin: 200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env -> CLI.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Database.URL = url
	}
	if dir := os.Getenv("RUNNER_JOBS_DIR"); dir != "" {
		config.Runner.JobsDir = dir
	}
	if poll := os.Getenv("RUNNER_POLL_SECS"); poll != "" {
		if p, err := strconv.ParseFloat(poll, 64); err == nil {
			config.Runner.PollSecs = p
		}
	}
	if timeout := os.Getenv("RUNNER_TIMEOUT_SECS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.Runner.TimeoutSecs = t
		}
	}
	if dir := os.Getenv("RUNNER_LOG_DIR"); dir != "" {
		config.Runner.LogDir = dir
	}
	if limit := os.Getenv("RATE_LIMIT_PER_MIN"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.API.RateLimitPerMin = l
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if port := os.Getenv("SANDRUN_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SANDRUN_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks required configuration values
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required (DATABASE_URL)")
	}
	return nil
}
