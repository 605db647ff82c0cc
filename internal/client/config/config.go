package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the taskkeeper CLI.
//
// Fields:
//   - APIBaseURL: scheme://host[:port] of the REST backend.
//   - RequestTimeout: upper bound for a single API request.
//   - DatabasePath: SQLite file holding the local key-value store.
//   - DeviceSecret: when set, stored values are sealed with a key derived from it.
//   - TaskScope: "device" shares one task list per device, "user" keeps one per account.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	APIBaseURL     string        `env:"TASKKEEPER_API_URL"`
	RequestTimeout time.Duration `env:"TASKKEEPER_REQUEST_TIMEOUT"`
	DatabasePath   string        `env:"TASKKEEPER_DB_PATH"`
	DeviceSecret   string        `env:"TASKKEEPER_DEVICE_SECRET"`
	TaskScope      string        `env:"TASKKEEPER_TASK_SCOPE"`
	LogLevel       string        `env:"TASKKEEPER_LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8000"
	c.RequestTimeout = 10 * time.Second
	c.DatabasePath = "taskkeeper.db"
	c.DeviceSecret = ""
	c.TaskScope = "device"
	c.LogLevel = "info"
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api base url is empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is empty")
	}
	switch c.TaskScope {
	case "device", "user":
	default:
		return fmt.Errorf("unknown task scope %q", c.TaskScope)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones. Invalid input panics.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}
