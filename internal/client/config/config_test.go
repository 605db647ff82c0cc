package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"testbin"}, args...)
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	want := Config{
		APIBaseURL:     "http://localhost:8000",
		RequestTimeout: 10 * time.Second,
		DatabasePath:   "taskkeeper.db",
		TaskScope:      "device",
		LogLevel:       "info",
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	withArgs(t)

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"api_base_url":    "http://json:1",
		"request_timeout": "20s",
		"database_path":   "json.db",
		"task_scope":      "user",
		"log_level":       "warn",
	})
	t.Setenv("TASKKEEPER_API_URL", "http://env:2")
	t.Setenv("TASKKEEPER_DB_PATH", "env.db")
	withArgs(t, "-c", path, "-a", "http://flag:3")

	cfg := LoadConfig()

	want := &Config{
		APIBaseURL:     "http://flag:3",
		RequestTimeout: 20 * time.Second,
		DatabasePath:   "env.db",
		TaskScope:      "user",
		LogLevel:       "warn",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_InvalidPanics(t *testing.T) {
	withArgs(t, "-s", "galaxy")
	require.Panics(t, func() { LoadConfig() })
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.APIBaseURL = "" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"empty db", func(c *Config) { c.DatabasePath = "" }},
		{"scope", func(c *Config) { c.TaskScope = "team" }},
		{"level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestParseEnv(t *testing.T) {
	t.Setenv("TASKKEEPER_REQUEST_TIMEOUT", "1500ms")
	t.Setenv("TASKKEEPER_DEVICE_SECRET", "s3cret")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, 1500*time.Millisecond, c.RequestTimeout)
	assert.Equal(t, "s3cret", c.DeviceSecret)
	assert.Equal(t, "http://localhost:8000", c.APIBaseURL, "unset variables keep the current value")

	withArgs(t)
	parseFlags(&c)
	assert.Equal(t, 1500*time.Millisecond, c.RequestTimeout, "flags without -t keep the timeout")
}

func TestParseEnv_MalformedPanics(t *testing.T) {
	t.Setenv("TASKKEEPER_REQUEST_TIMEOUT", "soon")

	var c Config
	require.Panics(t, func() { parseEnv(&c) })
}

func TestParseJson_MissingFilePanics(t *testing.T) {
	withArgs(t, "-c", filepath.Join(t.TempDir(), "nope.json"))
	require.Panics(t, func() { parseJson(&Config{}) })
}
