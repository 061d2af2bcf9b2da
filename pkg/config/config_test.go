package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	return configPath
}

func TestLoad_DefaultsAppliedWhenEmpty(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultDatabaseDriver, cfg.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Database.SQLite.Path)
	assert.Equal(t, DefaultProbeInterval, cfg.Connectivity.ProbeInterval)
	assert.Equal(t, DefaultSyncInterval, cfg.Sync.Interval)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, DefaultAPIListen, cfg.API.Listen)
	assert.Equal(t, DefaultRateLimitRPM, cfg.API.RequestsPerMinute)

	require.NoError(t, cfg.Validate())
}

func TestLoad_FileValues(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: debug
database:
  driver: sqlite
  sqlite:
    path: /tmp/mirror.db
connectivity:
  probe_url: https://example.test/status
  probe_interval: 10s
  probe_timeout: 2s
sync:
  interval: 1m
api:
  enabled: true
  listen: 127.0.0.1:9999
  requests_per_minute: 30
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, "/tmp/mirror.db", cfg.Database.SQLite.Path)
	assert.Equal(t, "https://example.test/status", cfg.Connectivity.ProbeURL)
	assert.Equal(t, 10*time.Second, cfg.Connectivity.Interval())
	assert.Equal(t, 2*time.Second, cfg.Connectivity.Timeout())
	assert.Equal(t, time.Minute, cfg.Sync.RefreshInterval())
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.API.Listen)
	assert.Equal(t, 30, cfg.API.RequestsPerMinute)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: info
database:
  sqlite:
    path: ./from-file.db
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, "./from-file.db", cfg.Database.SQLite.Path)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"DOLISYNC_GLOBAL_LOG_LEVEL": "trace",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "trace", cfg.Global.LogLevel)
			},
		},
		{
			name: "nested override - sqlite path",
			envVars: map[string]string{
				"DOLISYNC_DATABASE_SQLITE_PATH": "/tmp/env.db",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/env.db", cfg.Database.SQLite.Path)
			},
		},
		{
			name: "boolean override - api enabled",
			envVars: map[string]string{
				"DOLISYNC_API_ENABLED": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.API.Enabled)
			},
		},
		{
			name: "multiple overrides",
			envVars: map[string]string{
				"DOLISYNC_GLOBAL_LOG_LEVEL":           "warn",
				"DOLISYNC_CONNECTIVITY_PROBE_URL":     "https://probe.test/ping",
				"DOLISYNC_API_REQUESTS_PER_MINUTE":    "10",
				"DOLISYNC_CONNECTIVITY_PROBE_TIMEOUT": "1s",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "warn", cfg.Global.LogLevel)
				assert.Equal(t, "https://probe.test/ping", cfg.Connectivity.ProbeURL)
				assert.Equal(t, 10, cfg.API.RequestsPerMinute)
				assert.Equal(t, time.Second, cfg.Connectivity.Timeout())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		errSubstr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name: "unknown driver",
			mutate: func(cfg *Config) {
				cfg.Database.Driver = "oracle"
			},
			errSubstr: "unsupported database driver",
		},
		{
			name: "sqlite without path",
			mutate: func(cfg *Config) {
				cfg.Database.SQLite.Path = ""
			},
			errSubstr: "database.sqlite.path is required",
		},
		{
			name: "postgres without host",
			mutate: func(cfg *Config) {
				cfg.Database.Driver = "postgres"
				cfg.Database.Postgres.Database = "dolisync"
			},
			errSubstr: "database.postgres.host is required",
		},
		{
			name: "bad probe interval",
			mutate: func(cfg *Config) {
				cfg.Connectivity.ProbeInterval = "soon"
			},
			errSubstr: "invalid connectivity.probe_interval",
		},
		{
			name: "bad sync interval",
			mutate: func(cfg *Config) {
				cfg.Sync.Interval = "often"
			},
			errSubstr: "invalid sync.interval",
		},
		{
			name: "api enabled without listen",
			mutate: func(cfg *Config) {
				cfg.API.Enabled = true
				cfg.API.Listen = ""
			},
			errSubstr: "api.listen is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.errSubstr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
			}
		})
	}
}
