package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultServerAddress, cfg.ServerAddress)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, 3600, cfg.SnapshotIntervalSeconds)
	assert.Equal(t, int64(1000), cfg.SnapshotThreshold)
	assert.Equal(t, 86400, cfg.ArchiveIntervalSeconds)
	assert.Equal(t, 90, cfg.ArchiveDays)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:9090")
	t.Setenv("SNAPSHOT_THRESHOLD", "2")
	t.Setenv("ARCHIVE_DAYS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.ServerAddress)
	assert.Equal(t, int64(2), cfg.SnapshotThreshold)
	assert.Equal(t, 7, cfg.ArchiveDays)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamstore.yaml")
	content := "server_address: 0.0.0.0:9191\nsnapshot_interval_seconds: 60\nerror_log_dir: /tmp/errors\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9191", cfg.ServerAddress)
	assert.Equal(t, 60, cfg.SnapshotIntervalSeconds)
	assert.Equal(t, "/tmp/errors", cfg.ErrorLogDir)
	// Untouched fields keep defaults.
	assert.Equal(t, int64(1000), cfg.SnapshotThreshold)
}

func TestEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_address: 0.0.0.0:9191\n"), 0o600))
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:8181")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8181", cfg.ServerAddress)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad address", func(c *Config) { c.ServerAddress = "no-port" }},
		{"empty database", func(c *Config) { c.DatabaseURL = "" }},
		{"zero snapshot interval", func(c *Config) { c.SnapshotIntervalSeconds = 0 }},
		{"negative threshold", func(c *Config) { c.SnapshotThreshold = -1 }},
		{"zero archive interval", func(c *Config) { c.ArchiveIntervalSeconds = 0 }},
		{"zero archive days", func(c *Config) { c.ArchiveDays = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := defaults()
	cfg.SnapshotIntervalSeconds = 60
	cfg.ArchiveIntervalSeconds = 120
	cfg.ArchiveDays = 2

	assert.Equal(t, time.Minute, cfg.SnapshotInterval())
	assert.Equal(t, 2*time.Minute, cfg.ArchiveInterval())
	assert.Equal(t, 48*time.Hour, cfg.ArchiveCutoff())
}

func TestEnvParseFallback(t *testing.T) {
	t.Setenv("SNAPSHOT_THRESHOLD", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultSnapshotThreshold), cfg.SnapshotThreshold)
}
