package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultServerAddress           = "0.0.0.0:8080"
	DefaultDatabaseURL             = "file:streamstore.db"
	DefaultSnapshotIntervalSeconds = 3600
	DefaultSnapshotThreshold       = 1000
	DefaultArchiveIntervalSeconds  = 86400
	DefaultArchiveDays             = 90
)

// Config represents the complete event store configuration.
type Config struct {
	ServerAddress           string `yaml:"server_address"`
	DatabaseURL             string `yaml:"database_url"`
	SnapshotIntervalSeconds int    `yaml:"snapshot_interval_seconds"`
	SnapshotThreshold       int64  `yaml:"snapshot_threshold"`
	ArchiveIntervalSeconds  int    `yaml:"archive_interval_seconds"`
	ArchiveDays             int    `yaml:"archive_days"`

	// Optional error-capture side channel. Empty values disable each sink.
	ErrorLogDir     string `yaml:"error_log_dir"`
	ErrorMonitorURL string `yaml:"error_monitor_url"`
}

// Load builds the configuration from an optional YAML file overlaid by
// environment variables. Environment always wins.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if err := loadAndMerge(cfg, path); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServerAddress:           DefaultServerAddress,
		DatabaseURL:             DefaultDatabaseURL,
		SnapshotIntervalSeconds: DefaultSnapshotIntervalSeconds,
		SnapshotThreshold:       DefaultSnapshotThreshold,
		ArchiveIntervalSeconds:  DefaultArchiveIntervalSeconds,
		ArchiveDays:             DefaultArchiveDays,
	}
}

// loadAndMerge loads a YAML file and merges non-zero fields into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	if override.ServerAddress != "" {
		cfg.ServerAddress = override.ServerAddress
	}
	if override.DatabaseURL != "" {
		cfg.DatabaseURL = override.DatabaseURL
	}
	if override.SnapshotIntervalSeconds != 0 {
		cfg.SnapshotIntervalSeconds = override.SnapshotIntervalSeconds
	}
	if override.SnapshotThreshold != 0 {
		cfg.SnapshotThreshold = override.SnapshotThreshold
	}
	if override.ArchiveIntervalSeconds != 0 {
		cfg.ArchiveIntervalSeconds = override.ArchiveIntervalSeconds
	}
	if override.ArchiveDays != 0 {
		cfg.ArchiveDays = override.ArchiveDays
	}
	if override.ErrorLogDir != "" {
		cfg.ErrorLogDir = override.ErrorLogDir
	}
	if override.ErrorMonitorURL != "" {
		cfg.ErrorMonitorURL = override.ErrorMonitorURL
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServerAddress = envString("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.SnapshotIntervalSeconds = envInt("SNAPSHOT_INTERVAL_SECONDS", cfg.SnapshotIntervalSeconds)
	cfg.SnapshotThreshold = envInt64("SNAPSHOT_THRESHOLD", cfg.SnapshotThreshold)
	cfg.ArchiveIntervalSeconds = envInt("ARCHIVE_INTERVAL_SECONDS", cfg.ArchiveIntervalSeconds)
	cfg.ArchiveDays = envInt("ARCHIVE_DAYS", cfg.ArchiveDays)
	cfg.ErrorLogDir = envString("ERROR_LOG_DIR", cfg.ErrorLogDir)
	cfg.ErrorMonitorURL = envString("ERROR_MONITOR_URL", cfg.ErrorMonitorURL)
}

// Validate checks the configuration for values the daemons cannot run with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ServerAddress); err != nil {
		return fmt.Errorf("invalid server_address %q: %w", c.ServerAddress, err)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.SnapshotIntervalSeconds <= 0 {
		return fmt.Errorf("snapshot_interval_seconds must be positive, got %d", c.SnapshotIntervalSeconds)
	}
	if c.SnapshotThreshold <= 0 {
		return fmt.Errorf("snapshot_threshold must be positive, got %d", c.SnapshotThreshold)
	}
	if c.ArchiveIntervalSeconds <= 0 {
		return fmt.Errorf("archive_interval_seconds must be positive, got %d", c.ArchiveIntervalSeconds)
	}
	if c.ArchiveDays <= 0 {
		return fmt.Errorf("archive_days must be positive, got %d", c.ArchiveDays)
	}
	return nil
}

// SnapshotInterval returns the scheduler tick period.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSeconds) * time.Second
}

// ArchiveInterval returns the sweeper tick period.
func (c *Config) ArchiveInterval() time.Duration {
	return time.Duration(c.ArchiveIntervalSeconds) * time.Second
}

// ArchiveCutoff returns the archival age limit.
func (c *Config) ArchiveCutoff() time.Duration {
	return time.Duration(c.ArchiveDays) * 24 * time.Hour
}
