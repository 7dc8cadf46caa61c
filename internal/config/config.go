package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mkarpin/blobfetch/internal/domain"
)

// Config represents the entire application configuration
type Config struct {
	Remote   RemoteConfig   `mapstructure:"remote"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Session  SessionConfig  `mapstructure:"session"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RemoteConfig identifies the remote blob store
type RemoteConfig struct {
	// BucketURL is a gocloud bucket URL, e.g. s3://my-bucket?region=us-east-1,
	// gs://my-bucket, or file:///srv/objects.
	BucketURL string `mapstructure:"bucket_url"`
	Container string `mapstructure:"container"`
	Prefix    string `mapstructure:"prefix"`
}

// TransferConfig contains download engine defaults
type TransferConfig struct {
	MaxRetryAttempts    int    `mapstructure:"max_retry_attempts"`
	EnableResumption    bool   `mapstructure:"enable_resumption"`
	VerifyChecksum      bool   `mapstructure:"verify_checksum"`
	ConflictMode        string `mapstructure:"conflict_mode"`
	BandwidthLimitBytes int64  `mapstructure:"bandwidth_limit_bytes"`
	CreateDirectories   bool   `mapstructure:"create_directories"`
	ProgressInterval    string `mapstructure:"progress_interval"`
	LocalDir            string `mapstructure:"local_dir"`
}

// SessionConfig contains session bookkeeping settings
type SessionConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("remote.container", "default")
	viper.SetDefault("remote.prefix", "")
	viper.SetDefault("transfer.max_retry_attempts", 3)
	viper.SetDefault("transfer.enable_resumption", true)
	viper.SetDefault("transfer.verify_checksum", true)
	viper.SetDefault("transfer.conflict_mode", "rename")
	viper.SetDefault("transfer.bandwidth_limit_bytes", 0)
	viper.SetDefault("transfer.create_directories", true)
	viper.SetDefault("transfer.progress_interval", "250ms")
	viper.SetDefault("transfer.local_dir", ".")
	viper.SetDefault("session.database_path", "")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.file", "")
	viper.SetDefault("logging.max_size_mb", 50)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age_days", 14)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Remote.BucketURL == "" {
		return fmt.Errorf("remote.bucket_url is required")
	}

	if c.Transfer.MaxRetryAttempts < 0 {
		return fmt.Errorf("transfer.max_retry_attempts must not be negative")
	}
	if c.Transfer.BandwidthLimitBytes < 0 {
		return fmt.Errorf("transfer.bandwidth_limit_bytes must not be negative")
	}
	if _, err := domain.ParseConflictMode(c.Transfer.ConflictMode); err != nil {
		return fmt.Errorf("invalid transfer.conflict_mode: %s", c.Transfer.ConflictMode)
	}
	if _, err := time.ParseDuration(c.Transfer.ProgressInterval); err != nil {
		return fmt.Errorf("invalid transfer.progress_interval: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetProgressInterval returns the progress interval as time.Duration
func (c *TransferConfig) GetProgressInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProgressInterval)
	if d == 0 {
		return 250 * time.Millisecond
	}
	return d
}

// DownloadOptions converts the transfer section into engine options.
func (c *TransferConfig) DownloadOptions() domain.DownloadOptions {
	mode, _ := domain.ParseConflictMode(c.ConflictMode)
	return domain.DownloadOptions{
		MaxRetryAttempts:             c.MaxRetryAttempts,
		EnableResumption:             c.EnableResumption,
		VerifyChecksum:               c.VerifyChecksum,
		ConflictMode:                 mode,
		BandwidthLimitBytesPerSecond: c.BandwidthLimitBytes,
		CreateDirectories:            c.CreateDirectories,
	}
}
