// Package config provides configuration management for the crawler. It loads
// values from a YAML file and environment variables via Viper and validates
// them before any component starts.
package config

import (
	"time"

	"github.com/TheBoringRats/ratcrowler/internal/logger"
)

// Crawler defaults. Politeness floors are validated, not silently raised, so
// a misconfigured deployment fails loudly instead of hammering hosts.
const (
	DefaultBatchSize          = 50
	DefaultMaxConcurrency     = 5
	MaxAllowedConcurrency     = 20
	DefaultPerHostConcurrency = 2
	DefaultHostDelay          = 1500 * time.Millisecond
	DefaultRequestTimeout     = 30 * time.Second
	DefaultURLTimeout         = 90 * time.Second
	DefaultRetryAttempts      = 3
	DefaultRecrawlWindowDays  = 7
	DefaultUserAgent          = "ratcrowler/1.0 (+https://github.com/TheBoringRats/ratcrowler)"
)

// Server and progress defaults.
const (
	DefaultAPIAddress   = ":8080"
	DefaultProgressPath = "crawler_progress.json"
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 15 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
)

// Analyzer defaults.
const (
	DefaultAnalyzerSchedule = "@every 6h"
)

const bytesPerGiB = 1 << 30

// Config represents the application configuration.
type Config struct {
	Crawler   CrawlerConfig    `mapstructure:"crawler"`
	Databases []DatabaseConfig `mapstructure:"databases"`
	Server    ServerConfig     `mapstructure:"server"`
	Logger    logger.Config    `mapstructure:"logger"`
	Progress  ProgressConfig   `mapstructure:"progress"`
	Analyzer  AnalyzerConfig   `mapstructure:"analyzer"`
}

// CrawlerConfig holds fetcher and scheduler settings.
type CrawlerConfig struct {
	BatchSize          int           `mapstructure:"batch_size"`
	MaxConcurrency     int           `mapstructure:"max_concurrency"`
	PerHostConcurrency int           `mapstructure:"per_host_concurrency"`
	HostDelay          time.Duration `mapstructure:"host_delay"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	URLTimeout         time.Duration `mapstructure:"url_timeout"`
	RetryAttempts      int           `mapstructure:"retry_attempts"`
	RecrawlWindowDays  int           `mapstructure:"recrawl_window_days"`
	UserAgent          string        `mapstructure:"user_agent"`
	RespectRobots      bool          `mapstructure:"respect_robots"`
	SeedURLs           []string      `mapstructure:"seed_urls"`
}

// DatabaseConfig describes one rotation target.
type DatabaseConfig struct {
	Name              string `mapstructure:"name"`
	DSN               string `mapstructure:"dsn"`
	MonthlyWriteLimit int64  `mapstructure:"monthly_write_limit"`
	StorageQuotaGB    int64  `mapstructure:"storage_quota_gb"`
}

// StorageQuotaBytes returns the storage quota in bytes.
func (d *DatabaseConfig) StorageQuotaBytes() int64 {
	return d.StorageQuotaGB * bytesPerGiB
}

// ServerConfig holds the monitoring API settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ProgressConfig holds durable progress settings.
type ProgressConfig struct {
	Path string `mapstructure:"path"`
}

// AnalyzerConfig holds link-analysis settings.
type AnalyzerConfig struct {
	Schedule string `mapstructure:"schedule"`
	Enabled  bool   `mapstructure:"enabled"`
}

// Validate checks the configuration for values no component can run with.
func (c *Config) Validate() error {
	if c.Crawler.BatchSize <= 0 {
		return NewConfigError("crawler.batch_size", "must be positive")
	}

	if c.Crawler.MaxConcurrency <= 0 {
		return NewConfigError("crawler.max_concurrency", "must be positive")
	}

	if c.Crawler.MaxConcurrency > MaxAllowedConcurrency {
		return NewConfigError("crawler.max_concurrency", "must not exceed 20")
	}

	if c.Crawler.PerHostConcurrency <= 0 {
		return NewConfigError("crawler.per_host_concurrency", "must be positive")
	}

	if c.Crawler.PerHostConcurrency > c.Crawler.MaxConcurrency {
		return NewConfigError("crawler.per_host_concurrency", "must not exceed crawler.max_concurrency")
	}

	if c.Crawler.HostDelay < 0 {
		return NewConfigError("crawler.host_delay", "must not be negative")
	}

	if c.Crawler.RequestTimeout <= 0 {
		return NewConfigError("crawler.request_timeout", "must be positive")
	}

	if c.Crawler.URLTimeout < c.Crawler.RequestTimeout {
		return NewConfigError("crawler.url_timeout", "must be at least crawler.request_timeout")
	}

	if c.Crawler.RetryAttempts < 0 {
		return NewConfigError("crawler.retry_attempts", "must not be negative")
	}

	if c.Crawler.RecrawlWindowDays <= 0 {
		return NewConfigError("crawler.recrawl_window_days", "must be positive")
	}

	if c.Crawler.UserAgent == "" {
		return NewConfigError("crawler.user_agent", "must not be empty")
	}

	if len(c.Databases) == 0 {
		return NewConfigError("databases", "at least one database target is required")
	}

	seen := make(map[string]struct{}, len(c.Databases))

	for i := range c.Databases {
		db := &c.Databases[i]
		if db.Name == "" {
			return NewConfigError("databases.name", "must not be empty")
		}

		if _, dup := seen[db.Name]; dup {
			return NewConfigError("databases.name", "duplicate database name "+db.Name)
		}

		seen[db.Name] = struct{}{}

		if db.DSN == "" {
			return NewConfigError("databases.dsn", "must not be empty for "+db.Name)
		}

		if db.MonthlyWriteLimit <= 0 {
			return NewConfigError("databases.monthly_write_limit", "must be positive for "+db.Name)
		}

		if db.StorageQuotaGB <= 0 {
			return NewConfigError("databases.storage_quota_gb", "must be positive for "+db.Name)
		}
	}

	if c.Server.Address == "" {
		return NewConfigError("server.address", "must not be empty")
	}

	if c.Progress.Path == "" {
		return NewConfigError("progress.path", "must not be empty")
	}

	return nil
}
