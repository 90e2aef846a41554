package config

import (
	"time"

	"github.com/oversync/syncgate/internal/breaker"
	redisclient "github.com/oversync/syncgate/internal/infra/redis"
	"github.com/oversync/syncgate/internal/infra/storage/postgres"
	"github.com/oversync/syncgate/internal/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Breaker  breaker.Config     `yaml:"breaker"`
	Retry    RetryConfig        `yaml:"retry"`
	Systems  []SystemConfig     `yaml:"systems"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RetryConfig holds the retry subsystem settings.
type RetryConfig struct {
	retry.SchedulerConfig `yaml:",inline"`

	BatchSize       int           `yaml:"batch_size"`
	MaxRetries      int           `yaml:"max_retries"`      // default per-entry ceiling
	ProcessInterval time.Duration `yaml:"process_interval"` // batch trigger interval
}

// SystemConfig holds settings for one external system of record.
type SystemConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}
