package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Uploads   UploadsConfig   `yaml:"uploads" envconfig:"UPLOADS"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// Model fits are CPU-bound and blocking; requests are allowed to run
	// up to this long before the timeout middleware cuts them off.
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"2m"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/retailsight.log"`
}

// UploadsConfig contains upload storage configuration
type UploadsConfig struct {
	Dir          string `yaml:"dir" envconfig:"DIR" default:"data/uploads"`
	MaxSizeBytes int64  `yaml:"max_size_bytes" envconfig:"MAX_SIZE_BYTES" default:"52428800"`
}

// AnalyticsConfig contains pipeline defaults surfaced as request fallbacks
type AnalyticsConfig struct {
	DefaultClusters       int `yaml:"default_clusters" envconfig:"DEFAULT_CLUSTERS" default:"3"`
	DefaultPeriods        int `yaml:"default_periods" envconfig:"DEFAULT_PERIODS" default:"30"`
	DefaultChurnThreshold int `yaml:"default_churn_threshold" envconfig:"DEFAULT_CHURN_THRESHOLD" default:"60"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("RETAILSIGHT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfigs overlays env-provided values on top of file values.
// Environment wins for any field that differs from its zero value.
func mergeConfigs(file, env Config) Config {
	merged := file

	if env.Server.Port != 0 {
		merged.Server.Port = env.Server.Port
	}
	if env.Server.ReadTimeout != 0 {
		merged.Server.ReadTimeout = env.Server.ReadTimeout
	}
	if env.Server.WriteTimeout != 0 {
		merged.Server.WriteTimeout = env.Server.WriteTimeout
	}
	if env.Server.IdleTimeout != 0 {
		merged.Server.IdleTimeout = env.Server.IdleTimeout
	}
	if env.Server.ShutdownTimeout != 0 {
		merged.Server.ShutdownTimeout = env.Server.ShutdownTimeout
	}
	if env.Server.RequestTimeout != 0 {
		merged.Server.RequestTimeout = env.Server.RequestTimeout
	}
	if env.Logging.Level != "" {
		merged.Logging.Level = env.Logging.Level
	}
	if env.Logging.Format != "" {
		merged.Logging.Format = env.Logging.Format
	}
	if env.Logging.Output != "" {
		merged.Logging.Output = env.Logging.Output
	}
	if env.Logging.FilePath != "" {
		merged.Logging.FilePath = env.Logging.FilePath
	}
	if env.Uploads.Dir != "" {
		merged.Uploads.Dir = env.Uploads.Dir
	}
	if env.Uploads.MaxSizeBytes != 0 {
		merged.Uploads.MaxSizeBytes = env.Uploads.MaxSizeBytes
	}
	if env.Analytics.DefaultClusters != 0 {
		merged.Analytics.DefaultClusters = env.Analytics.DefaultClusters
	}
	if env.Analytics.DefaultPeriods != 0 {
		merged.Analytics.DefaultPeriods = env.Analytics.DefaultPeriods
	}
	if env.Analytics.DefaultChurnThreshold != 0 {
		merged.Analytics.DefaultChurnThreshold = env.Analytics.DefaultChurnThreshold
	}
	merged.RateLimit = env.RateLimit

	return merged
}

// validate checks configuration invariants
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Uploads.MaxSizeBytes <= 0 {
		return fmt.Errorf("uploads max size must be positive, got %d", c.Uploads.MaxSizeBytes)
	}
	if c.Analytics.DefaultClusters < 1 {
		return fmt.Errorf("default clusters must be at least 1, got %d", c.Analytics.DefaultClusters)
	}
	if c.Analytics.DefaultPeriods < 1 {
		return fmt.Errorf("default forecast periods must be at least 1, got %d", c.Analytics.DefaultPeriods)
	}
	if c.Analytics.DefaultChurnThreshold < 1 {
		return fmt.Errorf("default churn threshold must be at least 1 day, got %d", c.Analytics.DefaultChurnThreshold)
	}
	return nil
}

// getConfigFilePath returns the config file location, overridable via env
func getConfigFilePath() string {
	if path := os.Getenv("RETAILSIGHT_CONFIG_FILE"); path != "" {
		return path
	}
	return filepath.Join(".", "config.yaml")
}
