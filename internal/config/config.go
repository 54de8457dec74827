package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for assetforge
type Config struct {
	// Server configuration
	HTTPPort int    `env:"ASSETFORGE_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"ASSETFORGE_GRPC_PORT" envDefault:"9090"`
	Serve    bool   `env:"ASSETFORGE_SERVE" envDefault:"false"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Pipeline configuration
	Pipeline PipelineConfig

	// Asset locations
	Assets AssetsConfig

	// Redis configuration
	Redis RedisConfig

	// Publish configuration
	Publish PublishConfig

	ShutdownTimeout time.Duration `env:"ASSETFORGE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// PipelineConfig holds step scheduling configuration
type PipelineConfig struct {
	Workers             int           `env:"PIPELINE_WORKERS" envDefault:"1"`
	RetryDelay          time.Duration `env:"PIPELINE_RETRY_DELAY" envDefault:"0s"`
	DefaultMaxRetries   int           `env:"PIPELINE_DEFAULT_MAX_RETRIES" envDefault:"2"`
	RunTimeout          time.Duration `env:"PIPELINE_RUN_TIMEOUT" envDefault:"1h"`
	HealthCheckInterval time.Duration `env:"PIPELINE_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
	PolicyFile          string        `env:"PIPELINE_POLICY_FILE"`
}

// AssetsConfig holds input and output locations for the asset steps
type AssetsConfig struct {
	Bundle       string `env:"ASSETS_BUNDLE" envDefault:"export.zip"`
	WorkDir      string `env:"ASSETS_WORK_DIR" envDefault:"work"`
	OutputDir    string `env:"ASSETS_OUTPUT_DIR" envDefault:"dist"`
	OverrideDir  string `env:"ASSETS_OVERRIDE_DIR"`
	IconSize     int    `env:"ASSETS_ICON_SIZE" envDefault:"64"`
	AtlasColumns int    `env:"ASSETS_ATLAS_COLUMNS" envDefault:"16"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	StateTTL time.Duration `env:"REDIS_STATE_TTL" envDefault:"24h"`
}

// PublishConfig holds object storage settings for the publish step
type PublishConfig struct {
	Enabled   bool   `env:"PUBLISH_ENABLED" envDefault:"false"`
	Endpoint  string `env:"PUBLISH_ENDPOINT"`
	AccessKey string `env:"PUBLISH_ACCESS_KEY"`
	SecretKey string `env:"PUBLISH_SECRET_KEY"`
	Bucket    string `env:"PUBLISH_BUCKET"`
	Prefix    string `env:"PUBLISH_PREFIX"`
	UseSSL    bool   `env:"PUBLISH_USE_SSL" envDefault:"true"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1")
	}
	if c.Pipeline.RetryDelay < 0 {
		return fmt.Errorf("pipeline retry delay must not be negative")
	}
	if c.Pipeline.DefaultMaxRetries < 0 {
		return fmt.Errorf("pipeline default max retries must not be negative")
	}
	if c.Pipeline.RunTimeout <= 0 {
		return fmt.Errorf("pipeline run timeout must be positive")
	}

	if c.Assets.Bundle == "" {
		return fmt.Errorf("assets bundle path is required")
	}
	if c.Assets.WorkDir == "" || c.Assets.OutputDir == "" {
		return fmt.Errorf("assets work and output directories are required")
	}
	if c.Assets.IconSize < 1 {
		return fmt.Errorf("invalid icon size: %d", c.Assets.IconSize)
	}
	if c.Assets.AtlasColumns < 1 {
		return fmt.Errorf("invalid atlas columns: %d", c.Assets.AtlasColumns)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	if c.Publish.Enabled {
		if c.Publish.Endpoint == "" {
			return fmt.Errorf("publish endpoint is required when publishing is enabled")
		}
		if c.Publish.Bucket == "" {
			return fmt.Errorf("publish bucket is required when publishing is enabled")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
