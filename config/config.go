// Package config handles loading and validation of library configuration
// from environment variables and the host application's declared manifest.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/geofix/location-core/logger"
	"github.com/spf13/viper"
)

// Environment represents the running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// CoordinatorConfig holds tuning knobs for the request coordinator.
type CoordinatorConfig struct {
	// DefaultTimeout is applied to one-shot requests that do not carry an
	// explicit deadline. Zero disables the default.
	DefaultTimeout time.Duration `mapstructure:"DEFAULT_TIMEOUT" yaml:"default_timeout"`
	// DispatcherQueueSize bounds the serialized callback queue.
	DispatcherQueueSize int `mapstructure:"DISPATCHER_QUEUE_SIZE" yaml:"dispatcher_queue_size"`
	// ShutdownTimeout caps how long Close waits for in-flight callbacks.
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
}

// Config is the top-level library configuration.
type Config struct {
	Environment  Environment       `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Coordinator  CoordinatorConfig `mapstructure:"COORDINATOR" yaml:"coordinator"`
	ManifestPath string            `mapstructure:"MANIFEST_PATH" yaml:"manifest_path"`
	LogLevel     string            `mapstructure:"LOG_LEVEL" yaml:"log_level"`
}

// LoadConfig reads configuration from defaults, an optional YAML file, and
// LOC_-prefixed environment variables, in increasing precedence.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	v.SetDefault("ENVIRONMENT", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MANIFEST_PATH", "manifest.yaml")
	v.SetDefault("COORDINATOR.DEFAULT_TIMEOUT", "0s")
	v.SetDefault("COORDINATOR.DISPATCHER_QUEUE_SIZE", 256)
	v.SetDefault("COORDINATOR.SHUTDOWN_TIMEOUT", "5s")

	v.SetEnvPrefix("LOC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		log.Infow("Loaded configuration file", "path", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration invariants before any component consumes it.
func (c *Config) Validate() error {
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}
	if c.Coordinator.DispatcherQueueSize <= 0 {
		return fmt.Errorf("dispatcher queue size must be positive, got %d", c.Coordinator.DispatcherQueueSize)
	}
	if c.Coordinator.DefaultTimeout < 0 {
		return fmt.Errorf("default timeout must not be negative, got %s", c.Coordinator.DefaultTimeout)
	}
	if c.Coordinator.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.Coordinator.ShutdownTimeout)
	}
	return nil
}
