package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Elias8833/webmonetization/internal/embed"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port    int  `yaml:"port" env:"PORT"`
		Verbose bool `yaml:"verbose" env:"VERBOSE"`
	} `yaml:"server" envPrefix:"SERVER_"`

	Storage struct {
		CleanupInterval string `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
		MaxContentAge   string `yaml:"max_content_age" env:"MAX_CONTENT_AGE"`
	} `yaml:"storage" envPrefix:"STORAGE_"`

	Embed struct {
		ScriptSrc string `yaml:"script_src" env:"SCRIPT_SRC"`
	} `yaml:"embed" envPrefix:"EMBED_"`
}

// ParsedConfig contains parsed time.Duration values for easier use
type ParsedConfig struct {
	Config
	CleanupInterval time.Duration
	MaxContentAge   time.Duration
}

// EnvPrefix is prepended to every environment override, e.g. EXCLUSIVE_CONTENT_SERVER_PORT
const EnvPrefix = "EXCLUSIVE_CONTENT_"

// Default returns the configuration used when no file is present
func Default() Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Storage.CleanupInterval = "5m"
	cfg.Storage.MaxContentAge = "1h"
	cfg.Embed.ScriptSrc = embed.DefaultScriptSrc
	return cfg
}

// LoadConfig loads configuration from a YAML file, then applies environment overrides.
// A missing file is not an error; defaults are used instead.
func LoadConfig(filepath string) (*ParsedConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return Parse(cfg)
}

// Parse validates cfg and converts its duration strings
func Parse(cfg Config) (*ParsedConfig, error) {
	cleanupInterval, err := time.ParseDuration(cfg.Storage.CleanupInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup_interval: %w", err)
	}

	maxContentAge, err := time.ParseDuration(cfg.Storage.MaxContentAge)
	if err != nil {
		return nil, fmt.Errorf("invalid max_content_age: %w", err)
	}

	if err := validateConfig(&cfg, cleanupInterval, maxContentAge); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &ParsedConfig{
		Config:          cfg,
		CleanupInterval: cleanupInterval,
		MaxContentAge:   maxContentAge,
	}, nil
}

// validateConfig validates the configuration values
func validateConfig(cfg *Config, cleanupInterval, maxContentAge time.Duration) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if cleanupInterval <= 0 {
		return fmt.Errorf("storage cleanup_interval must be positive")
	}

	if maxContentAge < 0 {
		return fmt.Errorf("storage max_content_age must be non-negative")
	}

	if cfg.Embed.ScriptSrc == "" {
		return fmt.Errorf("embed script_src is required")
	}

	return nil
}
