// Package config provides configuration loading for the payment service.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Gateway  GatewayConfig  `yaml:"gateway"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path"`
}

// NATSConfig configures the notification transport.
type NATSConfig struct {
	// URL is the NATS server URL. Empty disables NATS notifications and
	// falls back to log-only dispatch.
	URL string `yaml:"url"`
}

// GatewayConfig configures the simulated card gateway.
type GatewayConfig struct {
	// ApprovalRate is the issuer approval probability in [0, 1].
	ApprovalRate float64 `yaml:"approval_rate"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "./data/gympay.db"},
		NATS:     NATSConfig{URL: ""},
		Gateway:  GatewayConfig{ApprovalRate: 0.9},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Gateway.ApprovalRate < 0 || c.Gateway.ApprovalRate > 1 {
		return fmt.Errorf("gateway.approval_rate must be in [0, 1], got %f", c.Gateway.ApprovalRate)
	}
	return nil
}

// Load reads configuration in precedence order: defaults, then the YAML file
// at path (if path is non-empty), then environment variables. A missing .env
// file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GYMPAY_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("GYMPAY_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("GYMPAY_APPROVAL_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Gateway.ApprovalRate = rate
		}
	}
}
