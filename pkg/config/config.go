// Package config loads the application configuration from a YAML file with
// environment variable fallbacks for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	// API keys
	OpenAIKey string `yaml:"openai_key"`

	// Model configuration
	Model string `yaml:"model"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// Session store
	Store StoreConfig `yaml:"store"`

	// External services
	FlightAPIBaseURL string `yaml:"flight_api_base_url"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"` // memory, file, redis
	FileDir string      `yaml:"file_dir"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	Prefix     string        `yaml:"prefix"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	PoolSize   int           `yaml:"pool_size"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend: StoreMemory,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		FlightAPIBaseURL: "http://localhost:8080",
	}
}

// Load reads configuration from a YAML file, applies defaults, and fills
// secrets from the environment. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = "localhost:6379"
	}
	if cfg.Store.Redis.PoolSize == 0 {
		cfg.Store.Redis.PoolSize = 10
	}
	if cfg.FlightAPIBaseURL == "" {
		cfg.FlightAPIBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
