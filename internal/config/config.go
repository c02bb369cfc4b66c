package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/oslerlabs/osler/internal/gateway"
	"github.com/oslerlabs/osler/internal/limiter"
	"github.com/oslerlabs/osler/internal/storage"
)

// APIKeyEnv names the environment variable holding the provider credential.
// The credential is never read from a config file.
const APIKeyEnv = "ANTHROPIC_API_KEY"

// Config is the top-level configuration for the osler proxy.
type Config struct {
	Server  ServerConfig   `json:"server"`
	Limiter limiter.Config `json:"limiter"`
	Gateway GatewayConfig  `json:"gateway"`
	Storage StorageConfig  `json:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// GatewayConfig holds provider call settings. The credential itself comes
// only from the environment.
type GatewayConfig struct {
	Model          string        `json:"model"`
	BaseURL        string        `json:"base_url"`
	AttemptTimeout time.Duration `json:"attempt_timeout"`
}

// StorageConfig selects the rate-limit state backend.
type StorageConfig struct {
	Backend string              `json:"backend"` // "memory" or "redis"
	Redis   storage.RedisConfig `json:"redis"`
}

// Default returns a Config with sensible defaults: five generations per
// client per hour, in-memory state.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Limiter: limiter.Config{
			Rate:   5,
			Window: time.Hour,
		},
		Gateway: GatewayConfig{
			Model:          gateway.DefaultModel,
			AttemptTimeout: 120 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
	}
}

// APIKey reads the provider credential from the environment.
func APIKey() string {
	return os.Getenv(APIKeyEnv)
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if c.Limiter.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %d", c.Limiter.Rate)
	}
	if c.Limiter.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Limiter.Window)
	}
	if c.Gateway.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt_timeout must be positive, got %s", c.Gateway.AttemptTimeout)
	}
	switch c.Storage.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q, must be one of: memory, redis", c.Storage.Backend)
	}
	return nil
}

// LoadFile reads a JSON config file and merges it with defaults.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Use a raw intermediate struct to handle duration parsing.
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if raw.Server.Addr != "" {
		cfg.Server.Addr = raw.Server.Addr
	}
	if raw.Limiter.Rate > 0 {
		cfg.Limiter.Rate = raw.Limiter.Rate
	}
	if raw.Limiter.Window != "" {
		d, err := time.ParseDuration(raw.Limiter.Window)
		if err != nil {
			return cfg, fmt.Errorf("parsing limiter.window: %w", err)
		}
		cfg.Limiter.Window = d
	}
	if raw.Gateway.Model != "" {
		cfg.Gateway.Model = raw.Gateway.Model
	}
	if raw.Gateway.BaseURL != "" {
		cfg.Gateway.BaseURL = raw.Gateway.BaseURL
	}
	if raw.Gateway.AttemptTimeout != "" {
		d, err := time.ParseDuration(raw.Gateway.AttemptTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parsing gateway.attempt_timeout: %w", err)
		}
		cfg.Gateway.AttemptTimeout = d
	}
	if raw.Storage.Backend != "" {
		cfg.Storage.Backend = raw.Storage.Backend
	}
	if raw.Storage.Redis != nil {
		cfg.Storage.Redis = *raw.Storage.Redis
	}

	return cfg, nil
}

// rawConfig is the JSON-friendly representation with string durations.
type rawConfig struct {
	Server struct {
		Addr string `json:"addr"`
	} `json:"server"`
	Limiter struct {
		Rate   int    `json:"rate"`
		Window string `json:"window"`
	} `json:"limiter"`
	Gateway struct {
		Model          string `json:"model"`
		BaseURL        string `json:"base_url"`
		AttemptTimeout string `json:"attempt_timeout"`
	} `json:"gateway"`
	Storage struct {
		Backend string               `json:"backend"`
		Redis   *storage.RedisConfig `json:"redis"`
	} `json:"storage"`
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	example := `{
  "server": {
    "addr": ":8080"
  },
  "limiter": {
    "rate": 5,
    "window": "1h"
  },
  "gateway": {
    "model": "claude-sonnet-4-20250514",
    "attempt_timeout": "2m"
  },
  "storage": {
    "backend": "memory"
  }
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}
