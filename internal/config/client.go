package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheConfig selects the client's query cache backend.
type CacheConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend string `yaml:"backend"`
	Redis   struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
}

// ClientConfig configures portalctl.
type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Email   string        `yaml:"email"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultClientConfig returns the configuration used when no file exists.
func DefaultClientConfig() *ClientConfig {
	cfg := &ClientConfig{
		BaseURL: "http://localhost:8080",
		Timeout: 10 * time.Second,
	}
	cfg.Cache.Backend = "memory"
	cfg.Log.Level = "warn"
	cfg.Log.Format = "text"
	return cfg
}

// DefaultClientConfigPath is ~/.config/portalctl/config.yaml.
func DefaultClientConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "portalctl.yaml"
	}
	return filepath.Join(dir, "portalctl", "config.yaml")
}

// LoadClient reads path (a missing file is fine), then applies PORTAL_*
// environment overrides.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if v := os.Getenv("PORTAL_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("PORTAL_EMAIL"); v != "" {
		cfg.Email = v
	}
	if v := os.Getenv("PORTAL_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("PORTAL_REDIS_ADDR"); v != "" {
		cfg.Cache.Backend = "redis"
		cfg.Cache.Redis.Addr = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if cfg.Email == "" || cfg.Token == "" {
		return errors.New("email and token are required (config file or PORTAL_EMAIL/PORTAL_TOKEN)")
	}
	switch cfg.Cache.Backend {
	case "", "memory":
	case "redis":
		if cfg.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return nil
}

// Save writes cfg to path with 0600 permissions, creating parent directories.
func (cfg *ClientConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
