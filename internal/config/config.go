package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const (
	defaultTimeout         = 30 * time.Second
	defaultRetryDelay      = time.Second
	defaultPageSize        = 20
	defaultDebounce        = 300 * time.Millisecond
	defaultCacheExpiration = time.Hour
)

type APIConfig struct {
	BaseURL       string  `yaml:"base_url"`
	Timeout       string  `yaml:"timeout"`
	RetryAttempts int     `yaml:"retry_attempts"`
	RetryDelay    string  `yaml:"retry_delay"`
	RateLimit     float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited
}

type PaginationConfig struct {
	PageSize int `yaml:"page_size"`
}

type SearchConfig struct {
	Debounce string `yaml:"debounce"`
}

type StorageConfig struct {
	Driver          string `yaml:"driver"` // "sqlite", "redis" or "memory"
	Path            string `yaml:"path"`
	RedisURL        string `yaml:"redis_url"`
	Namespace       string `yaml:"namespace"`
	CacheExpiration string `yaml:"cache_expiration"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type Config struct {
	API        APIConfig        `yaml:"api"`
	Pagination PaginationConfig `yaml:"pagination"`
	Search     SearchConfig     `yaml:"search"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

func (c *Config) TimeoutDuration() time.Duration {
	return parseDuration(c.API.Timeout, defaultTimeout)
}

func (c *Config) RetryDelayDuration() time.Duration {
	return parseDuration(c.API.RetryDelay, defaultRetryDelay)
}

func (c *Config) DebounceDuration() time.Duration {
	return parseDuration(c.Search.Debounce, defaultDebounce)
}

func (c *Config) CacheExpirationDuration() time.Duration {
	return parseDuration(c.Storage.CacheExpiration, defaultCacheExpiration)
}

// PageSize returns the configured page size, defaulting to 20.
func (c *Config) PageSize() int {
	if c.Pagination.PageSize <= 0 {
		return defaultPageSize
	}
	return c.Pagination.PageSize
}

// StoragePath returns the sqlite file path, defaulting to the XDG cache dir.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return CachePath()
}

// LogPath returns the log file used while the TUI owns the terminal.
func (c *Config) LogPath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(xdg.StateHome, "postview", "postview.log")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "postview", "config.yaml")
}

func CachePath() string {
	return filepath.Join(xdg.CacheHome, "postview", "postview.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Default returns the embedded configuration.
func Default() *Config {
	cfg, err := loadDefaults()
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: the embedded defaults are complete
			_ = writeDefaults(path)
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Decode over the defaults so keys missing from the file keep their default.
	cfg := *defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url: scheme must be http or https, got %q", u.Scheme)
	}
	if cfg.API.RetryAttempts < 0 {
		return fmt.Errorf("api.retry_attempts: must not be negative, got %d", cfg.API.RetryAttempts)
	}
	if cfg.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit: must not be negative, got %v", cfg.API.RateLimit)
	}
	if cfg.Pagination.PageSize < 1 {
		return fmt.Errorf("pagination.page_size: must be at least 1, got %d", cfg.Pagination.PageSize)
	}

	switch cfg.Storage.Driver {
	case "sqlite", "memory":
	case "redis":
		if cfg.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for the redis driver")
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q (valid: sqlite, redis, memory)", cfg.Storage.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"pretty": true, "text": true, "json": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		return fmt.Errorf("logging.format: unknown format %q (valid: pretty, text, json)", cfg.Logging.Format)
	}
	return nil
}
