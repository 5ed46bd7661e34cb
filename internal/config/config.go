// Package config loads the Lion City service configuration: a YAML (or JSON)
// file, overridden by LIONCITY_* environment variables, overridden by flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/MiKapsDev/Lion-City/internal/catalog"
	"github.com/MiKapsDev/Lion-City/internal/kvstore"
)

// DefaultConfigDir is the directory under the user's home for CLI state.
const DefaultConfigDir = ".lioncity"

// DefaultConfigFile is the config file name within the config directory.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LIONCITY_"

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
}

// LogConfig controls logging output.
type LogConfig struct {
	File      string `yaml:"file,omitempty" json:"file,omitempty"`
	Verbose   bool   `yaml:"verbose" json:"verbose"`
	MaxSizeMB int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
}

// WebhookConfig configures outbound event delivery. An empty URL disables it.
type WebhookConfig struct {
	URL        string        `yaml:"url,omitempty" json:"url,omitempty"`
	Secret     string        `yaml:"secret,omitempty" json:"secret,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	RetryDelay time.Duration `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
	MaxQueue   int           `yaml:"max_queue,omitempty" json:"max_queue,omitempty"`
}

// RateLimitConfig bounds requests per client IP on the API.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" json:"rps"`
	Burst int     `yaml:"burst" json:"burst"`
}

// Config is the full service configuration.
type Config struct {
	Port          int              `yaml:"port" json:"port"`
	Store         StoreConfig      `yaml:"store" json:"store"`
	Log           LogConfig        `yaml:"log" json:"log"`
	BoostDuration time.Duration    `yaml:"boost_duration" json:"boost_duration"`
	Timezone      string           `yaml:"timezone" json:"timezone"`
	Webhook       WebhookConfig    `yaml:"webhook" json:"webhook"`
	RateLimit     RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Catalog       *catalog.Catalog `yaml:"catalog,omitempty" json:"catalog,omitempty"`
}

// envOverrides mirrors the settings that may come from the environment.
type envOverrides struct {
	Port           int           `env:"PORT"`
	StoreDriver    string        `env:"STORE_DRIVER"`
	StorePath      string        `env:"STORE_PATH"`
	LogFile        string        `env:"LOG_FILE"`
	Verbose        bool          `env:"VERBOSE"`
	BoostDuration  time.Duration `env:"BOOST_DURATION"`
	Timezone       string        `env:"TIMEZONE"`
	WebhookURL     string        `env:"WEBHOOK_URL"`
	WebhookSecret  string        `env:"WEBHOOK_SECRET"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:          8080,
		Store:         StoreConfig{Driver: kvstore.DriverMemory},
		BoostDuration: time.Hour,
		Timezone:      "UTC",
		RateLimit:     RateLimitConfig{RPS: 20, Burst: 40},
	}
}

// DefaultPath returns ~/.lioncity/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// LoadFrom reads the config at path on top of the defaults. A missing file
// yields the defaults. Files ending in .json are decoded as JSON.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves the config file from LIONCITY_CONFIG or the default path,
// reads it and applies environment overrides.
func Load() (*Config, error) {
	path := os.Getenv(EnvPrefix + "CONFIG")
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any LIONCITY_* variables that are set.
func ApplyEnv(cfg *Config) error {
	o := envOverrides{
		Port:           cfg.Port,
		StoreDriver:    cfg.Store.Driver,
		StorePath:      cfg.Store.Path,
		LogFile:        cfg.Log.File,
		Verbose:        cfg.Log.Verbose,
		BoostDuration:  cfg.BoostDuration,
		Timezone:       cfg.Timezone,
		WebhookURL:     cfg.Webhook.URL,
		WebhookSecret:  cfg.Webhook.Secret,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	}
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	cfg.Port = o.Port
	cfg.Store = StoreConfig{Driver: o.StoreDriver, Path: o.StorePath}
	cfg.Log.File = o.LogFile
	cfg.Log.Verbose = o.Verbose
	cfg.BoostDuration = o.BoostDuration
	cfg.Timezone = o.Timezone
	cfg.Webhook.URL = o.WebhookURL
	cfg.Webhook.Secret = o.WebhookSecret
	cfg.RateLimit = RateLimitConfig{RPS: o.RateLimitRPS, Burst: o.RateLimitBurst}
	return nil
}

// BindFlags registers flags on fs that write into cfg. Current values are the
// flag defaults, so unset flags leave cfg unchanged.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.Store.Driver, "store", cfg.Store.Driver, "store driver: memory, leveldb or sqlite")
	fs.StringVar(&cfg.Store.Path, "store-path", cfg.Store.Path, "store file or directory")
	fs.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "write logs to a rotated file instead of stdout")
	fs.BoolVar(&cfg.Log.Verbose, "verbose", cfg.Log.Verbose, "enable debug logging")
	fs.DurationVar(&cfg.BoostDuration, "boost-duration", cfg.BoostDuration, "double points window length")
	fs.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "zone whose calendar day gates daily rewards")
	fs.StringVar(&cfg.Webhook.URL, "webhook-url", cfg.Webhook.URL, "URL to deliver domain events to")
	fs.StringVar(&cfg.Webhook.Secret, "webhook-secret", cfg.Webhook.Secret, "HMAC secret for webhook signatures")
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Store.Driver {
	case kvstore.DriverMemory:
	case kvstore.DriverLevelDB, kvstore.DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store driver %q requires a path", c.Store.Driver)
		}
	default:
		return fmt.Errorf("%w: %q", kvstore.ErrUnknownDriver, c.Store.Driver)
	}
	if c.BoostDuration <= 0 {
		return fmt.Errorf("boost_duration must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if c.Catalog != nil {
		if err := c.Catalog.Validate(); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	return nil
}

// Location resolves the configured timezone. Empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// OfferCatalog returns the configured catalog or the built-in one.
func (c *Config) OfferCatalog() catalog.Catalog {
	if c.Catalog == nil {
		return catalog.Default()
	}
	return *c.Catalog
}

// Save writes cfg as YAML to path, creating the directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
