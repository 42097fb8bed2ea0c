package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Port     string `yaml:"port"`
	DBPath   string `yaml:"db_path"`
	ClientID string `yaml:"client_id"`

	Remote  RemoteConfig  `yaml:"remote"`
	Polling PollingConfig `yaml:"polling"`
	Store   StoreConfig   `yaml:"store"`

	// RateLimit is the number of command requests allowed per client per minute
	RateLimit int `yaml:"rate_limit"`
}

// RemoteConfig describes how to reach the simulation server
type RemoteConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	AuthSecret string `yaml:"auth_secret"`
}

// PollingConfig controls the latest-entity poller
type PollingConfig struct {
	IntervalMs     int  `yaml:"interval_ms"`
	StartDelayMs   int  `yaml:"start_delay_ms"`
	StrictOrdering bool `yaml:"strict_ordering"`
}

// StoreConfig controls the local annotation store
type StoreConfig struct {
	// LoadPolicy is "skip" (drop undecodable rows) or "strict" (fail the load)
	LoadPolicy string `yaml:"load_policy"`
}

const (
	LoadPolicySkip   = "skip"
	LoadPolicyStrict = "strict"

	dbFileName = "user_assets.db"
	appDirName = "tamos-client"
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:     ":8090",
		DBPath:   defaultDBPath(),
		ClientID: "tamos-client",
		Remote: RemoteConfig{
			BaseURL:   "http://localhost:8080",
			TimeoutMs: 5000,
		},
		Polling: PollingConfig{
			IntervalMs:   50,
			StartDelayMs: 50,
		},
		Store: StoreConfig{
			LoadPolicy: LoadPolicySkip,
		},
		RateLimit: 120,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by TAMOS_CONFIG and environment overrides, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("TAMOS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Port = port
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		c.DBPath = dbPath
	}
	if baseURL := os.Getenv("REMOTE_BASE_URL"); baseURL != "" {
		c.Remote.BaseURL = baseURL
	}
	if secret := os.Getenv("REMOTE_AUTH_SECRET"); secret != "" {
		c.Remote.AuthSecret = secret
	}
	if policy := os.Getenv("LOAD_POLICY"); policy != "" {
		c.Store.LoadPolicy = policy
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"POLL_INTERVAL_MS", &c.Polling.IntervalMs},
		{"START_DELAY_MS", &c.Polling.StartDelayMs},
		{"REMOTE_TIMEOUT_MS", &c.Remote.TimeoutMs},
		{"RATE_LIMIT", &c.RateLimit},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("STRICT_ORDERING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STRICT_ORDERING: %w", err)
		}
		c.Polling.StrictOrdering = b
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Remote.BaseURL) == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if c.Polling.IntervalMs <= 0 {
		return fmt.Errorf("polling.interval_ms must be positive")
	}
	if c.Polling.StartDelayMs < 0 {
		return fmt.Errorf("polling.start_delay_ms must not be negative")
	}
	switch c.Store.LoadPolicy {
	case LoadPolicySkip, LoadPolicyStrict:
	default:
		return fmt.Errorf("store.load_policy must be %q or %q, got %q", LoadPolicySkip, LoadPolicyStrict, c.Store.LoadPolicy)
	}
	return nil
}

// PollInterval returns the polling period
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalMs) * time.Millisecond
}

// StartDelay returns the wait between starting the simulation and polling
func (c *Config) StartDelay() time.Duration {
	return time.Duration(c.Polling.StartDelayMs) * time.Millisecond
}

// RemoteTimeout returns the HTTP client timeout for remote calls
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutMs) * time.Millisecond
}

// defaultDBPath places the store in the per-user application data directory,
// falling back to the working directory when none is available.
func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".", "data", dbFileName)
	}
	return filepath.Join(dir, appDirName, dbFileName)
}
