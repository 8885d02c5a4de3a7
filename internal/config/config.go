// Package config loads headlessctl's runtime configuration: a YAML file
// read with gopkg.in/yaml.v3, layered under environment-variable
// overrides, grounded on ajsharma/browser_tail's internal/config package
// (DefaultConfig/LoadFromFile/Validate shape) and snapps91/PDFRest's
// config.go (getEnv/getEnvDuration/getEnvInt helpers with logged fallback
// on parse error).
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables for a headlessctl run: where the
// browser's remote-debugging endpoint lives, how many tabs the Manager
// will hand out at once, and the timeouts governing every layer from the
// WebSocket dial down to a single tab command.
type Config struct {
	BrowserAddr string `yaml:"browser_addr"`

	MaxTabs int `yaml:"max_tabs"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	CreateTimeout  time.Duration `yaml:"create_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	HealthInterval time.Duration `yaml:"health_interval"`

	SubscriptionCapacity int `yaml:"subscription_capacity"`

	ReconnectBase     time.Duration `yaml:"reconnect_base"`
	ReconnectMax      time.Duration `yaml:"reconnect_max"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
}

// DefaultConfig returns the configuration a bare headlessctl invocation
// runs with, matching the Manager/transport package defaults.
func DefaultConfig() *Config {
	return &Config{
		BrowserAddr:          "localhost:9222",
		MaxTabs:              16,
		ConnectTimeout:       10 * time.Second,
		ReadTimeout:          30 * time.Second,
		CreateTimeout:        10 * time.Second,
		CommandTimeout:       30 * time.Second,
		HealthInterval:       30 * time.Second,
		SubscriptionCapacity: 64,
		ReconnectBase:        500 * time.Millisecond,
		ReconnectMax:         30 * time.Second,
		ReconnectAttempts:    5,
	}
}

// LoadFromFile starts from DefaultConfig and overrides it with whatever
// path contains, following ajsharma/browser_tail's LoadFromFile: read the
// file, unmarshal on top of the defaults rather than a zero value, so an
// omitted field keeps its default instead of zeroing out.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvOverrides layers environment-variable overrides on top of cfg,
// the way snapps91/PDFRest's loadConfig does: each variable is optional,
// and a present-but-unparseable value is logged and ignored rather than
// aborting the load.
func ApplyEnvOverrides(cfg *Config) {
	cfg.BrowserAddr = getEnvString("HEADLESS_BROWSER_ADDR", cfg.BrowserAddr)
	cfg.MaxTabs = getEnvInt("HEADLESS_MAX_TABS", cfg.MaxTabs)
	cfg.ConnectTimeout = getEnvDuration("HEADLESS_CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.ReadTimeout = getEnvDuration("HEADLESS_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.CreateTimeout = getEnvDuration("HEADLESS_CREATE_TIMEOUT", cfg.CreateTimeout)
	cfg.CommandTimeout = getEnvDuration("HEADLESS_COMMAND_TIMEOUT", cfg.CommandTimeout)
	cfg.HealthInterval = getEnvDuration("HEADLESS_HEALTH_INTERVAL", cfg.HealthInterval)
	cfg.SubscriptionCapacity = getEnvInt("HEADLESS_SUBSCRIPTION_CAPACITY", cfg.SubscriptionCapacity)
	cfg.ReconnectBase = getEnvDuration("HEADLESS_RECONNECT_BASE", cfg.ReconnectBase)
	cfg.ReconnectMax = getEnvDuration("HEADLESS_RECONNECT_MAX", cfg.ReconnectMax)
	cfg.ReconnectAttempts = getEnvInt("HEADLESS_RECONNECT_ATTEMPTS", cfg.ReconnectAttempts)
}

// Validate rejects a configuration that would leave the Manager or
// transport layer misconfigured (zero or negative timeouts, a negative
// tab cap).
func (c *Config) Validate() error {
	if c.BrowserAddr == "" {
		return fmt.Errorf("browser_addr must not be empty")
	}
	if c.MaxTabs < 0 {
		return fmt.Errorf("max_tabs must be >= 0 (0 means unlimited), got %d", c.MaxTabs)
	}
	for name, d := range map[string]time.Duration{
		"connect_timeout": c.ConnectTimeout,
		"read_timeout":    c.ReadTimeout,
		"create_timeout":  c.CreateTimeout,
		"command_timeout": c.CommandTimeout,
		"health_interval": c.HealthInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.SubscriptionCapacity <= 0 {
		return fmt.Errorf("subscription_capacity must be positive, got %d", c.SubscriptionCapacity)
	}
	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect_attempts must be >= 0, got %d", c.ReconnectAttempts)
	}
	return nil
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("headless: invalid %s=%q, using default %s: %v", key, v, fallback, err)
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("headless: invalid %s=%q, using default %d: %v", key, v, fallback, err)
		return fallback
	}
	return parsed
}
