package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultUserAgent identifies rescript to remote databases.
const DefaultUserAgent = "rescript/1 (+https://github.com/bft-labs/rescript)"

// Config holds CLI configuration shared by every rescript action.
type Config struct {
	CacheDir    string
	CatalogPath string
	NoCatalog   bool

	HTTPTimeout    time.Duration
	Retries        int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	UserAgent      string

	Jobs        int
	NCBIAPIKey  string
	EntrezDelay time.Duration

	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:    10 * time.Minute,
		Retries:        10,
		BackoffInitial: time.Second,
		BackoffMax:     time.Minute,
		UserAgent:      DefaultUserAgent,
		Jobs:           1,
		EntrezDelay:    334 * time.Millisecond,
		LogLevel:       "info",
		NCBIAPIKey:     os.Getenv("NCBI_API_KEY"),
	}
}

// DefaultHome returns ~/.rescript, or "" when the home directory is unknown.
func DefaultHome() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".rescript")
	}
	return ""
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		home := DefaultHome()
		if home == "" {
			return fmt.Errorf("cache-dir is required (home directory unknown)")
		}
		c.CacheDir = filepath.Join(home, "cache")
	}
	if c.CatalogPath == "" && !c.NoCatalog {
		home := DefaultHome()
		if home == "" {
			return fmt.Errorf("catalog is required (or --no-catalog)")
		}
		c.CatalogPath = filepath.Join(home, "catalog.db")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.Retries <= 0 {
		return fmt.Errorf("retries must be positive")
	}
	if c.BackoffInitial <= 0 {
		return fmt.Errorf("backoff initial must be positive")
	}
	if c.BackoffMax < c.BackoffInitial {
		c.BackoffMax = c.BackoffInitial
	}
	if c.Jobs <= 0 {
		return fmt.Errorf("jobs must be positive")
	}
	if c.EntrezDelay < 0 {
		return fmt.Errorf("entrez delay must not be negative")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	case "":
		c.LogLevel = "info"
	default:
		return fmt.Errorf("log level %q must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
