package cliconfig

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Retries != 10 {
		t.Errorf("Retries = %v, want 10", cfg.Retries)
	}
	if cfg.EntrezDelay != 334*time.Millisecond {
		t.Errorf("EntrezDelay = %v, want 334ms", cfg.EntrezDelay)
	}
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %v, want %v", cfg.UserAgent, DefaultUserAgent)
	}
	if cfg.Jobs != 1 {
		t.Errorf("Jobs = %v, want 1", cfg.Jobs)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		c := DefaultConfig()
		c.CacheDir = "/tmp/cache"
		c.CatalogPath = "/tmp/catalog.db"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid defaults", mutate: func(c *Config) {}},
		{name: "zero timeout", mutate: func(c *Config) { c.HTTPTimeout = 0 }, wantErr: "timeout"},
		{name: "zero retries", mutate: func(c *Config) { c.Retries = 0 }, wantErr: "retries"},
		{name: "zero jobs", mutate: func(c *Config) { c.Jobs = 0 }, wantErr: "jobs"},
		{name: "negative entrez delay", mutate: func(c *Config) { c.EntrezDelay = -time.Second }, wantErr: "entrez"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log level"},
		{name: "zero backoff", mutate: func(c *Config) { c.BackoffInitial = 0 }, wantErr: "backoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Derivations(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c := DefaultConfig()
	c.LogLevel = ""
	c.UserAgent = ""
	c.BackoffMax = 0
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c.CacheDir != filepath.Join(home, ".rescript", "cache") {
		t.Errorf("CacheDir = %v", c.CacheDir)
	}
	if c.CatalogPath != filepath.Join(home, ".rescript", "catalog.db") {
		t.Errorf("CatalogPath = %v", c.CatalogPath)
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", c.LogLevel)
	}
	if c.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %v", c.UserAgent)
	}
	if c.BackoffMax != c.BackoffInitial {
		t.Errorf("BackoffMax = %v, want %v", c.BackoffMax, c.BackoffInitial)
	}

	// catalog path is not derived when the catalog is disabled
	c2 := DefaultConfig()
	c2.NoCatalog = true
	if err := c2.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c2.CatalogPath != "" {
		t.Errorf("CatalogPath = %v, want empty", c2.CatalogPath)
	}
}
