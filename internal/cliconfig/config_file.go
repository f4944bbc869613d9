package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	CacheDir       string `toml:"cache_dir"`
	CatalogPath    string `toml:"catalog_path"`
	NoCatalog      *bool  `toml:"no_catalog"`
	HTTPTimeout    string `toml:"http_timeout"`
	Retries        int    `toml:"retries"`
	BackoffInitial string `toml:"backoff_initial"`
	BackoffMax     string `toml:"backoff_max"`
	UserAgent      string `toml:"user_agent"`
	Jobs           int    `toml:"jobs"`
	NCBIAPIKey     string `toml:"ncbi_api_key"`
	EntrezDelay    string `toml:"entrez_delay"`
	LogLevel       string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.rescript/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if home := DefaultHome(); home != "" {
		return filepath.Join(home, "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("cache-dir", fc.CacheDir, &cfg.CacheDir)
	s.setString("catalog", fc.CatalogPath, &cfg.CatalogPath)
	s.setString("user-agent", fc.UserAgent, &cfg.UserAgent)
	s.setString("ncbi-api-key", fc.NCBIAPIKey, &cfg.NCBIAPIKey)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", fc.BackoffInitial, &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", fc.BackoffMax, &cfg.BackoffMax); err != nil {
		return err
	}
	if err := s.setDuration("entrez-delay", fc.EntrezDelay, &cfg.EntrezDelay); err != nil {
		return err
	}

	s.setInt("retries", fc.Retries, &cfg.Retries)
	s.setInt("jobs", fc.Jobs, &cfg.Jobs)

	s.setBool("no-catalog", fc.NoCatalog, &cfg.NoCatalog)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
