package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (RESCRIPT_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("cache-dir", os.Getenv("RESCRIPT_CACHE_DIR"), &cfg.CacheDir)
	s.setString("catalog", os.Getenv("RESCRIPT_CATALOG"), &cfg.CatalogPath)
	s.setString("user-agent", os.Getenv("RESCRIPT_USER_AGENT"), &cfg.UserAgent)
	s.setString("ncbi-api-key", os.Getenv("RESCRIPT_NCBI_API_KEY"), &cfg.NCBIAPIKey)
	s.setString("log-level", os.Getenv("RESCRIPT_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", os.Getenv("RESCRIPT_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", os.Getenv("RESCRIPT_BACKOFF_INITIAL"), &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", os.Getenv("RESCRIPT_BACKOFF_MAX"), &cfg.BackoffMax); err != nil {
		return err
	}
	if err := s.setDuration("entrez-delay", os.Getenv("RESCRIPT_ENTREZ_DELAY"), &cfg.EntrezDelay); err != nil {
		return err
	}

	if err := s.setIntFromString("retries", os.Getenv("RESCRIPT_RETRIES"), &cfg.Retries); err != nil {
		return err
	}
	if err := s.setIntFromString("jobs", os.Getenv("RESCRIPT_JOBS"), &cfg.Jobs); err != nil {
		return err
	}

	s.setBoolFromString("no-catalog", os.Getenv("RESCRIPT_NO_CATALOG"), &cfg.NoCatalog)

	return nil
}
