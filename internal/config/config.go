// Package config reads stanza's environment configuration. A .env file in
// the working directory is loaded first; variables already set in the
// environment win over it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/matzehuels/stanza/pkg/cache"
	"github.com/matzehuels/stanza/pkg/integrations/pypi"
)

// Environment variables read by [Load].
const (
	EnvPython   = "STANZA_PYTHON"
	EnvPip      = "STANZA_PIP"
	EnvIndexURL = "STANZA_INDEX_URL"
	EnvCacheDir = "STANZA_CACHE_DIR"
	EnvCacheTTL = "STANZA_CACHE_TTL"
	EnvRedisURL = "STANZA_REDIS_URL"
	EnvJobs     = "STANZA_JOBS"
	EnvMetrics  = "STANZA_METRICS_FILE"
)

// DefaultCacheTTL bounds how long index responses are reused.
const DefaultCacheTTL = 24 * time.Hour

// Config is the resolved runtime configuration.
type Config struct {
	Python   string        // Interpreter executable
	Pip      string        // Installer executable
	IndexURL string        // Package index JSON API root
	CacheDir string        // File cache directory
	CacheTTL time.Duration // Index response lifetime
	RedisURL string        // Shared cache; replaces the file cache when set
	Jobs     int           // Concurrent installer operations

	// MetricsFile receives run metrics in the node_exporter textfile
	// format when set.
	MetricsFile string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Python:   firstNonEmpty(env(EnvPython), venvExecutable("python"), "python"),
		Pip:      firstNonEmpty(env(EnvPip), venvExecutable("pip"), "pip"),
		IndexURL: firstNonEmpty(env(EnvIndexURL), pypi.DefaultIndexURL),
		CacheDir: firstNonEmpty(env(EnvCacheDir), cache.DefaultDir()),
		CacheTTL: DefaultCacheTTL,
		RedisURL: env(EnvRedisURL),
		Jobs:     1,

		MetricsFile: env(EnvMetrics),
	}

	if raw := env(EnvCacheTTL); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl < 0 {
			return nil, fmt.Errorf("%s: invalid duration %q", EnvCacheTTL, raw)
		}
		cfg.CacheTTL = ttl
	}
	if raw := env(EnvJobs); raw != "" {
		jobs, err := strconv.Atoi(raw)
		if err != nil || jobs < 1 {
			return nil, fmt.Errorf("%s: must be a positive integer, got %q", EnvJobs, raw)
		}
		cfg.Jobs = jobs
	}
	return cfg, nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

// venvExecutable returns the named executable of the active virtualenv.
func venvExecutable(name string) string {
	venv := env("VIRTUAL_ENV")
	if venv == "" {
		return ""
	}
	return filepath.Join(venv, "bin", name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
