package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	DatabaseURL string `yaml:"database_url"`
	TablePrefix string `yaml:"table_prefix"`
	Storage     string `yaml:"storage"` // "postgres" or "memory"
	CORSOrigins string `yaml:"cors_origins"`
	// AuthJWKSURL enables bearer auth on mutating routes when set
	AuthJWKSURL string `yaml:"auth_jwks_url"`

	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Pagination PaginationConfig `yaml:"pagination"`
	Log        LogConfig        `yaml:"log"`
}

type DatabaseConfig struct {
	MaxConns int32 `yaml:"max_conns"`
	MinConns int32 `yaml:"min_conns"`
}

type CacheConfig struct {
	Enabled          bool          `yaml:"enabled"`
	RedisURL         string        `yaml:"redis_url"`
	TreeTTL          time.Duration `yaml:"tree_ttl"`
	SearchTTL        time.Duration `yaml:"search_ttl"`
	MemoryMaxEntries int           `yaml:"memory_max_entries"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	HealthInterval   time.Duration `yaml:"health_interval"`
}

type PaginationConfig struct {
	DefaultPageSize  int `yaml:"default_page_size"`
	MaxPageSize      int `yaml:"max_page_size"`
	MaxSearchResults int `yaml:"max_search_results"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxAge     int    `yaml:"max_age"`  // days
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads CONFIG_FILE (YAML) when set, then lets environment variables
// override it, then fills in defaults.
func Load() (*Config, error) {
	cfg := &Config{Cache: CacheConfig{Enabled: true}}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.overrideFromEnv()
	cfg.setDefaults()

	if cfg.Storage != "postgres" && cfg.Storage != "memory" {
		return nil, fmt.Errorf("unknown storage %q (want postgres or memory)", cfg.Storage)
	}
	if cfg.Storage == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORAGE=postgres")
	}

	return cfg, nil
}

func (c *Config) overrideFromEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.Version = getEnv("APP_VERSION", c.Version)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.TablePrefix = getEnv("TABLE_PREFIX", c.TablePrefix)
	c.Storage = strings.ToLower(getEnv("STORAGE", c.Storage))
	c.CORSOrigins = getEnv("CORS_ORIGINS", c.CORSOrigins)
	c.AuthJWKSURL = getEnv("AUTH_JWKS_URL", c.AuthJWKSURL)

	c.Database.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(c.Database.MaxConns)))
	c.Database.MinConns = int32(getEnvInt("DB_MIN_CONNS", int(c.Database.MinConns)))

	c.Cache.Enabled = getEnvBool("CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.TreeTTL = getEnvDuration("CACHE_TREE_TTL", c.Cache.TreeTTL)
	c.Cache.SearchTTL = getEnvDuration("CACHE_SEARCH_TTL", c.Cache.SearchTTL)
	c.Cache.MemoryMaxEntries = getEnvInt("CACHE_MEMORY_MAX_ENTRIES", c.Cache.MemoryMaxEntries)
	c.Cache.SweepInterval = getEnvDuration("CACHE_SWEEP_INTERVAL", c.Cache.SweepInterval)
	c.Cache.HealthInterval = getEnvDuration("CACHE_HEALTH_INTERVAL", c.Cache.HealthInterval)

	c.Pagination.DefaultPageSize = getEnvInt("DEFAULT_PAGE_SIZE", c.Pagination.DefaultPageSize)
	c.Pagination.MaxPageSize = getEnvInt("MAX_PAGE_SIZE", c.Pagination.MaxPageSize)
	c.Pagination.MaxSearchResults = getEnvInt("MAX_SEARCH_RESULTS", c.Pagination.MaxSearchResults)

	c.Log.File = getEnv("LOG_FILE", c.Log.File)
	c.Log.MaxSize = getEnvInt("LOG_MAX_SIZE_MB", c.Log.MaxSize)
	c.Log.MaxAge = getEnvInt("LOG_MAX_AGE_DAYS", c.Log.MaxAge)
	c.Log.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", c.Log.MaxBackups)
}

func (c *Config) setDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.TablePrefix == "" {
		c.TablePrefix = getTablePrefix(c.Environment)
	}
	if c.Storage == "" {
		c.Storage = "postgres"
	}
	if c.CORSOrigins == "" {
		c.CORSOrigins = "http://localhost:3000"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 25
	}
	if c.Database.MinConns <= 0 {
		c.Database.MinConns = 5
	}
	if c.Cache.TreeTTL <= 0 {
		c.Cache.TreeTTL = 5 * time.Minute
	}
	if c.Cache.SearchTTL <= 0 {
		c.Cache.SearchTTL = 3 * time.Minute
	}
	if c.Cache.MemoryMaxEntries <= 0 {
		c.Cache.MemoryMaxEntries = 10000
	}
	if c.Cache.SweepInterval <= 0 {
		c.Cache.SweepInterval = time.Minute
	}
	if c.Cache.HealthInterval <= 0 {
		c.Cache.HealthInterval = 10 * time.Second
	}
	if c.Pagination.DefaultPageSize <= 0 {
		c.Pagination.DefaultPageSize = DefaultPageSize
	}
	if c.Pagination.MaxPageSize <= 0 {
		c.Pagination.MaxPageSize = MaxPageSize
	}
	if c.Pagination.DefaultPageSize > c.Pagination.MaxPageSize {
		c.Pagination.DefaultPageSize = c.Pagination.MaxPageSize
	}
	if c.Pagination.MaxSearchResults <= 0 {
		c.Pagination.MaxSearchResults = MaxSearchResults
	}
	if c.Log.MaxSize <= 0 {
		c.Log.MaxSize = 100
	}
	if c.Log.MaxAge <= 0 {
		c.Log.MaxAge = 30
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 7
	}
}

// getTablePrefix returns the table prefix for an environment
func getTablePrefix(env string) string {
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5m") or a plain number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
