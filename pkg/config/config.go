package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/confsys/sitecfg/pkg/observability"
	"github.com/confsys/sitecfg/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage and cache configuration
	Storage storage.Config

	// Audit configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// RateLimitEnabled guards state-changing requests with a per-caller
	// token bucket.
	RateLimitEnabled   bool
	RateLimitPerMinute int
	RateLimitBurst     int
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	// Backend selects where records land: "db", "file" or "memory".
	Backend string

	// FilePath is the NDJSON log location for the file backend.
	FilePath string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	// WarmOnStart primes the cache for every category before serving.
	WarmOnStart bool

	// WarmSchedule is an optional cron expression for periodic cache
	// warming; empty disables the scheduler.
	WarmSchedule string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SITECFG_HOST", "0.0.0.0"),
		Port:            getEnv("SITECFG_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SITECFG_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SITECFG_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SITECFG_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SITECFG_SHUTDOWN_TIMEOUT", 30*time.Second),

		RateLimitEnabled:   getEnvBool("SITECFG_RATE_LIMIT_ENABLED", false),
		RateLimitPerMinute: getEnvInt("SITECFG_RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     getEnvInt("SITECFG_RATE_LIMIT_BURST", 10),
	}
}

// loadStorageConfig loads storage and cache configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if storageType := getEnv("SITECFG_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = storageType
	}

	// PostgreSQL config
	if pgURL := getEnv("SITECFG_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("SITECFG_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if timeout := getEnvDuration("SITECFG_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// SQLite config
	if sqlitePath := getEnv("SITECFG_SQLITE_PATH", ""); sqlitePath != "" {
		cfg.SQLitePath = sqlitePath
	}

	// Redis config
	if redisURL := getEnv("SITECFG_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("SITECFG_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("SITECFG_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("SITECFG_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("SITECFG_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	if cacheEnabled := getEnv("SITECFG_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}
	if namespace := getEnv("SITECFG_CACHE_NAMESPACE", ""); namespace != "" {
		cfg.CacheNamespace = namespace
	}
	if ttl := getEnvDuration("SITECFG_CACHE_TTL", 0); ttl > 0 {
		cfg.CacheTTL = ttl
	}
	if l1Size := getEnvInt("SITECFG_L1_CACHE_SIZE", 0); l1Size > 0 {
		cfg.L1CacheSize = l1Size
	}
	cfg.CacheWarmOnWrite = getEnvBool("SITECFG_CACHE_WARM_ON_WRITE", false)

	return cfg
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Backend:  getEnv("SITECFG_AUDIT_BACKEND", "memory"),
		FilePath: getEnv("SITECFG_AUDIT_FILE", "sitecfg-audit.ndjson"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("SITECFG_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("SITECFG_METRICS_ENABLED", true),
		WarmOnStart:    getEnvBool("SITECFG_WARM_ON_START", true),
		WarmSchedule:   getEnv("SITECFG_WARM_SCHEDULE", ""),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, postgres, or sqlite)", c.Storage.Type)
	}

	switch c.Audit.Backend {
	case "memory", "file":
	case "db":
		if c.Storage.Type != "postgres" {
			return fmt.Errorf("db audit backend requires postgres storage")
		}
	default:
		return fmt.Errorf("invalid audit backend: %s (must be memory, file, or db)", c.Audit.Backend)
	}

	if c.Audit.Backend == "file" && c.Audit.FilePath == "" {
		return fmt.Errorf("audit file path is required for file audit backend")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
