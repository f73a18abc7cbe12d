package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Primary store
	Database DatabaseConfig

	// External bulk source + fallback protocol
	Source SourceConfig

	// Redis (optional shared payload cache)
	Redis RedisConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// SourceConfig controls the primary/fallback decision and the external fetch
type SourceConfig struct {
	ExternalURL     string
	FallbackEnabled bool
	// FallbackOnEmpty decides whether an empty primary result is fallback-worthy.
	// Only consulted when FallbackEnabled is true.
	FallbackOnEmpty bool
	CacheTTL        time.Duration
	FetchTimeout    time.Duration
	RateLimit       float64 // requests per second against the external source, per process
	// SharedFetchLimit caps downloads per URL across all replicas within SharedFetchWindow.
	// Needs Redis; 0 disables it.
	SharedFetchLimit  int
	SharedFetchWindow time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DefaultExternalURL is the public OWID vaccinations dataset
const DefaultExternalURL = "https://raw.githubusercontent.com/owid/covid-19-data/master/public/data/vaccinations/vaccinations.csv"

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8000"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Source: SourceConfig{
			ExternalURL:     getEnv("EXTERNAL_SOURCE_URL", DefaultExternalURL),
			FallbackEnabled: getEnvAsBool("FALLBACK_ENABLED", true),
			FallbackOnEmpty: getEnvAsBool("FALLBACK_ON_EMPTY", true),
			CacheTTL:        time.Duration(getEnvAsInt("FALLBACK_CACHE_TTL_SECONDS", 600)) * time.Second,
			FetchTimeout:    time.Duration(getEnvAsInt("EXTERNAL_FETCH_TIMEOUT_SECONDS", 60)) * time.Second,
			RateLimit:       getEnvAsFloat("EXTERNAL_RATE_LIMIT_PER_SEC", 2),

			SharedFetchLimit:  getEnvAsInt("EXTERNAL_SHARED_FETCH_LIMIT", 10),
			SharedFetchWindow: getEnvAsDuration("EXTERNAL_SHARED_FETCH_WINDOW", "1m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile loads an explicit env file before reading the environment.
// An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return Load()
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Without a fallback the primary store is the only source
	if c.Database.URL == "" && !c.Source.FallbackEnabled {
		return fmt.Errorf("DATABASE_URL is required when FALLBACK_ENABLED=false")
	}

	if c.Source.FallbackEnabled && c.Source.ExternalURL == "" {
		return fmt.Errorf("EXTERNAL_SOURCE_URL is required when FALLBACK_ENABLED=true")
	}

	if c.Source.CacheTTL <= 0 {
		return fmt.Errorf("FALLBACK_CACHE_TTL_SECONDS must be positive")
	}

	if c.Source.FetchTimeout <= 0 {
		return fmt.Errorf("EXTERNAL_FETCH_TIMEOUT_SECONDS must be positive")
	}

	if c.Source.SharedFetchLimit < 0 {
		return fmt.Errorf("EXTERNAL_SHARED_FETCH_LIMIT must not be negative")
	}

	if c.Source.SharedFetchLimit > 0 && c.Source.SharedFetchWindow <= 0 {
		return fmt.Errorf("EXTERNAL_SHARED_FETCH_WINDOW must be positive")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	return nil
}

// HasDatabase reports whether a primary store is configured
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
