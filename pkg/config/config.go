package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service. Load is the only
// place that reads environment variables.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data provider
	FMP FMPConfig

	// Index definition, fixed at inception
	Index IndexConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration for the read-through cache.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FMPConfig holds Financial Modeling Prep API configuration.
type FMPConfig struct {
	APIKey  string
	BaseURL string
	// ChunkSize caps tickers per request (free-tier batch limit).
	ChunkSize int
	// RequestsPerMinute throttles outbound calls.
	RequestsPerMinute int
}

// IndexConfig defines the index: inception date, inception level, and
// target member count. Read-only after Load.
type IndexConfig struct {
	BaseDate  time.Time
	BaseValue float64
	Size      int
	// Universe is the ticker set the provider is asked for.
	Universe []string
	// AllowShortfall accepts days with fewer than Size eligible names
	// instead of aborting the build.
	AllowShortfall bool
}

// Load reads configuration from the environment, optionally seeded from
// a .env file.
func Load() (*Config, error) {
	loadEnvFile()

	baseDate, err := time.Parse("2006-01-02", getEnv("INDEX_BASE_DATE", "2025-07-01"))
	if err != nil {
		return nil, fmt.Errorf("parse INDEX_BASE_DATE: %w", err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		FMP: FMPConfig{
			APIKey:            getEnv("FMP_API_KEY", ""),
			// Host only; the client appends /api/v3/... per endpoint.
			BaseURL:           getEnv("FMP_BASE_URL", "https://financialmodelingprep.com"),
			ChunkSize:         getEnvAsInt("FMP_CHUNK_SIZE", 5),
			RequestsPerMinute: getEnvAsInt("FMP_REQUESTS_PER_MINUTE", 30),
		},

		Index: IndexConfig{
			BaseDate:       baseDate,
			BaseValue:      getEnvAsFloat("INDEX_BASE_VALUE", 1000),
			Size:           getEnvAsInt("INDEX_SIZE", 100),
			Universe:       splitList(getEnv("INDEX_UNIVERSE", "")),
			AllowShortfall: getEnvAsBool("INDEX_ALLOW_SHORTFALL", false),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// validate checks required configuration values.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.Index.BaseValue <= 0 {
		return fmt.Errorf("INDEX_BASE_VALUE must be positive")
	}
	if c.Index.Size <= 0 {
		return fmt.Errorf("INDEX_SIZE must be positive")
	}
	return nil
}

// loadEnvFile tries .env in a few likely locations.
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

// splitList parses a comma-separated env value into a trimmed slice.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
