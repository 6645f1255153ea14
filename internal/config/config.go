package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP
	HTTPPort       string
	MaxBatchEvents int

	// Postgres document store
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Alert dispatch
	AlertChannelSize int
	AlertWorkers     int
	AlertDedupTTL    time.Duration

	// Reconciliation
	HighWaterMarkEnabled bool
	StoreTimeout         time.Duration

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		HTTPPort:             getEnv("HTTP_PORT", "8002"),
		MaxBatchEvents:       getEnvInt("MAX_BATCH_EVENTS", 5000),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "fleet_user"),
		DBPassword:           getEnv("DB_PASSWORD", "fleet_password"),
		DBName:               getEnv("DB_NAME", "fleet_monitor"),
		DBMaxConns:           int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		AlertChannelSize:     getEnvInt("ALERT_CHANNEL_SIZE", 1000),
		AlertWorkers:         getEnvInt("ALERT_WORKERS", 3),
		AlertDedupTTL:        time.Duration(getEnvInt("ALERT_DEDUP_TTL_SECONDS", 86400)) * time.Second,
		HighWaterMarkEnabled: getEnvBool("HIGH_WATER_MARK_ENABLED", true),
		StoreTimeout:         time.Duration(getEnvInt("STORE_TIMEOUT_MS", 5000)) * time.Millisecond,
		AuthCacheTTLSeconds:  getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:         strings.Split(getEnv("VALID_API_KEYS", ""), ","),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
	}
}

func (c *Config) Validate() error {
	if c.MaxBatchEvents <= 0 {
		return fmt.Errorf("MAX_BATCH_EVENTS must be positive, got %d", c.MaxBatchEvents)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.AlertChannelSize <= 0 {
		return fmt.Errorf("ALERT_CHANNEL_SIZE must be positive, got %d", c.AlertChannelSize)
	}
	if c.AlertWorkers <= 0 {
		return fmt.Errorf("ALERT_WORKERS must be positive, got %d", c.AlertWorkers)
	}
	if c.AlertDedupTTL <= 0 {
		return fmt.Errorf("ALERT_DEDUP_TTL_SECONDS must be positive")
	}
	if c.StoreTimeout < 0 {
		return fmt.Errorf("STORE_TIMEOUT_MS cannot be negative")
	}
	return nil
}

// DatabaseURL is the pgx connection string for the document store.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBMaxConns,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
