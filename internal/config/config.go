package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Env  string
	Port string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT
	JWTSecret string

	// System integrations (X-API-Key)
	SystemAPIKey string

	// Redis submission guard
	RedisAddr      string
	RedisPassword  string
	SubmitGuardTTL time.Duration

	// Kafka domain events
	KafkaBrokers []string
	KafkaTopic   string

	// Inventory
	LowStockThreshold     int64
	ExpiringWithin        time.Duration
	StockAdjustMaxRetries int

	// Food requests
	DuplicateMinTermLength int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "nutriwatch"),
		DBPassword: getEnv("DB_PASSWORD", "nutriwatch"),
		DBName:     getEnv("DB_NAME", "nutriwatch"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "nutriwatch.db"),

		JWTSecret:    getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		SystemAPIKey: getEnv("SYSTEM_API_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "nutriwatch.events"),

		LowStockThreshold:      int64(getEnvInt("LOW_STOCK_THRESHOLD", 10)),
		ExpiringWithin:         time.Duration(getEnvInt("EXPIRING_WITHIN_DAYS", 30)) * 24 * time.Hour,
		StockAdjustMaxRetries:  getEnvInt("STOCK_ADJUST_MAX_RETRIES", 3),
		DuplicateMinTermLength: getEnvInt("DUPLICATE_MIN_TERM_LENGTH", 3),
	}

	ttlStr := getEnv("SUBMIT_GUARD_TTL", "10s")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		log.Printf("Warning: invalid SUBMIT_GUARD_TTL value '%s', falling back to 10s\n", ttlStr)
		ttl = 10 * time.Second
	}
	config.SubmitGuardTTL = ttl

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer environment variable, falling back to the
// default when it is unset or malformed.
func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
