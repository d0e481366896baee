package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TokenStoreMemory   = "memory"
	TokenStoreSQLite   = "sqlite"
	TokenStorePostgres = "postgres"
	TokenStoreRedis    = "redis"
)

var validTokenStores = []string{TokenStoreMemory, TokenStoreSQLite, TokenStorePostgres, TokenStoreRedis}

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// HTTP server
	Port          string
	SecureCookies bool

	// REST backend
	APIBaseURL string
	APITimeout time.Duration

	// Token store
	TokenStore         string
	SQLiteDBPath       string
	DBConnectionString string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	TokenTTL           time.Duration
	TokenSealKey       string

	// Session lifecycle
	HydrationTimeout time.Duration
	HydrationWait    time.Duration
	SessionIdleTTL   time.Duration
	SessionCacheSize int

	AuthRatePerMinute int
	LogLevel          string
	LogJSON           bool
}

// Load reads .env when present and then the process environment.
func Load() *Config {
	// .env is optional, the process environment wins when it is missing
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		SecureCookies: getEnvBool("SECURE_COOKIES", false),

		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", ""), "/"),
		APITimeout: getEnvDuration("API_TIMEOUT", 10*time.Second),

		TokenStore:         strings.ToLower(getEnv("TOKEN_STORE", TokenStoreMemory)),
		SQLiteDBPath:       getEnv("SQLITE_DB_PATH", "./data/tokens.db"),
		DBConnectionString: getEnv("DB_CONNECTION_STRING", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 0),
		TokenSealKey:       getEnv("TOKEN_SEAL_KEY", ""),

		HydrationTimeout: getEnvDuration("HYDRATION_TIMEOUT", 5*time.Second),
		HydrationWait:    getEnvDuration("HYDRATION_WAIT", 1500*time.Millisecond),
		SessionIdleTTL:   getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionCacheSize: getEnvInt("SESSION_CACHE_SIZE", 10000),

		AuthRatePerMinute: getEnvInt("AUTH_RATE_PER_MINUTE", 10),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogJSON:           getEnvBool("LOG_JSON", false),
	}
}

// Validate collects every problem with the configuration into a single error.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.APIBaseURL == "" {
		problems = append(problems, "API_BASE_URL is required")
	} else if u, err := url.Parse(c.APIBaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("invalid API_BASE_URL '%s': %v", c.APIBaseURL, err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("invalid API_BASE_URL '%s': must be an absolute http(s) URL", c.APIBaseURL))
	}

	if c.APITimeout <= 0 {
		problems = append(problems, "API_TIMEOUT must be positive")
	}

	valid := false
	for _, s := range validTokenStores {
		if c.TokenStore == s {
			valid = true
			break
		}
	}
	if !valid {
		problems = append(problems, fmt.Sprintf("invalid token store '%s': must be one of %v", c.TokenStore, validTokenStores))
	}

	switch c.TokenStore {
	case TokenStoreSQLite:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLITE_DB_PATH cannot be empty when using sqlite token store")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					problems = append(problems, fmt.Sprintf("cannot create SQLite directory '%s': %v", dir, err))
				}
			}
		}
	case TokenStorePostgres:
		if c.DBConnectionString == "" {
			problems = append(problems, "DB_CONNECTION_STRING is required when using postgres token store")
		}
	case TokenStoreRedis:
		if c.RedisAddr == "" {
			problems = append(problems, "REDIS_ADDR is required when using redis token store")
		}
		if c.RedisDB < 0 {
			problems = append(problems, "REDIS_DB cannot be negative")
		}
	}

	if c.TokenSealKey != "" {
		if _, err := c.SealKey(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if c.HydrationTimeout <= 0 {
		problems = append(problems, "HYDRATION_TIMEOUT must be positive")
	}
	if c.HydrationWait < 0 {
		problems = append(problems, "HYDRATION_WAIT cannot be negative")
	}
	if c.SessionIdleTTL <= 0 {
		problems = append(problems, "SESSION_IDLE_TTL must be positive")
	}
	if c.SessionCacheSize < 1 {
		problems = append(problems, "SESSION_CACHE_SIZE must be at least 1")
	}
	if c.AuthRatePerMinute < 1 {
		problems = append(problems, "AUTH_RATE_PER_MINUTE must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
	}
	return nil
}

// SealKey decodes TOKEN_SEAL_KEY. A nil key with a nil error means sealing is off.
func (c *Config) SealKey() ([]byte, error) {
	if c.TokenSealKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.TokenSealKey)
	if err != nil {
		return nil, fmt.Errorf("TOKEN_SEAL_KEY must be hex encoded: %v", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("TOKEN_SEAL_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
