package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Port string

	// Logging
	LogLevel    string
	Development bool // APP_ENV=development switches zap to the development config
	GinMode     string

	// Postgres configuration
	DatabaseURL       string // Takes precedence over the POSTGRES_* values
	PostgresHost      string
	PostgresPort      int
	PostgresDatabase  string
	PostgresUser      string
	PostgresPassword  string
	PostgresSSLMode   string
	DBMaxConns        int32
	MigrationsOnStart bool

	UseMockDB bool

	// Loan notifications (optional)
	TelegramToken        string
	TelegramNotifyChatID int64

	AllowedOrigins []string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		GinMode:  getEnv("GIN_MODE", "release"),
	}
	config.Development = os.Getenv("APP_ENV") == "development"

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"
	config.MigrationsOnStart = os.Getenv("MIGRATIONS_ON_START") == "true"

	maxConns, err := getInt("DB_MAX_CONNS", 8)
	if err != nil {
		return nil, err
	}
	if maxConns < 1 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be positive, got %d", maxConns)
	}
	config.DBMaxConns = int32(maxConns)

	// Postgres configuration (required if not using mock)
	if !config.UseMockDB {
		config.DatabaseURL = os.Getenv("DATABASE_URL")
		if config.DatabaseURL == "" {
			config.PostgresHost = os.Getenv("POSTGRES_HOST")
			if config.PostgresHost == "" {
				return nil, fmt.Errorf("DATABASE_URL or POSTGRES_HOST is required when USE_MOCK_DB is not set")
			}

			config.PostgresPort, err = getInt("POSTGRES_PORT", 5432)
			if err != nil {
				return nil, err
			}

			config.PostgresDatabase = getEnv("POSTGRES_DB", "library")
			config.PostgresUser = getEnv("POSTGRES_USER", "postgres")
			config.PostgresPassword = os.Getenv("POSTGRES_PASSWORD")
			// Password is optional, can be empty
			config.PostgresSSLMode = getEnv("POSTGRES_SSLMODE", "disable")
		}
	}

	// Telegram notifications need both the token and the chat
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if chatID := os.Getenv("TELEGRAM_NOTIFY_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_NOTIFY_CHAT_ID: %s", chatID)
		}
		config.TelegramNotifyChatID = id
	}
	if (config.TelegramToken == "") != (config.TelegramNotifyChatID == 0) {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_NOTIFY_CHAT_ID must be set together")
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, origin)
			}
		}
	}

	return config, nil
}

// PostgresDSN returns DATABASE_URL or a URL assembled from the POSTGRES_* values
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     "/" + c.PostgresDatabase,
		RawQuery: url.Values{"sslmode": {c.PostgresSSLMode}}.Encode(),
	}
	if c.PostgresPassword == "" {
		u.User = url.User(c.PostgresUser)
	}
	return u.String()
}

// NotificationsEnabled reports whether loan events are sent to Telegram
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramNotifyChatID != 0
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
