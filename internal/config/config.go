package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath     string
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	SessionSecret    string
	LogLevel         string
	LogPath          string
	LogMaxSizeMB     int
	LogMaxBackups    int
	LogMaxAgeDays    int
	Port             string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	AdminEmails      []string

	PresencePollInterval time.Duration
	PresenceWindow       time.Duration
	RepairInterval       time.Duration
	RateLimitPerMinute   int
	SpinSeed             int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	config := Config{
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/riseup.db"),
		OIDCIssuer:       os.Getenv("OIDC_ISSUER"),
		OIDCClientID:     os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogPath:          os.Getenv("LOG_PATH"),
		Port:             envOrDefault("PORT", "8080"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		AdminEmails:      envList("ADMIN_EMAILS"),
	}

	var err error
	if config.LogMaxSizeMB, err = envInt("LOG_MAX_SIZE_MB", 100); err != nil {
		return Config{}, err
	}
	if config.LogMaxBackups, err = envInt("LOG_MAX_BACKUPS", 3); err != nil {
		return Config{}, err
	}
	if config.LogMaxAgeDays, err = envInt("LOG_MAX_AGE_DAYS", 7); err != nil {
		return Config{}, err
	}
	if config.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if config.RateLimitPerMinute, err = envInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return Config{}, err
	}
	if config.PresencePollInterval, err = envDuration("PRESENCE_POLL_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if config.PresenceWindow, err = envDuration("PRESENCE_WINDOW", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if config.RepairInterval, err = envDuration("REPAIR_INTERVAL", 5*time.Minute); err != nil {
		return Config{}, err
	}

	seed, err := envInt("SPIN_SEED", 0)
	if err != nil {
		return Config{}, err
	}
	config.SpinSeed = int64(seed)
	if config.SpinSeed == 0 {
		config.SpinSeed = time.Now().UnixNano()
	}

	if config.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET is required")
	}
	if config.PresencePollInterval <= 0 {
		return Config{}, fmt.Errorf("PRESENCE_POLL_INTERVAL must be positive")
	}
	if config.RepairInterval <= 0 {
		return Config{}, fmt.Errorf("REPAIR_INTERVAL must be positive")
	}

	return config, nil
}

// OIDCEnabled reports whether enough OIDC settings are present to use the
// external identity provider instead of dev login.
func (config Config) OIDCEnabled() bool {
	return config.OIDCIssuer != "" && config.OIDCClientID != ""
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envList splits a comma-separated variable, dropping blanks and lowercasing.
func envList(key string) []string {
	var values []string
	for _, value := range strings.Split(os.Getenv(key), ",") {
		if value = strings.ToLower(strings.TrimSpace(value)); value != "" {
			values = append(values, value)
		}
	}
	return values
}

func envInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return parsed, nil
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return parsed, nil
}
