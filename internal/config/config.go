package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort        int
	SMTPPort        int
	SMTPEnabled     bool
	SMTPAuthEnabled bool
	SMTPUsername    string
	SMTPPassword    string
	DatabaseURL     string
	DatabaseName    string
	MaxBodyBytes    int64
	WSWriteTimeout  time.Duration
	LogLevel        slog.Level
}

func Load() Config {
	return Config{
		HTTPPort:        getEnvInt("HTTP_PORT", getEnvInt("PORT", 8000)),
		SMTPPort:        getEnvInt("SMTP_PORT", 2025),
		SMTPEnabled:     getEnvBool("SMTP_ENABLED", true),
		SMTPAuthEnabled: getEnvBool("SMTP_AUTH_ENABLED", false),
		SMTPUsername:    getEnvString("SMTP_USERNAME", "holomail"),
		SMTPPassword:    getEnvString("SMTP_PASSWORD", "holomail"),
		DatabaseURL:     getEnvString("DATABASE_URL", ""),
		DatabaseName:    getEnvString("DATABASE_NAME", "holomail"),
		MaxBodyBytes:    int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		WSWriteTimeout:  getEnvDuration("WS_WRITE_TIMEOUT", 0),
		LogLevel:        getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if parsed, err := time.ParseDuration(trimmed); err == nil && parsed >= 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(trimmed); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
