package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "PORT", "SMTP_PORT", "SMTP_ENABLED", "DATABASE_URL", "WS_WRITE_TIMEOUT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, 2025, cfg.SMTPPort)
	assert.True(t, cfg.SMTPEnabled)
	assert.False(t, cfg.SMTPAuthEnabled)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, "holomail", cfg.DatabaseName)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, time.Duration(0), cfg.WSWriteTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("PORT", "9100")
	t.Setenv("SMTP_ENABLED", "false")
	t.Setenv("DATABASE_URL", " postgres://mail@localhost/holomail ")
	t.Setenv("WS_WRITE_TIMEOUT", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.False(t, cfg.SMTPEnabled)
	assert.Equal(t, "postgres://mail@localhost/holomail", cfg.DatabaseURL)
	assert.Equal(t, 3*time.Second, cfg.WSWriteTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	t.Setenv("HTTP_PORT", "8081")
	t.Setenv("WS_WRITE_TIMEOUT", "250ms")
	cfg = Load()
	assert.Equal(t, 8081, cfg.HTTPPort)
	assert.Equal(t, 250*time.Millisecond, cfg.WSWriteTimeout)
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("HTTP_PORT", "eighty")
	t.Setenv("PORT", "")
	t.Setenv("SMTP_ENABLED", "maybe")
	t.Setenv("WS_WRITE_TIMEOUT", "-5s")
	t.Setenv("LOG_LEVEL", "loud")

	cfg := Load()

	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.True(t, cfg.SMTPEnabled)
	assert.Equal(t, time.Duration(0), cfg.WSWriteTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}
