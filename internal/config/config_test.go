package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"CONFIG_FILE", "PORT", "CORS_ORIGIN", "TURNSTILE_SECRET_KEY",
		"LOBBY_GRACE_PERIOD", "LOBBY_TTL", "LOG_LEVEL", "LOG_FORMAT",
		"REDIS_HOST", "REDIS_URL", "REDIS_PORT", "REDIS_USERNAME", "REDIS_PASSWORD", "REDIS_DB",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3002, cfg.Port)
	assert.Equal(t, ":3002", cfg.Addr())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Minute, cfg.GracePeriod)
	assert.Equal(t, 24*time.Hour, cfg.LobbyTTL)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Empty(t, cfg.TurnstileSecret)
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("TURNSTILE_SECRET_KEY", "shh")
	t.Setenv("LOBBY_GRACE_PERIOD", "30s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("REDIS_URL", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_PASSWORD", "pw")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "shh", cfg.TurnstileSecret)
	assert.Equal(t, 30*time.Second, cfg.GracePeriod)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "cache.internal:6380", cfg.Redis.Addr())
	assert.Equal(t, "pw", cfg.Redis.Password)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestRedisHostWinsOverURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_HOST", "primary")
	t.Setenv("REDIS_URL", "fallback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Redis.Host)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 4000
cors_origins: ["https://poker.example"]
grace_period: 1m
lobby_ttl: 2h
log_level: warn
redis:
  host: redis.local
  db: 3
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "5000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Port, "env overrides file")
	assert.Equal(t, []string{"https://poker.example"}, cfg.CORSOrigins)
	assert.Equal(t, time.Minute, cfg.GracePeriod)
	assert.Equal(t, 2*time.Hour, cfg.LobbyTTL)
	assert.Equal(t, logrus.WarnLevel, cfg.LogLevel)
	assert.Equal(t, "redis.local", cfg.Redis.Host)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "abc"},
		{"REDIS_PORT", "x"},
		{"REDIS_DB", "one"},
		{"LOBBY_GRACE_PERIOD", "soon"},
		{"LOBBY_TTL", "-1h"},
		{"LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestOriginAllowed(t *testing.T) {
	cfg := &Config{CORSOrigins: []string{"https://poker.example"}}
	assert.True(t, cfg.OriginAllowed(""))
	assert.True(t, cfg.OriginAllowed("https://poker.example"))
	assert.False(t, cfg.OriginAllowed("https://evil.example"))

	open := &Config{CORSOrigins: []string{"*"}}
	assert.True(t, open.OriginAllowed("https://anything.example"))
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{LogLevel: logrus.ErrorLevel, LogJSON: true}
	logger := cfg.NewLogger()
	assert.Equal(t, logrus.ErrorLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}
