package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.HTTPHost)
	require.Equal(t, 8080, cfg.HTTPPort)
	require.Equal(t, 9090, cfg.MetricsPort)
	require.Equal(t, "postgres", cfg.StoreDriver)
	require.Equal(t, []string{"127.0.0.1:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "sportsclub", cfg.RelayTopicPrefix)
	require.Equal(t, []string{"sessions", "audit_log"}, cfg.RelayCollections)
	require.Empty(t, cfg.AuthSecret)
	require.Equal(t, "sportsclub", cfg.AuthIssuer)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SPORTSCLUB_HTTP_HOST", "127.0.0.1")
	t.Setenv("SPORTSCLUB_HTTP_PORT", "9191")
	t.Setenv("SPORTSCLUB_STORE_DRIVER", "memory")
	t.Setenv("SPORTSCLUB_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("SPORTSCLUB_RELAY_COLLECTIONS", "sessions")
	t.Setenv("SPORTSCLUB_AUTH_SECRET", "club-secret")
	t.Setenv("SPORTSCLUB_SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("SPORTSCLUB_LOG_LEVEL", "Debug")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1", cfg.HTTPHost)
	require.Equal(t, 9191, cfg.HTTPPort)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"sessions"}, cfg.RelayCollections)
	require.Equal(t, "club-secret", cfg.AuthSecret)
	require.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFallbackEnvNames(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DATABASE_URL", "postgres://club:club@db:5432/club")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 3000, cfg.HTTPPort)
	require.Equal(t, "postgres://club:club@db:5432/club", cfg.DatabaseURL)
}

func TestLoadRejectsBadShutdownTimeout(t *testing.T) {
	t.Setenv("SPORTSCLUB_SHUTDOWN_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Config{LogLevel: tt.level}.SlogLevel(), "level %q", tt.level)
	}
}
