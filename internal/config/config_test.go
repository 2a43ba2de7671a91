package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAPIFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", " postgres://localhost/sword ")
	t.Setenv("SWORDSMITH_JWT_SECRET", "s3cret")
	t.Setenv("PORT", "")

	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "postgres://localhost/sword", cfg.DatabaseURL)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.AdKeysTTL)
}

func TestLoadAPIFromEnvHonoursPort(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sword")
	t.Setenv("SWORDSMITH_JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9090")

	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
}

func TestLoadAPIFromEnvValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing database", map[string]string{"SWORDSMITH_JWT_SECRET": "x"}, "DATABASE_URL"},
		{"missing secret", map[string]string{"DATABASE_URL": "postgres://x"}, "SWORDSMITH_JWT_SECRET"},
		{"memory without catalog", map[string]string{"SWORDSMITH_STORE": "memory", "SWORDSMITH_JWT_SECRET": "x"}, "SWORDSMITH_CATALOG_FILE"},
		{"unknown store", map[string]string{"SWORDSMITH_STORE": "redis", "SWORDSMITH_JWT_SECRET": "x"}, "SWORDSMITH_STORE"},
		{"bad duration", map[string]string{"DATABASE_URL": "postgres://x", "SWORDSMITH_JWT_SECRET": "x", "SWORDSMITH_AD_KEYS_TTL": "soon"}, "parse env"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"DATABASE_URL", "SWORDSMITH_JWT_SECRET", "SWORDSMITH_STORE", "SWORDSMITH_CATALOG_FILE", "SWORDSMITH_AD_KEYS_TTL", "PORT"} {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadAPIFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadWorkerFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sword")

	cfg, err := LoadWorkerFromEnv()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.ResetEvery)
	assert.False(t, cfg.RunOnce)

	t.Setenv("SWORDSMITH_RESET_EVERY", "0s")
	_, err = LoadWorkerFromEnv()
	require.Error(t, err)
}

func TestLoadCLIFromEnvTrimsSlash(t *testing.T) {
	t.Setenv("SW_API_BASE_URL", "https://api.example.com/")
	assert.Equal(t, "https://api.example.com", LoadCLIFromEnv().APIBaseURL)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, LogLevel("warning"))
	assert.Equal(t, slog.LevelInfo, LogLevel(""))
}
