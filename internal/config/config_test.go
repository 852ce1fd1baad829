package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, AuthLocal, cfg.Auth.Provider)
	assert.Equal(t, time.Second, cfg.Messaging.DeliveryDelay)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("DELIVERY_DELAY", "250ms")
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/qe.db")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Messaging.DeliveryDelay)
	assert.Equal(t, "/tmp/qe.db", cfg.Storage.Path)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestFromEnvPostgresFromParts(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_USER", "qe")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_SSL_MODE", "disable")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgresql://qe:pw@localhost:5432/postgres?sslmode=disable", cfg.Storage.URI)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	t.Setenv("STORAGE_TYPE", "redis")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("DELIVERY_DELAY", "soon")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestLocalAuthNeedsSecretOutsideDebug(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DEBUG", "false")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("DEBUG", "true")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
}
