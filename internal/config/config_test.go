package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendAuto, cfg.StoreBackend)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, "local", cfg.DefaultWorkspaceID)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GEM_STORE_BACKEND", "MEMORY") // selector is case-insensitive
	t.Setenv("GEMRACK_WORKER_COUNT", "8")
	t.Setenv("GEMRACK_SESSION_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}

func TestValidate_UnknownBackend(t *testing.T) {
	t.Setenv("GEM_STORE_BACKEND", "firestore")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEM_STORE_BACKEND")
}

func TestValidate_PostgresRequiresURL(t *testing.T) {
	t.Setenv("GEM_STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate_AdminRequiresSessionSecret(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("GEMRACK_SESSION_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMRACK_SESSION_SECRET")
}

func TestProduction(t *testing.T) {
	t.Run("default is not production", func(t *testing.T) {
		cfg := Config{}
		assert.False(t, cfg.Production())
	})

	t.Run("explicit env", func(t *testing.T) {
		cfg := Config{Environment: "production"}
		assert.True(t, cfg.Production())
	})

	t.Run("cloud run marker", func(t *testing.T) {
		t.Setenv("K_SERVICE", "gemrack")
		cfg := Config{}
		assert.True(t, cfg.Production())
	})
}
