package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"social-connect/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:3000", cfg.Server.Addr())
	assert.Equal(t, store.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 8, cfg.Sync.FanOut)
	assert.Equal(t, "*/15 * * * *", cfg.Sync.ReconcileCron)
	assert.Equal(t, 24*time.Hour, cfg.Sync.ReconcileWindow)
	assert.Equal(t, "/ws/listen", cfg.Realtime.WebSocketPath)
	assert.Equal(t, "local", cfg.Auth.Provider)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, policy.Delay)
	assert.Equal(t, 10*time.Second, cfg.BackoffPolicy().MaxDelay)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongodb")
	t.Setenv("CHANGE_FEED", "redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("FEED_FANOUT", "4")
	t.Setenv("WRITE_RETRY_ATTEMPTS", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	opts := cfg.StoreOptions()
	assert.Equal(t, store.BackendMongoDB, opts.Backend)
	assert.Equal(t, store.FeedRedis, opts.Feed)
	assert.Equal(t, "cache:6380", opts.Redis.Addr)
	assert.Equal(t, "social-connect:changes", opts.RedisStream)
	assert.Equal(t, 4, cfg.Sync.FanOut)
	assert.Equal(t, 5, cfg.RetryPolicy().MaxAttempts)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RESUBSCRIBE_MAX_DELAY=3s\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RESUBSCRIBE_MAX_DELAY") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.BackoffPolicy().MaxDelay)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"STORE_BACKEND":        "sqlite",
		"CHANGE_FEED":          "kafka",
		"RECONCILE_CRON":       "sometimes",
		"FEED_FANOUT":          "0",
		"WRITE_RETRY_ATTEMPTS": "0",
		"AUTH_PROVIDER":        "ldap",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
