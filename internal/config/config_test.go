package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.Cache.Driver)
	assert.Equal(t, "http", cfg.Remote.Driver)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, time.Second, cfg.Refresh.Tick)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "postgres://groupbuy:@localhost:5432/groupbuy?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CACHE_DRIVER", "Redis")
	t.Setenv("REMOTE_DRIVER", "postgres")
	t.Setenv("REMOTE_TIMEOUT", "2")
	t.Setenv("REFRESH_INTERVAL", "45s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DATABASE_URL", "postgres://x@db/y")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "postgres", cfg.Remote.Driver)
	assert.Equal(t, 2*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "postgres://x@db/y", cfg.Database.URL)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CACHE_DRIVER", "localstorage")

	_, err := Load()
	assert.ErrorContains(t, err, "CACHE_DRIVER")
}
