package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "GRPC_ADDR", "STORE_BACKEND", "MYSQL_DSN", "PEBBLE_DIR", "REDIS_ADDR",
		"KAFKA_BROKERS", "KAFKA_TOPIC", "WORKER_COUNT", "QUEUE_SIZE", "LOCK_TTL",
		"IDEMPOTENCY_TTL", "OTEL_ENDPOINT", "LOG_LEVEL", "LOG_DEVELOPMENT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":50051", cfg.GRPCAddr)
	assert.Equal(t, BackendMySQL, cfg.StoreBackend)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "allocation.events", cfg.KafkaTopic)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 1000, cfg.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogDevelopment)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "pebble")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("LOCK_TTL", "250ms")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendPebble, cfg.StoreBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTTL)
	assert.True(t, cfg.LogDevelopment)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"STORE_BACKEND", "postgres"},
		{"WORKER_COUNT", "many"},
		{"WORKER_COUNT", "0"},
		{"QUEUE_SIZE", "-1"},
		{"LOCK_TTL", "5"},
		{"LOG_DEVELOPMENT", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
