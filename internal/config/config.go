package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ServiceName    = "allocation-service"
	ServiceVersion = "0.1.0"
)

const (
	BackendMySQL  = "mysql"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

type Config struct {
	HTTPAddr       string
	GRPCAddr       string
	StoreBackend   string
	MySQLDSN       string
	PebbleDir      string
	RedisAddr      string
	KafkaBrokers   []string
	KafkaTopic     string
	WorkerCount    int
	QueueSize      int
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
	OtelEndpoint   string
	LogLevel       string
	LogDevelopment bool
}

// Load reads the configuration from the environment. Unset variables fall
// back to defaults; malformed values are an error.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:     getEnv("GRPC_ADDR", ":50051"),
		StoreBackend: getEnv("STORE_BACKEND", BackendMySQL),
		MySQLDSN:     getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/allocation?parseTime=true"),
		PebbleDir:    getEnv("PEBBLE_DIR", "./data/allocation"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "allocation.events"),
		OtelEndpoint: os.Getenv("OTEL_ENDPOINT"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.WorkerCount, err = getInt("WORKER_COUNT", 4); err != nil {
		return Config{}, err
	}
	if cfg.QueueSize, err = getInt("QUEUE_SIZE", 1000); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL, err = getDuration("LOCK_TTL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.LogDevelopment, err = getBool("LOG_DEVELOPMENT", false); err != nil {
		return Config{}, err
	}

	switch cfg.StoreBackend {
	case BackendMySQL, BackendPebble, BackendMemory:
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND must be one of mysql|pebble|memory, got %q", cfg.StoreBackend)
	}
	if cfg.WorkerCount <= 0 {
		return Config{}, fmt.Errorf("WORKER_COUNT must be positive, got %d", cfg.WorkerCount)
	}
	if cfg.QueueSize < 0 {
		return Config{}, fmt.Errorf("QUEUE_SIZE must not be negative, got %d", cfg.QueueSize)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
