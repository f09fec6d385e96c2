package config

import (
	"os"
	"strconv"
	"time"
)

const (
	defaultHTTPAddr      = ":8080"
	defaultMySQLDSN      = "root:root@tcp(localhost:3306)/stockroom?parseTime=true"
	defaultRedisAddr     = "localhost:6379"
	defaultMaxConcurrent = 16
	defaultQueueSize     = 10000
	defaultWorkerCount   = 10
	defaultCacheTTL      = 30 * time.Second
)

// Config carries everything the server wires together. Storage clients are
// built from it and injected, never held at module scope, so tests can
// substitute their own.
type Config struct {
	HTTPAddr      string
	MySQLDSN      string
	RedisAddr     string
	KafkaBroker   string // empty disables event publishing
	KafkaTopic    string
	MaxConcurrent int
	QueueSize     int
	WorkerCount   int
	CacheTTL      time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr:      getEnv("HTTP_ADDR", defaultHTTPAddr),
		MySQLDSN:      getEnv("MYSQL_DSN", defaultMySQLDSN),
		RedisAddr:     getEnv("REDIS_ADDR", defaultRedisAddr),
		KafkaBroker:   os.Getenv("KAFKA_BROKER"),
		KafkaTopic:    os.Getenv("KAFKA_TOPIC"),
		MaxConcurrent: getEnvInt("MAX_CONCURRENT", defaultMaxConcurrent),
		QueueSize:     getEnvInt("QUEUE_SIZE", defaultQueueSize),
		WorkerCount:   getEnvInt("WORKER_COUNT", defaultWorkerCount),
		CacheTTL:      getEnvDuration("CACHE_TTL", defaultCacheTTL),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
