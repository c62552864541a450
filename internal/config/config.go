// Package config collects the environment configuration shared by the
// server, worker and scheduler binaries. Values come from the process
// environment (the mains load .env first via godotenv).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the three binaries read.
type Config struct {
	DatabaseURL string
	RedisAddr   string
	Port        string
	MetricsAddr string

	// BaseURL is the externally visible origin of the API server, used
	// for local-tier media URLs and RSS self-links.
	BaseURL string

	// MediaDir is the ephemeral-local tier root. Producer output and
	// cached copies live here; the directory may vanish on restart.
	MediaDir string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	// S3URLTTL bounds the lifetime of presigned playback URLs.
	S3URLTTL time.Duration
	// S3ObjectTTLDays is the bucket lifecycle expiry applied to the
	// durable-temporary tier as a safety net behind the sweeper.
	S3ObjectTTLDays int

	// RetentionWindow is the grace period after publish (and after the
	// last edit) before durable-temporary copies may be reclaimed.
	RetentionWindow time.Duration
	// StuckProcessingAfter is how long an episode may sit in processing
	// without an update before it is flagged for operator attention.
	StuckProcessingAfter time.Duration

	ProducerCmd     string
	PublishEndpoint string
	NotifyEndpoint  string

	WorkerConcurrency   int
	SweepInterval       time.Duration
	PublishScanInterval time.Duration
}

// FromEnv builds a Config from the environment, applying defaults for
// everything except DATABASE_URL, which has no sensible default.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            envOr("REDIS_ADDR", "127.0.0.1:6379"),
		Port:                 envOr("PORT", "8080"),
		MetricsAddr:          envOr("METRICS_ADDR", ":9090"),
		BaseURL:              envOr("BASE_URL", "http://localhost:8080"),
		MediaDir:             envOr("MEDIA_DIR", "media"),
		S3Endpoint:           envOr("S3_ENDPOINT", "127.0.0.1:9000"),
		S3AccessKey:          os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:          os.Getenv("S3_SECRET_KEY"),
		S3Bucket:             envOr("S3_BUCKET", "podforge-artifacts"),
		S3UseSSL:             envBool("S3_USE_SSL", false),
		S3URLTTL:             envDuration("S3_URL_TTL", 15*time.Minute),
		S3ObjectTTLDays:      envInt("S3_OBJECT_TTL_DAYS", 14),
		RetentionWindow:      envDuration("RETENTION_WINDOW", 7*24*time.Hour),
		StuckProcessingAfter: envDuration("STUCK_PROCESSING_AFTER", time.Hour),
		ProducerCmd:          envOr("PRODUCER_CMD", "podforge-assemble"),
		PublishEndpoint:      os.Getenv("PUBLISH_ENDPOINT"),
		NotifyEndpoint:       os.Getenv("NOTIFY_ENDPOINT"),
		WorkerConcurrency:    envInt("WORKER_CONCURRENCY", 4),
		SweepInterval:        envDuration("SWEEP_INTERVAL", 4*time.Hour),
		PublishScanInterval:  envDuration("PUBLISH_SCAN_INTERVAL", 10*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
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

func envDuration(key string, fallback time.Duration) time.Duration {
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
