/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	JWTSigningKey string

	// Plan service limits
	MaxPlanTasks int     // SKULD_MAX_PLAN_TASKS — 0 disables the cap
	APIRateLimit float64 // SKULD_API_RATE_LIMIT — requests/second on plan endpoints, 0 disables

	// Event bus configuration
	BusBackend    string // "memory", "redis", or "nats"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	NATSToken     string

	// Plan cache (Redis, shares the SKULD_REDIS_* connection settings)
	CacheEnabled bool
	CacheMaxRuns int

	// Object storage for exported plans
	StorageBackend string // "fs", "s3", or "none"
	StorageFSRoot  string

	// S3 object storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3Prefix          string // Key prefix prepended to every stored object
	S3UsePathStyle    bool   // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Log ring buffer capacity (entries)
	LogBufferSize int

	// Periodic release check against GitHub
	UpdateCheckEnabled bool
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("SKULD_ENV", "development"),
		HTTPBind:      getEnv("SKULD_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvInt("SKULD_HTTP_PORT", 8080),
		JWTSigningKey: getEnv("SKULD_JWT_SIGNING_KEY", ""),

		MaxPlanTasks: getEnvInt("SKULD_MAX_PLAN_TASKS", 1000),
		APIRateLimit: getEnvFloat("SKULD_API_RATE_LIMIT", 0),

		BusBackend:    getEnv("SKULD_BUS_BACKEND", "memory"),
		RedisAddr:     getEnv("SKULD_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("SKULD_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("SKULD_REDIS_DB", 0),
		NATSURL:       getEnv("SKULD_NATS_URL", "nats://localhost:4222"),
		NATSToken:     getEnv("SKULD_NATS_TOKEN", ""),

		CacheEnabled: getEnvBool("SKULD_CACHE_ENABLED", false),
		CacheMaxRuns: getEnvInt("SKULD_CACHE_MAX_RUNS", 50),

		StorageBackend: getEnv("SKULD_STORAGE_BACKEND", "fs"),
		StorageFSRoot:  getEnv("SKULD_STORAGE_FS_ROOT", "./exports"),

		// S3 settings fall back to the conventional AWS variables so
		// stock cloud credentials work without duplication.
		S3AccessKeyID:     getEnvAny([]string{"SKULD_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"SKULD_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"SKULD_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"SKULD_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"SKULD_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3Prefix:          getEnv("SKULD_S3_PREFIX", ""),
		S3UsePathStyle:    getEnvBool("SKULD_S3_USE_PATH_STYLE", false),

		TracingEnabled:    getEnvBool("SKULD_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SKULD_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SKULD_TRACING_SAMPLE_RATE", 1.0),

		LogBufferSize: getEnvInt("SKULD_LOG_BUFFER_SIZE", 1000),

		UpdateCheckEnabled: getEnvBool("SKULD_UPDATE_CHECK_ENABLED", true),
	}

	switch cfg.BusBackend {
	case "memory", "redis", "nats":
	default:
		return nil, fmt.Errorf("unsupported event bus backend %q", cfg.BusBackend)
	}

	switch cfg.StorageBackend {
	case "fs", "s3", "none":
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}

	if cfg.StorageBackend == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("SKULD_S3_BUCKET must be provided when the s3 storage backend is selected")
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.JWTSigningKey == "" {
			return nil, fmt.Errorf("SKULD_JWT_SIGNING_KEY must be provided in production")
		}
	}

	return cfg, nil
}

// Addr returns the HTTP listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}
