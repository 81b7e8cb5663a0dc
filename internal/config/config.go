// Package config loads and layers memoryd's configuration from an optional
// file plus environment variables, following the teacher's viper-based
// setDefaults-then-unmarshal convention.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Server     ServerConfig     `mapstructure:"server"`
	Circuit    CircuitConfig    `mapstructure:"circuit"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// DatabaseConfig configures the store's connection pool and replica routing.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	ReadReplicaURLs []string      `mapstructure:"read_replica_urls"`
	PoolSize        int           `mapstructure:"pool_size"`
	MaxOverflow     int           `mapstructure:"max_overflow"`
	PoolRecycle     time.Duration `mapstructure:"pool_recycle"`
}

// EmbeddingConfig configures the embedding provider and the durable job queue.
type EmbeddingConfig struct {
	Provider            string        `mapstructure:"provider"` // mock | local | remote
	Dimensions          int           `mapstructure:"dimensions"`
	Async               bool          `mapstructure:"async"`
	RemoteURL           string        `mapstructure:"remote_url"`
	RemoteRequestsPerSecond float64   `mapstructure:"remote_requests_per_second"`
	RemoteTimeout       time.Duration `mapstructure:"remote_timeout"`
	VectorBackend       string        `mapstructure:"vector_backend"` // pgvector | none
	JobPollInterval     time.Duration `mapstructure:"job_poll_interval"`
	JobBatchSize        int           `mapstructure:"job_batch_size"`
	JobMaxAttempts      int           `mapstructure:"job_max_attempts"`
	JobRetryBackoff     time.Duration `mapstructure:"job_retry_backoff"`
	JobStuckTimeout     time.Duration `mapstructure:"job_stuck_timeout"`
}

// CircuitConfig configures the embedding provider's circuit breaker.
type CircuitConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	RecoverySeconds  time.Duration `mapstructure:"recovery_seconds"`
	HalfOpenSuccesses uint32       `mapstructure:"half_open_successes"`
}

// CacheConfig configures the two-tier result cache.
type CacheConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxItems          int           `mapstructure:"max_items"`
	SearchTTL         time.Duration `mapstructure:"search_ttl"`
	EmbeddingTTL      time.Duration `mapstructure:"embedding_ttl"`
	RedisAddress      string        `mapstructure:"redis_address"`
}

// RetrievalConfig bounds ranking behaviour.
type RetrievalConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// RetentionConfig configures the default policy and scheduler.
type RetentionConfig struct {
	MaxAgeDays            int           `mapstructure:"max_age_days"`
	ImportanceThreshold    float64       `mapstructure:"importance_threshold"`
	DeleteAfterDays        int           `mapstructure:"delete_after_days"`
	ScheduleInterval       time.Duration `mapstructure:"schedule_interval"`
	Tenants                []string      `mapstructure:"tenants"`
}

// RateLimitConfig configures the sliding-window admission-control limiters.
type RateLimitConfig struct {
	Global string `mapstructure:"global"`
	Tenant string `mapstructure:"tenant"`
}

// ServerConfig configures the HTTP shell.
type ServerConfig struct {
	ListenAddress        string        `mapstructure:"listen_address"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	RequestMaxBytes      int64         `mapstructure:"request_max_bytes"`
	ShutdownGraceSeconds time.Duration `mapstructure:"shutdown_grace_seconds"`
	JWTSecret            string        `mapstructure:"jwt_secret"`
	JWTIssuer            string        `mapstructure:"jwt_issuer"`
}

// ObservabilityConfig configures ambient logging/metrics/tracing.
type ObservabilityConfig struct {
	LogLevel             string `mapstructure:"log_level"`
	LogFormat            string `mapstructure:"log_format"`
	MetricsEnabled       bool   `mapstructure:"metrics_enabled"`
	OTELExporterEndpoint string `mapstructure:"otel_exporter_endpoint"`
	ServiceName          string `mapstructure:"service_name"`
	Environment          string `mapstructure:"environment"`
}

// Load reads configuration from an optional file plus MEMORYD_-prefixed
// environment variables, applying defaults per spec.md §6.3.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile := os.Getenv("MEMORYD_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("MEMORYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "postgres://localhost:5432/memoryd?sslmode=disable")
	v.SetDefault("database.read_replica_urls", []string{})
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.max_overflow", 10)
	v.SetDefault("database.pool_recycle", 3600*time.Second)

	v.SetDefault("embedding.provider", "mock")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.async", false)
	v.SetDefault("embedding.remote_url", "")
	v.SetDefault("embedding.remote_requests_per_second", 10.0)
	v.SetDefault("embedding.remote_timeout", 10*time.Second)
	v.SetDefault("embedding.vector_backend", "pgvector")
	v.SetDefault("embedding.job_poll_interval", 1*time.Second)
	v.SetDefault("embedding.job_batch_size", 10)
	v.SetDefault("embedding.job_max_attempts", 3)
	v.SetDefault("embedding.job_retry_backoff", 5*time.Second)
	v.SetDefault("embedding.job_stuck_timeout", 60*time.Second)

	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.recovery_seconds", 30*time.Second)
	v.SetDefault("circuit.half_open_successes", 2)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_items", 2000)
	v.SetDefault("cache.search_ttl", 60*time.Second)
	v.SetDefault("cache.embedding_ttl", 3600*time.Second)
	v.SetDefault("cache.redis_address", "")

	v.SetDefault("retrieval.max_results", 8)

	v.SetDefault("retention.max_age_days", 30)
	v.SetDefault("retention.importance_threshold", 0.35)
	v.SetDefault("retention.delete_after_days", 90)
	v.SetDefault("retention.schedule_interval", 86400*time.Second)
	v.SetDefault("retention.tenants", []string{"*"})

	v.SetDefault("rate_limit.global", "200/minute")
	v.SetDefault("rate_limit.tenant", "120/minute")

	v.SetDefault("server.listen_address", ":8080")
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.request_max_bytes", 1048576)
	v.SetDefault("server.shutdown_grace_seconds", 10*time.Second)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.jwt_issuer", "memoryd")

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "text")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.otel_exporter_endpoint", "")
	v.SetDefault("observability.service_name", "memoryd")
	v.SetDefault("observability.environment", "development")
}
