package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	VerifyBaseURL string

	Storage StorageConfig
	Redis   RedisConfig
	Kafka   KafkaConfig

	PostgresDSN string

	// SignedLinkTTL bounds every retrieval URL the service issues.
	SignedLinkTTL time.Duration
	// LinkSigningKey signs local-store retrieval tokens.
	LinkSigningKey string
}

// StorageConfig selects the blob backend. When Endpoint is empty the service
// runs against the in-memory store (development mode).
type StorageConfig struct {
	Endpoint         string
	AccessKey        string
	SecretKey        string
	UseSSL           bool
	SandboxBucket    string
	ProductionBucket string
}

// RedisConfig mirrors the platform redis client knobs.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit sink. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ResolutionHintTTL bounds how long a fallback-resolved path is remembered.
var ResolutionHintTTL = 15 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:           envOr("VERIDOC_ADDR", ":8080"),
		VerifyBaseURL:  envOr("VERIDOC_VERIFY_BASE_URL", "https://verify.veridoc.dev/v"),
		PostgresDSN:    os.Getenv("VERIDOC_POSTGRES_DSN"),
		SignedLinkTTL:  durationOr("VERIDOC_SIGNED_LINK_TTL", 10*time.Minute),
		LinkSigningKey: envOr("VERIDOC_LINK_SIGNING_KEY", "dev-link-key-change-in-production"),
		Storage: StorageConfig{
			Endpoint:         os.Getenv("VERIDOC_STORAGE_ENDPOINT"),
			AccessKey:        os.Getenv("VERIDOC_STORAGE_ACCESS_KEY"),
			SecretKey:        os.Getenv("VERIDOC_STORAGE_SECRET_KEY"),
			UseSSL:           os.Getenv("VERIDOC_STORAGE_SSL") == "true",
			SandboxBucket:    envOr("VERIDOC_SANDBOX_BUCKET", "docs-sandbox"),
			ProductionBucket: envOr("VERIDOC_PRODUCTION_BUCKET", "docs-production"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("VERIDOC_REDIS_URL"),
			PoolSize:     intOr("VERIDOC_REDIS_POOL_SIZE", 10),
			MinIdleConns: intOr("VERIDOC_REDIS_MIN_IDLE", 2),
			DialTimeout:  durationOr("VERIDOC_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationOr("VERIDOC_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationOr("VERIDOC_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("VERIDOC_KAFKA_AUDIT_TOPIC", "veridoc.audit"),
		},
	}
	if brokers := os.Getenv("VERIDOC_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
