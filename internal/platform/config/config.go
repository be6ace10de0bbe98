package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for every TTL window the pipeline manages. Consent intentionally
// outlives all operational state for compliance reasons.
const (
	DefaultQueueTTL         = time.Hour
	DefaultDedupTTL         = 30 * time.Minute
	DefaultTokenTTL         = 5 * time.Minute
	DefaultSessionIdleGap   = 30 * time.Minute
	DefaultRetention        = 24 * time.Hour
	DefaultConsentRetention = 365 * 24 * time.Hour
)

// ConsentMethod selects how a privacy decision is resolved.
type ConsentMethod string

const (
	// ConsentMethodExplicit resolves from explicit accept/deny actions
	// submitted by the hosting page.
	ConsentMethodExplicit ConsentMethod = "explicit"
	// ConsentMethodPlatform resolves from a third-party consent platform
	// callback relayed by the hosting page.
	ConsentMethodPlatform ConsentMethod = "platform"
)

// TimeoutAction is what the state machine does when no decision arrives in time.
type TimeoutAction string

const (
	TimeoutActionGrant TimeoutAction = "grant"
	TimeoutActionDeny  TimeoutAction = "deny"
)

// RedisConfig carries connection settings for the Redis-backed stores.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig carries the audit publisher settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Config is the full pipeline configuration. main builds it once from the
// environment and hands slices of it to each component constructor.
type Config struct {
	Addr        string
	EndpointURL string

	// EncryptionKey is the shared 256-bit key as 64 hex characters. Empty
	// disables the token codec and the forwarder sends plain envelopes.
	EncryptionKey string
	// APICredential is the upstream collection credential delivered through
	// the encoder ladder.
	APICredential string
	// IngestSecretHash is a bcrypt hash of the secret producers must present.
	// Empty disables ingest auth.
	IngestSecretHash string

	ConsentMethod  ConsentMethod
	ConsentTimeout time.Duration
	TimeoutAction  TimeoutAction

	QueueTTL         time.Duration
	DedupTTL         time.Duration
	TokenTTL         time.Duration
	SessionIdleGap   time.Duration
	Retention        time.Duration
	ConsentRetention time.Duration

	Redis       RedisConfig
	PostgresDSN string
	Kafka       KafkaConfig

	Debug bool
	// TraceStdout exports finished trace spans to stdout. Off by default;
	// the tracer provider is installed either way.
	TraceStdout bool
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("TAGGING_ADDR", ":8080"),
		EndpointURL:      os.Getenv("TAGGING_ENDPOINT_URL"),
		EncryptionKey:    os.Getenv("TAGGING_ENCRYPTION_KEY"),
		APICredential:    os.Getenv("TAGGING_API_CREDENTIAL"),
		IngestSecretHash: os.Getenv("TAGGING_INGEST_SECRET_HASH"),
		ConsentMethod:    ConsentMethod(envOr("TAGGING_CONSENT_METHOD", string(ConsentMethodExplicit))),
		ConsentTimeout:   time.Duration(envInt("TAGGING_CONSENT_TIMEOUT_SECONDS", 0)) * time.Second,
		TimeoutAction:    TimeoutAction(envOr("TAGGING_CONSENT_TIMEOUT_ACTION", string(TimeoutActionDeny))),
		QueueTTL:         envDuration("TAGGING_QUEUE_TTL", DefaultQueueTTL),
		DedupTTL:         envDuration("TAGGING_DEDUP_TTL", DefaultDedupTTL),
		TokenTTL:         envDuration("TAGGING_TOKEN_TTL", DefaultTokenTTL),
		SessionIdleGap:   DefaultSessionIdleGap,
		Retention:        time.Duration(envInt("TAGGING_RETENTION_HOURS", 24)) * time.Hour,
		ConsentRetention: DefaultConsentRetention,
		PostgresDSN:      os.Getenv("TAGGING_POSTGRES_DSN"),
		Debug:            os.Getenv("TAGGING_DEBUG") == "true",
		TraceStdout:      os.Getenv("TAGGING_TRACE_STDOUT") == "true",
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("TAGGING_REDIS_URL"),
		PoolSize:     envInt("TAGGING_REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("TAGGING_REDIS_MIN_IDLE", 2),
		DialTimeout:  envDuration("TAGGING_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("TAGGING_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("TAGGING_REDIS_WRITE_TIMEOUT", 3*time.Second),
	}

	if brokers := os.Getenv("TAGGING_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka = KafkaConfig{
			Brokers: splitAndTrim(brokers),
			Topic:   envOr("TAGGING_KAFKA_TOPIC", "consent-audit"),
		}
	}

	return cfg
}

// Validate rejects configurations main should refuse to start with.
func (c Config) Validate() error {
	if c.EndpointURL == "" {
		return fmt.Errorf("TAGGING_ENDPOINT_URL is required")
	}
	if c.EncryptionKey != "" {
		raw, err := hex.DecodeString(c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("TAGGING_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("TAGGING_ENCRYPTION_KEY must be 64 hex characters, got %d", len(c.EncryptionKey))
		}
	}
	switch c.TimeoutAction {
	case TimeoutActionGrant, TimeoutActionDeny:
	default:
		return fmt.Errorf("TAGGING_CONSENT_TIMEOUT_ACTION must be grant or deny, got %q", c.TimeoutAction)
	}
	switch c.ConsentMethod {
	case ConsentMethodExplicit, ConsentMethodPlatform:
	default:
		return fmt.Errorf("TAGGING_CONSENT_METHOD must be explicit or platform, got %q", c.ConsentMethod)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
