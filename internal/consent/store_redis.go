package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

const (
	decisionKey = "consent:decision"
	signalKey   = "consent:signal"
)

// RedisStore persists the decision under the long consent retention window.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) Save(ctx context.Context, decision Decision) error {
	raw, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("consent encode: %w", err)
	}
	return s.client.Set(ctx, decisionKey, raw, s.retention).Err()
}

func (s *RedisStore) Load(ctx context.Context) (Decision, error) {
	raw, err := s.client.Get(ctx, decisionKey).Result()
	if errors.Is(err, redis.Nil) {
		return Decision{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Decision{}, fmt.Errorf("consent load: %w", err)
	}
	var decision Decision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return Decision{}, fmt.Errorf("consent decode: %w", err)
	}
	return decision, nil
}

// RedisSignalSource reads the raw consent hint external consent tooling may
// drop at "consent:signal". It feeds the passive scan path.
type RedisSignalSource struct {
	client *redis.Client
}

func NewRedisSignalSource(client *redis.Client) *RedisSignalSource {
	return &RedisSignalSource{client: client}
}

func (s *RedisSignalSource) Name() string { return "redis_signal" }

func (s *RedisSignalSource) Read(ctx context.Context) (string, error) {
	raw, err := s.client.Get(ctx, signalKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return raw, err
}
