package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

var lookupDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "tagging_dedup_lookup_duration_ms",
	Help:    "Latency of dedup record lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const recordKeyPrefix = "dedup:"

// RedisStore is the Redis-backed dedup store. Native key expiry does the
// eviction, so suppression windows survive process restarts for free.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed dedup store. The client lifecycle is
// managed externally.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Find(ctx context.Context, subjectID, channel string) (Record, error) {
	start := time.Now()
	defer func() {
		lookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	raw, err := s.client.Get(ctx, recordKeyPrefix+Key(subjectID, channel)).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("dedup find: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return Record{}, fmt.Errorf("dedup decode: %w", err)
	}
	return record, nil
}

func (s *RedisStore) Save(ctx context.Context, record Record, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("dedup encode: %w", err)
	}
	return s.client.Set(ctx, recordKeyPrefix+Key(record.SubjectID, record.Channel), raw, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, subjectID, channel string) error {
	return s.client.Del(ctx, recordKeyPrefix+Key(subjectID, channel)).Err()
}

// Sweep is a no-op: Redis expires records server-side.
func (s *RedisStore) Sweep(_ context.Context) (int, error) {
	return 0, nil
}
