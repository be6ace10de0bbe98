package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const mirrorKey = "queue:pending"

// RedisMirror persists the queue as one JSON blob under a TTL-bounded key.
// The whole-queue write matches how the queue mutates: every enqueue rewrites
// the mirror, and a flush clears it in one step.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMirror constructs a Redis-backed queue mirror. ttl caps how long an
// unresolved queue can linger; the restore filter still prunes per event.
func NewRedisMirror(client *redis.Client, ttl time.Duration) *RedisMirror {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisMirror{client: client, ttl: ttl}
}

func (m *RedisMirror) Save(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return m.Clear(ctx)
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("queue mirror encode: %w", err)
	}
	return m.client.Set(ctx, mirrorKey, raw, m.ttl).Err()
}

func (m *RedisMirror) Load(ctx context.Context) ([]Event, error) {
	raw, err := m.client.Get(ctx, mirrorKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue mirror load: %w", err)
	}
	var events []Event
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("queue mirror decode: %w", err)
	}
	return events, nil
}

func (m *RedisMirror) Clear(ctx context.Context) error {
	return m.client.Del(ctx, mirrorKey).Err()
}
