// Package queue holds events whose delivery is blocked on a pending consent
// decision. The queue is ordered, mirrored to durable storage, TTL-pruned on
// restore, and drained at most once.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/metrics"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

// DeliverFunc sends one drained event through the same path a direct send
// would have taken. Delivery errors are terminal for that event.
type DeliverFunc func(ctx context.Context, event Event)

// SleepFunc paces flush delivery; injected so tests run instantly.
type SleepFunc func(ctx context.Context, d time.Duration)

// Queue is the consent-gated holding area. All methods are safe for
// concurrent use.
type Queue struct {
	mirror  MirrorStore
	ttl     time.Duration
	base    time.Duration
	incr    time.Duration
	clock   func() time.Time
	sleep   SleepFunc
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	events   []Event
	flushed  bool
	degraded bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithTTL overrides the 1 hour eviction window.
func WithTTL(ttl time.Duration) Option {
	return func(q *Queue) {
		if ttl > 0 {
			q.ttl = ttl
		}
	}
}

// WithPacing overrides the flush base delay and per-item increment.
func WithPacing(base, increment time.Duration) Option {
	return func(q *Queue) {
		q.base = base
		q.incr = increment
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(q *Queue) {
		if clock != nil {
			q.clock = clock
		}
	}
}

// WithSleep sets the pacing sleep function for testability.
func WithSleep(sleep SleepFunc) Option {
	return func(q *Queue) {
		if sleep != nil {
			q.sleep = sleep
		}
	}
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// New builds a Queue over the given mirror. mirror may be nil for a purely
// in-memory queue.
func New(mirror MirrorStore, logger *slog.Logger, opts ...Option) *Queue {
	q := &Queue{
		mirror: mirror,
		ttl:    DefaultTTL,
		base:   DefaultFlushBaseDelay,
		incr:   DefaultFlushIncrement,
		clock:  time.Now,
		sleep:  defaultSleep,
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

func defaultSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Enqueue appends the event and synchronously rewrites the durable mirror so
// a restart before resolution does not lose it.
func (q *Queue) Enqueue(ctx context.Context, event Event) {
	if event.EnqueuedAt.IsZero() {
		event.EnqueuedAt = q.clock()
	}

	q.mu.Lock()
	q.events = append(q.events, event)
	snapshot := append([]Event(nil), q.events...)
	q.mu.Unlock()

	q.persist(ctx, snapshot)
	if q.metrics != nil {
		q.metrics.EventsQueued.Inc()
	}
	q.logger.DebugContext(ctx, "event queued pending consent",
		"event", event.Name,
		"depth", len(snapshot),
	)
}

// Restore reads the mirror back after a restart, drops entries older than the
// eviction TTL, adopts the rest, and re-persists the filtered result.
func (q *Queue) Restore(ctx context.Context) error {
	if q.mirror == nil {
		return nil
	}
	mirrored, err := q.mirror.Load(ctx)
	if err != nil {
		q.degrade(ctx, err)
		return fmt.Errorf("queue restore: %w", err)
	}

	now := q.clock()
	kept := make([]Event, 0, len(mirrored))
	evicted := 0
	for _, event := range mirrored {
		if event.Expired(now, q.ttl) {
			evicted++
			continue
		}
		kept = append(kept, event)
	}

	q.mu.Lock()
	q.events = kept
	q.mu.Unlock()

	if evicted > 0 {
		if q.metrics != nil {
			q.metrics.QueueEvicted.Add(float64(evicted))
		}
		q.logger.DebugContext(ctx, "queue restore evicted stale events",
			"evicted", evicted,
			"kept", len(kept),
		)
	}
	q.persist(ctx, kept)
	return nil
}

// Flush drains the queue exactly once. The snapshot is taken and the live
// queue plus its mirror are cleared before any delivery starts, so enqueues
// arriving during the flush window land in a fresh queue rather than being
// lost or duplicated. A second call returns sentinel.ErrAlreadyFlushed.
func (q *Queue) Flush(ctx context.Context, deliver DeliverFunc) (int, error) {
	q.mu.Lock()
	if q.flushed {
		q.mu.Unlock()
		return 0, sentinel.ErrAlreadyFlushed
	}
	q.flushed = true
	snapshot := q.events
	q.events = nil
	q.mu.Unlock()

	if q.mirror != nil && !q.degraded {
		if err := q.mirror.Clear(ctx); err != nil {
			q.degrade(ctx, err)
		}
	}

	if q.metrics != nil {
		q.metrics.Flushes.Inc()
		q.metrics.FlushBatchSize.Observe(float64(len(snapshot)))
	}

	for i, event := range snapshot {
		if i == 0 {
			q.sleep(ctx, q.base)
		} else {
			q.sleep(ctx, q.incr)
		}
		if ctx.Err() != nil {
			return i, ctx.Err()
		}
		deliver(ctx, event)
	}
	return len(snapshot), nil
}

// Flushed reports whether the queue has already been drained.
func (q *Queue) Flushed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.flushed
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// persist mirrors the snapshot, degrading to memory-only on failure. The
// degradation is one-way for the process lifetime and logged once.
func (q *Queue) persist(ctx context.Context, snapshot []Event) {
	if q.mirror == nil || q.degraded {
		return
	}
	if err := q.mirror.Save(ctx, snapshot); err != nil {
		q.degrade(ctx, err)
	}
}

func (q *Queue) degrade(ctx context.Context, err error) {
	q.mu.Lock()
	already := q.degraded
	q.degraded = true
	q.mu.Unlock()
	if !already {
		q.logger.WarnContext(ctx, "queue mirror unavailable, continuing in memory only",
			"error", err.Error(),
		)
	}
}
