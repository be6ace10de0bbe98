package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func instantSleep(sleeps *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) {
		*sleeps = append(*sleeps, d)
	}
}

func TestQueue_FlushPreservesOrderWithPacing(t *testing.T) {
	var sleeps []time.Duration
	q := New(NewInMemoryMirror(), discardLogger(), WithSleep(instantSleep(&sleeps)))
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		q.Enqueue(ctx, Event{Name: name, Params: map[string]any{}})
	}
	require.Equal(t, 3, q.Len())

	var delivered []string
	n, err := q.Flush(ctx, func(ctx context.Context, event Event) {
		delivered = append(delivered, event.Name)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, delivered)
	// Base delay before the first item, increment between the rest.
	assert.Equal(t, []time.Duration{DefaultFlushBaseDelay, DefaultFlushIncrement, DefaultFlushIncrement}, sleeps)
	assert.Zero(t, q.Len())
}

func TestQueue_FlushIsSingleShot(t *testing.T) {
	var sleeps []time.Duration
	q := New(NewInMemoryMirror(), discardLogger(), WithSleep(instantSleep(&sleeps)))
	ctx := context.Background()

	q.Enqueue(ctx, Event{Name: "a"})

	deliveries := 0
	_, err := q.Flush(ctx, func(ctx context.Context, event Event) { deliveries++ })
	require.NoError(t, err)
	require.Equal(t, 1, deliveries)

	// An opposite consent flip later must not re-drain the queue.
	_, err = q.Flush(ctx, func(ctx context.Context, event Event) { deliveries++ })
	assert.ErrorIs(t, err, sentinel.ErrAlreadyFlushed)
	assert.Equal(t, 1, deliveries)
	assert.True(t, q.Flushed())
}

func TestQueue_FlushClearsMirrorBeforeDelivery(t *testing.T) {
	mirror := NewInMemoryMirror()
	var sleeps []time.Duration
	q := New(mirror, discardLogger(), WithSleep(instantSleep(&sleeps)))
	ctx := context.Background()

	q.Enqueue(ctx, Event{Name: "a"})

	_, err := q.Flush(ctx, func(ctx context.Context, event Event) {
		// By delivery time the mirror is already empty; a crash mid-flush
		// must not replay the snapshot.
		mirrored, loadErr := mirror.Load(ctx)
		require.NoError(t, loadErr)
		assert.Empty(t, mirrored)
	})
	require.NoError(t, err)
}

func TestQueue_EnqueueDuringFlushLandsInFreshQueue(t *testing.T) {
	q := New(NewInMemoryMirror(), discardLogger(), WithSleep(func(ctx context.Context, d time.Duration) {}))
	ctx := context.Background()

	q.Enqueue(ctx, Event{Name: "a"})

	var delivered []string
	_, err := q.Flush(ctx, func(ctx context.Context, event Event) {
		delivered = append(delivered, event.Name)
		if event.Name == "a" {
			// Simulates a producer racing the flush window.
			q.Enqueue(ctx, Event{Name: "late"})
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, delivered)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_RestoreEvictsStaleEvents(t *testing.T) {
	now := time.Now()
	mirror := NewInMemoryMirror()
	ctx := context.Background()

	require.NoError(t, mirror.Save(ctx, []Event{
		{Name: "stale", EnqueuedAt: now.Add(-2 * time.Hour)},
		{Name: "fresh", EnqueuedAt: now.Add(-time.Minute)},
	}))

	q := New(mirror, discardLogger(), WithClock(func() time.Time { return now }))
	require.NoError(t, q.Restore(ctx))

	assert.Equal(t, 1, q.Len())

	// Self-healing: the filtered result is re-persisted.
	mirrored, err := mirror.Load(ctx)
	require.NoError(t, err)
	require.Len(t, mirrored, 1)
	assert.Equal(t, "fresh", mirrored[0].Name)
}

func TestQueue_DegradesToMemoryOnMirrorFailure(t *testing.T) {
	q := New(failingMirror{}, discardLogger(), WithSleep(func(ctx context.Context, d time.Duration) {}))
	ctx := context.Background()

	// Enqueue must survive the mirror failure.
	q.Enqueue(ctx, Event{Name: "a"})
	q.Enqueue(ctx, Event{Name: "b"})
	require.Equal(t, 2, q.Len())

	var delivered []string
	n, err := q.Flush(ctx, func(ctx context.Context, event Event) {
		delivered = append(delivered, event.Name)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, delivered)
}

func TestQueue_FlushStopsOnCancelledContext(t *testing.T) {
	q := New(nil, discardLogger(), WithSleep(func(ctx context.Context, d time.Duration) {}))
	ctx, cancel := context.WithCancel(context.Background())

	q.Enqueue(ctx, Event{Name: "a"})
	q.Enqueue(ctx, Event{Name: "b"})

	delivered := 0
	n, err := q.Flush(ctx, func(ctx context.Context, event Event) {
		delivered++
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, delivered)
}

type failingMirror struct{}

func (failingMirror) Save(context.Context, []Event) error { return errors.New("quota exceeded") }
func (failingMirror) Load(context.Context) ([]Event, error) {
	return nil, errors.New("quota exceeded")
}
func (failingMirror) Clear(context.Context) error { return errors.New("quota exceeded") }
