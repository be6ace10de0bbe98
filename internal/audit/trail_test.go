package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrail_RecordStampsEntry(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	trail := NewTrail(discardLogger(), 4, WithTrailClock(func() time.Time { return now }))

	trail.Record(Entry{Action: ActionEventSent, EventName: "purchase"})

	entry := <-trail.Inbox()
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, now, entry.Timestamp)
	assert.Equal(t, ActionEventSent, entry.Action)
}

func TestTrail_RecordDropsWhenBufferFull(t *testing.T) {
	trail := NewTrail(discardLogger(), 1)

	trail.Record(Entry{Action: ActionEventSent})
	trail.Record(Entry{Action: ActionEventSuppressed})

	assert.Len(t, trail.Inbox(), 1, "second record must be dropped, not block")
}

func TestWorker_PersistsAndPublishes(t *testing.T) {
	store := NewInMemoryStore(16)
	sink := &captureSink{}
	trail := NewTrail(discardLogger(), 16)
	worker := NewWorker(store, sink, trail.Inbox(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	trail.Record(Entry{Action: ActionConsentResolved, Consent: "granted"})
	trail.Record(Entry{Action: ActionQueueFlushed})

	require.Eventually(t, func() bool {
		entries, err := store.List(context.Background(), 0)
		return err == nil && len(entries) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, sink.published, 2)
}

func TestWorker_StoreFailureDoesNotStopDrain(t *testing.T) {
	store := &failingAuditStore{}
	trail := NewTrail(discardLogger(), 16)
	worker := NewWorker(store, nil, trail.Inbox(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	trail.Record(Entry{Action: ActionEventSent})
	trail.Record(Entry{Action: ActionEventSent})

	require.Eventually(t, func() bool { return store.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWorker_DrainsBufferOnShutdown(t *testing.T) {
	store := NewInMemoryStore(16)
	trail := NewTrail(discardLogger(), 16)
	worker := NewWorker(store, nil, trail.Inbox(), discardLogger())

	trail.Record(Entry{Action: ActionEventSent})
	trail.Record(Entry{Action: ActionEventSuppressed})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, worker.Run(ctx), context.Canceled)

	entries, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "buffered entries must survive shutdown")
}

func TestInMemoryStore_BoundedNewestFirst(t *testing.T) {
	store := NewInMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Entry{ID: "a"}))
	require.NoError(t, store.Append(ctx, Entry{ID: "b"}))
	require.NoError(t, store.Append(ctx, Entry{ID: "c"}))

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
}

type failingAuditStore struct {
	calls atomic.Int32
}

func (s *failingAuditStore) Append(context.Context, Entry) error {
	s.calls.Add(1)
	return errors.New("audit storage down")
}

func (s *failingAuditStore) List(context.Context, int) ([]Entry, error) {
	return nil, errors.New("audit storage down")
}

type captureSink struct {
	published []Entry
}

func (s *captureSink) Publish(_ context.Context, entry Entry) error {
	s.published = append(s.published, entry)
	return nil
}

func (s *captureSink) Close() {}
