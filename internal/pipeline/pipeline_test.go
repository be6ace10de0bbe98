package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/consent"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/dedup"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/forwarder"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/metrics"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentEvent struct {
	name   string
	params map[string]any
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentEvent
	err  error
}

func (s *fakeSender) Send(_ context.Context, name string, params map[string]any) (forwarder.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return forwarder.Outcome{Result: forwarder.ResultFailed}, s.err
	}
	s.sent = append(s.sent, sentEvent{name: name, params: params})
	return forwarder.Outcome{Result: forwarder.ResultSent}, nil
}

func (s *fakeSender) DeliverQueued(ctx context.Context, event queue.Event) {
	_, _ = s.Send(ctx, event.Name, event.Params)
}

func (s *fakeSender) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, ev := range s.sent {
		out[i] = ev.name
	}
	return out
}

func (s *fakeSender) events() []sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentEvent(nil), s.sent...)
}

func newTestPipeline(t *testing.T, opts ...consent.MachineOption) (*Pipeline, *consent.Machine, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	machine := consent.NewMachine(consent.NewInMemoryStore(), discardLogger(), opts...)
	q := queue.New(queue.NewInMemoryMirror(), discardLogger(),
		queue.WithSleep(func(context.Context, time.Duration) {}))
	ledger := dedup.NewLedger(dedup.NewInMemoryStore(), discardLogger())
	p := New(machine, q, ledger, sender, discardLogger())
	return p, machine, sender
}

func TestPipeline_PendingEventsFlushInOrderOnGrant(t *testing.T) {
	p, machine, sender := newTestPipeline(t)
	ctx := context.Background()

	assert.False(t, p.ShouldSend("page_view", nil))
	for _, name := range []string{"a", "b", "c"} {
		disposition, err := p.Submit(ctx, Submission{Name: name})
		require.NoError(t, err)
		assert.Equal(t, DispositionQueued, disposition)
	}
	assert.Empty(t, sender.names(), "nothing leaves while pending")

	require.NoError(t, machine.Resolve(ctx, consent.StatusGranted, consent.ReasonButtonClick, "banner"))

	assert.Equal(t, []string{"a", "b", "c"}, sender.names())
	for _, ev := range sender.events() {
		assert.Equal(t, "granted", ev.params["consent_status"])
		assert.Equal(t, "granted", ev.params["analytics_storage"])
	}
}

func TestPipeline_PostResolutionSubmitGoesDirect(t *testing.T) {
	p, machine, sender := newTestPipeline(t)
	ctx := context.Background()

	require.NoError(t, machine.Resolve(ctx, consent.StatusGranted, consent.ReasonButtonClick, "banner"))
	require.True(t, p.ShouldSend("page_view", nil))

	disposition, err := p.Submit(ctx, Submission{Name: "page_view", Params: map[string]any{"page_location": "/"}})
	require.NoError(t, err)
	assert.Equal(t, DispositionSent, disposition)

	events := sender.events()
	require.Len(t, events, 1)
	assert.Equal(t, "/", events[0].params["page_location"])
	assert.Equal(t, string(consent.ReasonButtonClick), events[0].params["consent_reason"])
}

func TestPipeline_RepeatedResolutionFlushesOnce(t *testing.T) {
	p, machine, sender := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Submit(ctx, Submission{Name: "a"})
	require.NoError(t, err)

	require.NoError(t, machine.Resolve(ctx, consent.StatusGranted, consent.ReasonButtonClick, "banner"))
	require.NoError(t, machine.Resolve(ctx, consent.StatusGranted, consent.ReasonButtonClick, "banner"))

	assert.Equal(t, []string{"a"}, sender.names(), "repeat resolutions must not replay the queue")
}

func TestPipeline_OppositeFlipDoesNotReplayQueue(t *testing.T) {
	p, machine, sender := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Submit(ctx, Submission{Name: "a"})
	require.NoError(t, err)

	require.NoError(t, machine.Resolve(ctx, consent.StatusDenied, consent.ReasonButtonClick, "banner"))
	require.NoError(t, machine.Resolve(ctx, consent.StatusGranted, consent.ReasonButtonClick, "banner"))

	names := sender.names()
	assert.Equal(t, []string{"a"}, names, "flip must republish the decision, not the events")

	events := sender.events()
	assert.Equal(t, "denied", events[0].params["consent_status"], "flush uses the decision that triggered it")
}

func TestPipeline_TimeoutDeliversQueuedWithAutomaticDelay(t *testing.T) {
	p, machine, sender := newTestPipeline(t,
		consent.WithTimeout(30*time.Millisecond, consent.StatusDenied))
	ctx := context.Background()

	for _, name := range []string{"view_item", "add_to_cart"} {
		_, err := p.Submit(ctx, Submission{Name: name})
		require.NoError(t, err)
	}
	require.NoError(t, machine.Start(ctx))

	require.Eventually(t, func() bool { return len(sender.names()) == 2 }, time.Second, 5*time.Millisecond)

	for _, ev := range sender.events() {
		assert.Equal(t, "automatic_delay", ev.params["consent_reason"])
		assert.Equal(t, "denied", ev.params["analytics_storage"])
	}
}

func TestPipeline_TrackSafelySuppressesDuplicates(t *testing.T) {
	p, machine, sender := newTestPipeline(t)
	ctx := context.Background()
	require.NoError(t, machine.Resolve(ctx, consent.StatusGranted, consent.ReasonButtonClick, "banner"))

	sub := Submission{Name: "purchase", Params: map[string]any{"transaction_id": "123"}}

	sent, err := p.TrackSafely(ctx, "123", "ga4", sub)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = p.TrackSafely(ctx, "123", "ga4", sub)
	require.NoError(t, err)
	assert.False(t, sent, "second conversion within the window is suppressed")

	assert.Len(t, sender.names(), 1)
}

func TestPipeline_TrackSafelyFailedSendStaysRetryable(t *testing.T) {
	p, machine, sender := newTestPipeline(t)
	ctx := context.Background()
	require.NoError(t, machine.Resolve(ctx, consent.StatusGranted, consent.ReasonButtonClick, "banner"))

	sender.mu.Lock()
	sender.err = errors.New("endpoint down")
	sender.mu.Unlock()

	sub := Submission{Name: "purchase"}
	sent, err := p.TrackSafely(ctx, "123", "ga4", sub)
	require.Error(t, err)
	assert.False(t, sent)

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()

	sent, err = p.TrackSafely(ctx, "123", "ga4", sub)
	require.NoError(t, err)
	assert.True(t, sent, "a failed send must not burn the dedup window")
}

func TestPipeline_TrackSafelyWhilePendingQueuesWithoutDedupRecord(t *testing.T) {
	p, machine, sender := newTestPipeline(t)
	ctx := context.Background()

	sent, err := p.TrackSafely(ctx, "123", "ga4", Submission{Name: "purchase"})
	require.NoError(t, err)
	assert.True(t, sent, "queued counts as handled for the producer")
	assert.Empty(t, sender.names())

	// Resolution delivers the queued conversion; a later duplicate is a
	// fresh ledger decision because no record was written for the queued one.
	require.NoError(t, machine.Resolve(ctx, consent.StatusGranted, consent.ReasonButtonClick, "banner"))
	assert.Equal(t, []string{"purchase"}, sender.names())
}

func TestPipeline_QueuedEventCountedOnce(t *testing.T) {
	m := metrics.NewWith(prometheus.NewRegistry())
	sender := &fakeSender{}
	machine := consent.NewMachine(consent.NewInMemoryStore(), discardLogger())
	q := queue.New(queue.NewInMemoryMirror(), discardLogger(),
		queue.WithSleep(func(context.Context, time.Duration) {}),
		queue.WithMetrics(m))
	ledger := dedup.NewLedger(dedup.NewInMemoryStore(), discardLogger())
	p := New(machine, q, ledger, sender, discardLogger(), WithMetrics(m))

	_, err := p.Submit(context.Background(), Submission{Name: "page_view"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.EventsQueued))
}
