// Package dedup provides the idempotency ledger that prevents duplicate
// conversion sends (purchases, leads) from the same deployment. Suppression is
// at-most-once and local; nothing here offers cross-device or end-to-end
// exactly-once semantics.
package dedup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/metrics"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

// SendFunc performs the actual conversion send.
type SendFunc func(ctx context.Context) error

// Ledger coordinates check-then-send-then-mark for conversion events. A record
// is written only after a successful send so a failed send stays retryable.
type Ledger struct {
	store   Store
	ttl     time.Duration
	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTTL overrides the 30 minute suppression window.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLedgerClock sets the clock function for testability.
func WithLedgerClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func NewLedger(store Store, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		ttl:    DefaultTTL,
		clock:  time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// ShouldProceed reports whether a conversion send for the key may go ahead.
// Store errors never block a send; losing one suppression beats losing the
// conversion.
func (l *Ledger) ShouldProceed(ctx context.Context, subjectID, channel string) bool {
	record, err := l.store.Find(ctx, subjectID, channel)
	if errors.Is(err, sentinel.ErrNotFound) {
		return true
	}
	if err != nil {
		l.logger.WarnContext(ctx, "dedup lookup failed, allowing send",
			"subject_id", subjectID,
			"channel", channel,
			"error", err.Error(),
		)
		return true
	}
	if !record.Live(l.clock(), l.ttl) {
		// Belt-and-braces for stores without native expiry.
		_ = l.store.Delete(ctx, subjectID, channel)
		return true
	}
	return false
}

// RecordSuccess upserts a fresh suppression record. Call it only after the
// send succeeded.
func (l *Ledger) RecordSuccess(ctx context.Context, subjectID, channel string, metadata map[string]string) error {
	record := Record{
		SubjectID: subjectID,
		Channel:   channel,
		CreatedAt: l.clock(),
		Metadata:  metadata,
	}
	if err := l.store.Save(ctx, record, l.ttl); err != nil {
		l.logger.WarnContext(ctx, "dedup record write failed",
			"subject_id", subjectID,
			"channel", channel,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

// TrackSafely is the one interface conversion producers should use. It checks
// the ledger, invokes send only when no live record exists, and marks success
// afterwards. The returned bool reports whether send actually ran.
func (l *Ledger) TrackSafely(ctx context.Context, subjectID, channel string, metadata map[string]string, send SendFunc) (bool, error) {
	if !l.ShouldProceed(ctx, subjectID, channel) {
		l.logger.DebugContext(ctx, "conversion suppressed by dedup ledger",
			"subject_id", subjectID,
			"channel", channel,
		)
		if l.metrics != nil {
			l.metrics.DedupSuppressed.WithLabelValues(channel).Inc()
		}
		return false, nil
	}
	if err := send(ctx); err != nil {
		return false, err
	}
	_ = l.RecordSuccess(ctx, subjectID, channel, metadata)
	return true, nil
}

// Sweep drops expired records opportunistically. main runs it on a slow timer.
func (l *Ledger) Sweep(ctx context.Context) {
	dropped, err := l.store.Sweep(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "dedup sweep failed", "error", err.Error())
		return
	}
	if dropped > 0 {
		l.logger.DebugContext(ctx, "dedup sweep", "dropped", dropped)
	}
}
