package audit

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Trail is the emit side of the audit pipeline. Records go through a
// buffered channel so domain code never blocks on the store or the sink;
// when the buffer is full the entry is dropped and counted in logs, because
// audit must not back-pressure event delivery.
type Trail struct {
	inbox  chan Entry
	logger *slog.Logger
	clock  func() time.Time
}

// TrailOption configures a Trail.
type TrailOption func(*Trail)

// WithTrailClock sets the clock function for testability.
func WithTrailClock(clock func() time.Time) TrailOption {
	return func(t *Trail) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTrail builds a trail with the given buffer size (default 256 when
// non-positive).
func NewTrail(logger *slog.Logger, buffer int, opts ...TrailOption) *Trail {
	if buffer <= 0 {
		buffer = 256
	}
	t := &Trail{
		inbox:  make(chan Entry, buffer),
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Inbox exposes the consume side for the worker.
func (t *Trail) Inbox() <-chan Entry { return t.inbox }

// Record stamps and enqueues an entry without blocking.
func (t *Trail) Record(entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = t.clock()
	}
	select {
	case t.inbox <- entry:
	default:
		t.logger.Warn("audit buffer full, dropping entry",
			slog.String("action", string(entry.Action)),
			slog.String("event", entry.EventName))
	}
}
