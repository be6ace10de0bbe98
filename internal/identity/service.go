// Package identity maintains the per-origin client record: client and session
// identifiers, visit history, last-touch attribution, and cached geolocation.
// Other components read it; nothing here gates delivery.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

// Service owns the identity record lifecycle. Two concurrent touches can race
// on read-modify-write; last write wins, which at worst costs one duplicate
// session rotation, never a consent guarantee.
type Service struct {
	store    Store
	fallback *InMemoryStore
	idleGap  time.Duration
	clock    func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	degraded bool
}

// Option configures a Service.
type Option func(*Service)

// WithIdleGap overrides the 30 minute session boundary.
func WithIdleGap(gap time.Duration) Option {
	return func(s *Service) {
		if gap > 0 {
			s.idleGap = gap
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		fallback: NewInMemoryStore(),
		idleGap:  DefaultIdleGap,
		clock:    time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Touch runs the session-boundary check for a page load and applies any
// attribution it carried. First visit mints the record; an idle gap at or
// beyond the boundary rotates the session.
func (s *Service) Touch(ctx context.Context, attribution Attribution) (Record, error) {
	now := s.clock()

	record, err := s.load(ctx)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		record = Record{
			ClientID:     uuid.NewString(),
			SessionID:    uuid.NewString(),
			SessionStart: now,
			SessionCount: 1,
			FirstVisitAt: now,
		}
	case err != nil:
		return Record{}, err
	default:
		if now.Sub(record.LastSeenAt) >= s.idleGap {
			record.SessionID = uuid.NewString()
			record.SessionStart = now
			record.SessionCount++
			s.logger.DebugContext(ctx, "session rotated",
				"session_count", record.SessionCount,
			)
		}
	}

	if !attribution.Empty() {
		record.LastTouch = attribution
	}
	record.LastSeenAt = now

	if err := s.save(ctx, record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// Current returns the record without mutating it.
func (s *Service) Current(ctx context.Context) (Record, error) {
	return s.load(ctx)
}

// CacheGeo stores a geolocation produced by an external lookup.
func (s *Service) CacheGeo(ctx context.Context, geo Geo) error {
	record, err := s.load(ctx)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		record = Record{}
	}
	record.CachedGeo = &geo
	return s.save(ctx, record)
}

func (s *Service) load(ctx context.Context) (Record, error) {
	record, err := s.active().Load(ctx)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.degrade(ctx, err)
		return s.fallback.Load(ctx)
	}
	return record, err
}

func (s *Service) save(ctx context.Context, record Record) error {
	if err := s.active().Save(ctx, record); err != nil {
		s.degrade(ctx, err)
		return s.fallback.Save(ctx, record)
	}
	return nil
}

// active returns the store to use, honoring a one-way in-memory degradation
// for the process lifetime.
func (s *Service) active() Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded || s.store == nil {
		return s.fallback
	}
	return s.store
}

func (s *Service) degrade(ctx context.Context, err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()
	if !already {
		s.logger.WarnContext(ctx, "identity store unavailable, continuing in memory only",
			"error", err.Error(),
		)
	}
}
