package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

// InMemoryStore keeps dedup records in a map with lazy eviction on read. It is
// the fallback when Redis is not configured and the workhorse in tests.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]entry
	clock   func() time.Time
}

type entry struct {
	record    Record
	expiresAt time.Time
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		records: make(map[string]entry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *InMemoryStore) Find(_ context.Context, subjectID, channel string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key(subjectID, channel)
	e, ok := s.records[key]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	if !s.clock().Before(e.expiresAt) {
		// Lazy eviction: an expired record is deleted on read and treated
		// as absent.
		delete(s.records, key)
		return Record{}, sentinel.ErrNotFound
	}
	return e.record, nil
}

func (s *InMemoryStore) Save(_ context.Context, record Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[Key(record.SubjectID, record.Channel)] = entry{
		record:    record,
		expiresAt: s.clock().Add(ttl),
	}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, subjectID, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, Key(subjectID, channel))
	return nil
}

func (s *InMemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	dropped := 0
	for key, e := range s.records {
		if !now.Before(e.expiresAt) {
			delete(s.records, key)
			dropped++
		}
	}
	return dropped, nil
}
