package identity

import (
	"context"
	"sync"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

// InMemoryStore holds the identity record in process memory, for tests and
// for degraded operation when the durable backend fails.
type InMemoryStore struct {
	mu     sync.RWMutex
	record *Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return Record{}, sentinel.ErrNotFound
	}
	return *s.record, nil
}

func (s *InMemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = &record
	return nil
}
