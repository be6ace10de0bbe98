package consent

import (
	"context"
	"sync"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

// InMemoryStore keeps the decision in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	decision *Decision
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, decision Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decision = &decision
	return nil
}

func (s *InMemoryStore) Load(_ context.Context) (Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.decision == nil {
		return Decision{}, sentinel.ErrNotFound
	}
	return *s.decision, nil
}
