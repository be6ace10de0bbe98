package queue

import (
	"context"
	"sync"
)

// InMemoryMirror keeps the mirrored queue in process memory. It is what the
// pipeline degrades to when the durable backend fails, and the default in
// tests.
type InMemoryMirror struct {
	mu     sync.Mutex
	events []Event
}

func NewInMemoryMirror() *InMemoryMirror {
	return &InMemoryMirror{}
}

func (m *InMemoryMirror) Save(_ context.Context, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append([]Event(nil), events...)
	return nil
}

func (m *InMemoryMirror) Load(_ context.Context) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...), nil
}

func (m *InMemoryMirror) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	return nil
}
