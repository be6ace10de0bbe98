package identity

import "context"

// Store persists the identity record under the operational retention window.
type Store interface {
	// Load returns the record or sentinel.ErrNotFound on first visit.
	Load(ctx context.Context) (Record, error)
	// Save upserts the record, refreshing its retention.
	Save(ctx context.Context, record Record) error
}
