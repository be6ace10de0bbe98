package dedup

import (
	"context"
	"time"
)

// Store persists dedup records. Implementations must treat an expired record
// as absent; how eagerly it is removed is an implementation detail.
type Store interface {
	// Find returns the live record for the key or sentinel.ErrNotFound.
	Find(ctx context.Context, subjectID, channel string) (Record, error)
	// Save upserts a fresh record with the given TTL.
	Save(ctx context.Context, record Record, ttl time.Duration) error
	// Delete removes a record; deleting an absent record is not an error.
	Delete(ctx context.Context, subjectID, channel string) error
	// Sweep opportunistically removes expired records, returning how many
	// were dropped. Backends with native TTL may report zero.
	Sweep(ctx context.Context) (int, error)
}
