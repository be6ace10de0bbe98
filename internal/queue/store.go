package queue

import "context"

// MirrorStore is the durable copy of the pending queue. The in-memory slice is
// authoritative; the mirror exists so a restart before resolution does not
// lose events.
type MirrorStore interface {
	// Save replaces the mirrored queue wholesale.
	Save(ctx context.Context, events []Event) error
	// Load returns the mirrored queue; an absent mirror is an empty queue.
	Load(ctx context.Context) ([]Event, error)
	// Clear removes the mirror.
	Clear(ctx context.Context) error
}
