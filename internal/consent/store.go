package consent

import "context"

// Store persists the authoritative decision. Retention here is independent of
// and much longer than every other store (about a year) for compliance.
type Store interface {
	// Save upserts the decision.
	Save(ctx context.Context, decision Decision) error
	// Load returns the persisted decision or sentinel.ErrNotFound when no
	// decision has ever been made.
	Load(ctx context.Context) (Decision, error)
}
