package audit

import "context"

// Store is an append-only audit sink with bounded read-back for operators.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
}
