package consent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

// PostgresStore persists the decision in PostgreSQL for deployments that need
// the compliance retention to survive cache flushes. One row per deployment.
//
// Expected schema:
//
//	CREATE TABLE IF NOT EXISTS consent_decisions (
//	    id          INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
//	    status      TEXT NOT NULL,
//	    categories  JSONB NOT NULL,
//	    reason      TEXT NOT NULL DEFAULT '',
//	    source      TEXT NOT NULL DEFAULT '',
//	    decided_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresClock sets the clock function for testability.
func WithPostgresClock(clock func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgresStore constructs a PostgreSQL-backed consent store. The db
// lifecycle is managed externally.
func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:    db,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *PostgresStore) Save(ctx context.Context, decision Decision) error {
	categories, err := json.Marshal(decision.Categories)
	if err != nil {
		return fmt.Errorf("consent encode categories: %w", err)
	}
	query := `
		INSERT INTO consent_decisions (id, status, categories, reason, source, decided_at, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			categories = EXCLUDED.categories,
			reason = EXCLUDED.reason,
			source = EXCLUDED.source,
			decided_at = EXCLUDED.decided_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		string(decision.Status), categories, string(decision.Reason),
		decision.Source, decision.DecidedAt, s.clock(),
	)
	if err != nil {
		return fmt.Errorf("consent save: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (Decision, error) {
	query := `
		SELECT status, categories, reason, source, decided_at
		FROM consent_decisions
		WHERE id = 1
	`
	var (
		decision   Decision
		status     string
		reason     string
		categories []byte
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&status, &categories, &reason, &decision.Source, &decision.DecidedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Decision{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Decision{}, fmt.Errorf("consent load: %w", err)
	}
	decision.Status = Status(status)
	decision.Reason = Reason(reason)
	if err := json.Unmarshal(categories, &decision.Categories); err != nil {
		return Decision{}, fmt.Errorf("consent decode categories: %w", err)
	}
	return decision, nil
}
