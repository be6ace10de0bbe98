package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore appends audit entries to PostgreSQL through a pgx pool.
//
// Expected schema:
//
//	CREATE TABLE IF NOT EXISTS audit_entries (
//	    id          UUID PRIMARY KEY,
//	    ts          TIMESTAMPTZ NOT NULL,
//	    action      TEXT NOT NULL,
//	    client_id   TEXT NOT NULL DEFAULT '',
//	    event_name  TEXT NOT NULL DEFAULT '',
//	    channel     TEXT NOT NULL DEFAULT '',
//	    consent     TEXT NOT NULL DEFAULT '',
//	    reason      TEXT NOT NULL DEFAULT '',
//	    detail      JSONB
//	);
//	CREATE INDEX IF NOT EXISTS audit_entries_ts_idx ON audit_entries (ts DESC);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. The pool lifecycle is managed by
// the caller.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("audit encode detail: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_entries (id, ts, action, client_id, event_name, channel, consent, reason, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Timestamp, string(entry.Action),
		entry.ClientID, entry.EventName, entry.Channel,
		entry.Consent, entry.Reason, detail,
	)
	if err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, action, client_id, event_name, channel, consent, reason, detail
		FROM audit_entries
		ORDER BY ts DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry  Entry
			action string
			detail []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &action,
			&entry.ClientID, &entry.EventName, &entry.Channel,
			&entry.Consent, &entry.Reason, &detail); err != nil {
			return nil, fmt.Errorf("audit scan: %w", err)
		}
		entry.Action = Action(action)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &entry.Detail); err != nil {
				return nil, fmt.Errorf("audit decode detail: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
