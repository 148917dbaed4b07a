package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ResultStore = (*ResultStore)(nil)

// ResultStore implements driven.ResultStore using PostgreSQL.
// A row is one upserted payload, so readers see whole payloads only.
// Age is judged against stored_at on every read; PurgeExpired removes the rows.
type ResultStore struct {
	db  *DB
	ttl time.Duration
}

// NewResultStore creates a ResultStore whose entries are absent after ttl
func NewResultStore(db *DB, ttl time.Duration) *ResultStore {
	return &ResultStore{db: db, ttl: ttl}
}

// Put upserts the payload for sessionID and restamps stored_at
func (s *ResultStore) Put(ctx context.Context, sessionID string, payload *domain.ResultPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO search_results (session_id, payload, stored_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			stored_at = EXCLUDED.stored_at
	`
	if _, err := s.db.ExecContext(ctx, query, sessionID, data, time.Now()); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// Get returns the payload for sessionID if it was stored within the TTL
func (s *ResultStore) Get(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM search_results WHERE session_id = $1 AND stored_at > $2`,
		sessionID, time.Now().Add(-s.ttl),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get result: %w", err)
	}

	var payload domain.ResultPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &payload, true, nil
}

// PurgeExpired deletes rows older than the TTL
func (s *ResultStore) PurgeExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM search_results WHERE stored_at <= $1`, time.Now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to purge results: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}
