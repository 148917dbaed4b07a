package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RegistrationStore = (*RegistrationStore)(nil)

const registrationColumns = `r.id, r.deployment, r.agent_id, r.content_handle, r.provider, r.model,
	r.snapshot_digest, r.record_count, r.superseded_id, r.created_at`

// RegistrationStore implements driven.RegistrationStore.
// Versions are inserted once into agent_registrations and never updated;
// active_registrations holds the single mutable pointer per deployment.
type RegistrationStore struct {
	db *DB
}

// NewRegistrationStore creates a new RegistrationStore
func NewRegistrationStore(db *DB) *RegistrationStore {
	return &RegistrationStore{db: db}
}

// Activate inserts reg and swaps the deployment's active pointer in one transaction.
// The pointer row is locked first so concurrent activations serialize.
func (s *RegistrationStore) Activate(ctx context.Context, reg *domain.AgentRegistration) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var previous sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT registration_id FROM active_registrations WHERE deployment = $1 FOR UPDATE`,
			reg.Deployment,
		).Scan(&previous)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to read active registration: %w", err)
		}
		reg.SupersededID = previous.String

		_, err = tx.ExecContext(ctx, `
			INSERT INTO agent_registrations (
				id, deployment, agent_id, content_handle, provider, model,
				snapshot_digest, record_count, superseded_id, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			reg.ID,
			reg.Deployment,
			reg.AgentID,
			reg.ContentHandle,
			string(reg.Provider),
			reg.Model,
			reg.SnapshotDigest,
			reg.RecordCount,
			nullIfEmpty(reg.SupersededID),
			reg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert registration: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO active_registrations (deployment, registration_id, activated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (deployment) DO UPDATE SET
				registration_id = EXCLUDED.registration_id,
				activated_at = EXCLUDED.activated_at
		`, reg.Deployment, reg.ID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to activate registration: %w", err)
		}
		return nil
	})
}

// Active returns the deployment's active registration
func (s *RegistrationStore) Active(ctx context.Context, deployment string) (*domain.AgentRegistration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM active_registrations a
		JOIN agent_registrations r ON r.id = a.registration_id
		WHERE a.deployment = $1
	`
	reg, err := scanRegistration(s.db.QueryRowContext(ctx, query, deployment))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoActiveAgent
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active registration: %w", err)
	}
	return reg, nil
}

// History lists a deployment's registrations, newest first
func (s *RegistrationStore) History(ctx context.Context, deployment string, limit int) ([]*domain.AgentRegistration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM agent_registrations r
		WHERE r.deployment = $1
		ORDER BY r.created_at DESC
	`
	args := []any{deployment}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var regs []*domain.AgentRegistration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registrations: %w", err)
	}
	return regs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*domain.AgentRegistration, error) {
	var reg domain.AgentRegistration
	var superseded sql.NullString
	err := row.Scan(
		&reg.ID,
		&reg.Deployment,
		&reg.AgentID,
		&reg.ContentHandle,
		&reg.Provider,
		&reg.Model,
		&reg.SnapshotDigest,
		&reg.RecordCount,
		&superseded,
		&reg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	reg.SupersededID = superseded.String
	return &reg, nil
}
