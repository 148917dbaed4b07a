package driven

import (
	"context"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// SearchSessionStore handles search session persistence (Redis or PostgreSQL)
type SearchSessionStore interface {
	// Create stores a new session that expires after ttl.
	// Returns domain.ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, session *domain.SearchSession, ttl time.Duration) error

	// Save overwrites an existing session, keeping it for ttl
	Save(ctx context.Context, session *domain.SearchSession, ttl time.Duration) error

	// Get retrieves a session by ID.
	// Returns domain.ErrSessionNotFound if missing or expired.
	Get(ctx context.Context, id string) (*domain.SearchSession, error)
}
