package driven

import (
	"context"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// RegistrationStore keeps versioned agent registrations with one active pointer per deployment
type RegistrationStore interface {
	// Activate records reg as a new version and makes it the active registration
	// for reg.Deployment in one atomic step. SupersededID is filled with the
	// previously active registration id, if any.
	Activate(ctx context.Context, reg *domain.AgentRegistration) error

	// Active returns the active registration for a deployment.
	// Returns domain.ErrNoActiveAgent if nothing has been published.
	Active(ctx context.Context, deployment string) (*domain.AgentRegistration, error)

	// History lists registrations for a deployment, newest first
	History(ctx context.Context, deployment string, limit int) ([]*domain.AgentRegistration, error)
}
