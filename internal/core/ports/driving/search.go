package driving

import (
	"context"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// IntakeService accepts free-text queries and hands them off to the workflow
type IntakeService interface {
	// Submit creates a search session, dispatches the query and returns immediately
	Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResponse, error)

	// Session returns the stored session
	Session(ctx context.Context, sessionID string) (*domain.SearchSession, error)
}

// ResultService accepts workflow callbacks and serves results to pollers
type ResultService interface {
	// Accept normalizes a workflow callback, stores it and closes the session
	Accept(ctx context.Context, cb *domain.Callback) (*domain.ResultPayload, error)

	// Get returns the stored payload for a session, found=false if absent or expired
	Get(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error)
}
