package driven

import (
	"context"
	"io"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// ReasoningService is the external generative reasoning service that hosts agents
type ReasoningService interface {
	// Provider identifies the backing service
	Provider() domain.ReasoningProvider

	// UploadSnapshot uploads a snapshot artifact and returns its content handle
	UploadSnapshot(ctx context.Context, name string, r io.Reader) (*domain.ContentHandle, error)

	// CreateAgent registers a new agent bound to spec.ContentHandle and returns its id.
	// Existing agents are never modified.
	CreateAgent(ctx context.Context, spec domain.AgentSpec) (string, error)

	// Query asks an agent a question and returns its raw text answer
	Query(ctx context.Context, reg *domain.AgentRegistration, query string) (string, error)
}
