package driven

import (
	"context"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// WorkflowTrigger hands a query off to the external workflow that invokes the
// reasoning agent and eventually posts the result callback.
type WorkflowTrigger interface {
	// Dispatch sends req and returns once the trigger acknowledged receipt.
	// It never waits for the workflow outcome.
	Dispatch(ctx context.Context, req *domain.DispatchRequest) error
}
