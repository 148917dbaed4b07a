package driven

import (
	"context"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// ResultStore is a keyed, time-bounded holder of final recommendation payloads.
// Entries older than the store's TTL are absent to Get even if still physically present.
type ResultStore interface {
	// Put stores payload for sessionID, overwriting any previous payload
	Put(ctx context.Context, sessionID string, payload *domain.ResultPayload) error

	// Get returns the payload for sessionID and whether it was found
	Get(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error)

	// PurgeExpired physically removes entries past their TTL and returns how many were removed
	PurgeExpired(ctx context.Context) (int, error)
}
