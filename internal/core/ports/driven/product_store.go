package driven

import (
	"context"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// ProductStore reads the relational product catalog (PostgreSQL)
type ProductStore interface {
	// ListProducts returns every product record ordered by id
	ListProducts(ctx context.Context) ([]*domain.ProductRecord, error)

	// ExistingIDs reports which of the given ids exist in the catalog
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}
