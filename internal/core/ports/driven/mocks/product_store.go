package mocks

import (
	"context"
	"sync"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// MockProductStore is an in-memory ProductStore for testing
type MockProductStore struct {
	mu       sync.RWMutex
	products []*domain.ProductRecord

	// ListErr is returned by ListProducts when set
	ListErr error
}

// NewMockProductStore creates a MockProductStore holding products
func NewMockProductStore(products ...*domain.ProductRecord) *MockProductStore {
	return &MockProductStore{products: products}
}

func (m *MockProductStore) ListProducts(ctx context.Context) ([]*domain.ProductRecord, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.ProductRecord, len(m.products))
	copy(out, m.products)
	return out, nil
}

func (m *MockProductStore) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	known := make(map[string]bool, len(m.products))
	for _, p := range m.products {
		known[p.ID] = true
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if known[id] {
			out[id] = true
		}
	}
	return out, nil
}

// Add appends a product record
func (m *MockProductStore) Add(p *domain.ProductRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, p)
}
