package mocks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// MockSnapshotStore keeps the latest snapshot artifact in memory
type MockSnapshotStore struct {
	mu       sync.RWMutex
	path     string
	data     []byte
	products []*domain.SanitizedProduct
	writes   int

	WriteErr error
	OpenErr  error
}

// NewMockSnapshotStore creates a MockSnapshotStore that reports path as its artifact location
func NewMockSnapshotStore(path string) *MockSnapshotStore {
	return &MockSnapshotStore{path: path}
}

func (m *MockSnapshotStore) Write(ctx context.Context, products []*domain.SanitizedProduct) (*domain.Snapshot, error) {
	if m.WriteErr != nil {
		return nil, m.WriteErr
	}
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.products = products
	m.writes++
	return &domain.Snapshot{
		Path:        m.path,
		Digest:      fmt.Sprintf("mock-%d", m.writes),
		RecordCount: len(products),
		CreatedAt:   time.Now(),
	}, nil
}

func (m *MockSnapshotStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path != m.path || m.data == nil {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

// Products returns the products of the last write
func (m *MockSnapshotStore) Products() []*domain.SanitizedProduct {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products
}

// Writes returns how many times Write succeeded
func (m *MockSnapshotStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
