package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// MockResultStore is an in-memory ResultStore that honors a TTL.
// Payloads are stored serialized so readers never share memory with writers.
type MockResultStore struct {
	mu      sync.RWMutex
	entries map[string]mockResult
	ttl     time.Duration

	// Now returns the current time; tests can move it forward
	Now func() time.Time

	GetErr error
	PutErr error

	gets int
}

type mockResult struct {
	data     []byte
	storedAt time.Time
}

// NewMockResultStore creates a MockResultStore with the given TTL
func NewMockResultStore(ttl time.Duration) *MockResultStore {
	return &MockResultStore{
		entries: make(map[string]mockResult),
		ttl:     ttl,
		Now:     time.Now,
	}
}

func (m *MockResultStore) Put(ctx context.Context, sessionID string, payload *domain.ResultPayload) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sessionID] = mockResult{data: data, storedAt: m.Now()}
	return nil
}

func (m *MockResultStore) Get(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error) {
	m.mu.Lock()
	m.gets++
	m.mu.Unlock()

	if m.GetErr != nil {
		return nil, false, m.GetErr
	}

	m.mu.RLock()
	entry, ok := m.entries[sessionID]
	m.mu.RUnlock()
	if !ok || m.Now().Sub(entry.storedAt) > m.ttl {
		return nil, false, nil
	}

	var payload domain.ResultPayload
	if err := json.Unmarshal(entry.data, &payload); err != nil {
		return nil, false, err
	}
	return &payload, true, nil
}

func (m *MockResultStore) PurgeExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, entry := range m.entries {
		if m.Now().Sub(entry.storedAt) > m.ttl {
			delete(m.entries, id)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of physically stored entries
func (m *MockResultStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Gets returns the number of Get calls
func (m *MockResultStore) Gets() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gets
}
