package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// MockSearchSessionStore is an in-memory SearchSessionStore for testing
type MockSearchSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.SearchSession

	SaveErr error
}

// NewMockSearchSessionStore creates a MockSearchSessionStore
func NewMockSearchSessionStore() *MockSearchSessionStore {
	return &MockSearchSessionStore{sessions: make(map[string]*domain.SearchSession)}
}

func (m *MockSearchSessionStore) Create(ctx context.Context, session *domain.SearchSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.ID]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *MockSearchSessionStore) Save(ctx context.Context, session *domain.SearchSession, ttl time.Duration) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *MockSearchSessionStore) Get(ctx context.Context, id string) (*domain.SearchSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

// Count returns the number of stored sessions
func (m *MockSearchSessionStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
