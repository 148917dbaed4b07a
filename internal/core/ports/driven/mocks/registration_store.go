package mocks

import (
	"context"
	"sync"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// MockRegistrationStore is an in-memory versioned RegistrationStore
type MockRegistrationStore struct {
	mu       sync.RWMutex
	versions map[string][]*domain.AgentRegistration
	active   map[string]string

	ActivateErr error
}

// NewMockRegistrationStore creates a MockRegistrationStore
func NewMockRegistrationStore() *MockRegistrationStore {
	return &MockRegistrationStore{
		versions: make(map[string][]*domain.AgentRegistration),
		active:   make(map[string]string),
	}
}

func (m *MockRegistrationStore) Activate(ctx context.Context, reg *domain.AgentRegistration) error {
	if m.ActivateErr != nil {
		return m.ActivateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	reg.SupersededID = m.active[reg.Deployment]
	cp := *reg
	m.versions[reg.Deployment] = append(m.versions[reg.Deployment], &cp)
	m.active[reg.Deployment] = reg.ID
	return nil
}

func (m *MockRegistrationStore) Active(ctx context.Context, deployment string) (*domain.AgentRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.active[deployment]
	if !ok {
		return nil, domain.ErrNoActiveAgent
	}
	for _, r := range m.versions[deployment] {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNoActiveAgent
}

func (m *MockRegistrationStore) History(ctx context.Context, deployment string, limit int) ([]*domain.AgentRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.versions[deployment]
	var out []*domain.AgentRegistration
	for i := len(versions) - 1; i >= 0; i-- {
		cp := *versions[i]
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
