package mocks

import (
	"context"
	"sync"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// MockWorkflowTrigger records dispatched requests
type MockWorkflowTrigger struct {
	mu       sync.Mutex
	requests []*domain.DispatchRequest

	DispatchFn func(ctx context.Context, req *domain.DispatchRequest) error
}

// NewMockWorkflowTrigger creates a MockWorkflowTrigger
func NewMockWorkflowTrigger() *MockWorkflowTrigger {
	return &MockWorkflowTrigger{}
}

func (m *MockWorkflowTrigger) Dispatch(ctx context.Context, req *domain.DispatchRequest) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.DispatchFn != nil {
		return m.DispatchFn(ctx, req)
	}
	return nil
}

// Requests returns every dispatched request
func (m *MockWorkflowTrigger) Requests() []*domain.DispatchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.DispatchRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
