package mocks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// MockReasoningService records uploads and agents in memory
type MockReasoningService struct {
	mu      sync.Mutex
	uploads int
	agents  []domain.AgentSpec
	queries []string

	UploadFn func(name string, data []byte) (*domain.ContentHandle, error)
	CreateFn func(spec domain.AgentSpec) (string, error)
	QueryFn  func(reg *domain.AgentRegistration, query string) (string, error)
}

// NewMockReasoningService creates a MockReasoningService
func NewMockReasoningService() *MockReasoningService {
	return &MockReasoningService{}
}

func (m *MockReasoningService) Provider() domain.ReasoningProvider {
	return domain.ProviderOpenAI
}

func (m *MockReasoningService) UploadSnapshot(ctx context.Context, name string, r io.Reader) (*domain.ContentHandle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if m.UploadFn != nil {
		return m.UploadFn(name, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	return &domain.ContentHandle{
		ID:       fmt.Sprintf("file-%d", m.uploads),
		Provider: domain.ProviderOpenAI,
		Bytes:    int64(len(data)),
	}, nil
}

func (m *MockReasoningService) CreateAgent(ctx context.Context, spec domain.AgentSpec) (string, error) {
	if m.CreateFn != nil {
		return m.CreateFn(spec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = append(m.agents, spec)
	return fmt.Sprintf("asst-%d", len(m.agents)), nil
}

func (m *MockReasoningService) Query(ctx context.Context, reg *domain.AgentRegistration, query string) (string, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.QueryFn != nil {
		return m.QueryFn(reg, query)
	}
	return `{"recommendations": []}`, nil
}

// Agents returns the specs of every created agent
func (m *MockReasoningService) Agents() []domain.AgentSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AgentSpec, len(m.agents))
	copy(out, m.agents)
	return out
}

// Queries returns every query asked
func (m *MockReasoningService) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}
