package reasoning

import (
	"context"
	"fmt"
	"io"
	"time"

	"google.golang.org/genai"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// Ensure GeminiCache implements ReasoningService
var _ driven.ReasoningService = (*GeminiCache)(nil)

const (
	defaultGeminiModel = "gemini-2.0-flash-001"

	// defaultCacheTTL keeps an agent alive between weekly publishes
	defaultCacheTTL = 8 * 24 * time.Hour

	snapshotMIMEType = "text/plain"
)

// GeminiCache implements ReasoningService on the Gemini API.
// The snapshot is uploaded through the Files API and an agent is a cached
// content entry holding the file and the instructions. The agent id is the
// cache name; querying generates content against that cache.
type GeminiCache struct {
	client   *genai.Client
	model    string
	cacheTTL time.Duration
}

// NewGeminiCache creates a new Gemini adapter. baseURL overrides the API
// endpoint and is empty in production.
func NewGeminiCache(ctx context.Context, apiKey, model, baseURL string) (*GeminiCache, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiCache{
		client:   client,
		model:    model,
		cacheTTL: defaultCacheTTL,
	}, nil
}

// Provider returns domain.ProviderGemini
func (g *GeminiCache) Provider() domain.ReasoningProvider {
	return domain.ProviderGemini
}

// Model returns the default model for new agents
func (g *GeminiCache) Model() string {
	return g.model
}

// UploadSnapshot uploads the artifact through the Files API.
// The handle id is the file URI, which is what cached content references.
func (g *GeminiCache) UploadSnapshot(ctx context.Context, name string, r io.Reader) (*domain.ContentHandle, error) {
	file, err := g.client.Files.Upload(ctx, r, &genai.UploadFileConfig{
		MIMEType:    snapshotMIMEType,
		DisplayName: name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload snapshot: %w", err)
	}
	if file.URI == "" {
		return nil, fmt.Errorf("upload returned no file uri")
	}

	handle := &domain.ContentHandle{
		ID:       file.URI,
		Provider: domain.ProviderGemini,
	}
	if file.SizeBytes != nil {
		handle.Bytes = *file.SizeBytes
	}
	return handle, nil
}

// CreateAgent creates a cached content entry holding the snapshot and instructions
func (g *GeminiCache) CreateAgent(ctx context.Context, spec domain.AgentSpec) (string, error) {
	if spec.ContentHandle == "" {
		return "", fmt.Errorf("content handle required: %w", domain.ErrInvalidInput)
	}
	model := spec.Model
	if model == "" {
		model = g.model
	}

	cache, err := g.client.Caches.Create(ctx, model, &genai.CreateCachedContentConfig{
		DisplayName:       spec.Name,
		TTL:               g.cacheTTL,
		SystemInstruction: genai.NewContentFromText(spec.Instructions, genai.RoleUser),
		Contents: []*genai.Content{
			genai.NewContentFromURI(spec.ContentHandle, snapshotMIMEType, genai.RoleUser),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create cached content: %w", err)
	}
	if cache.Name == "" {
		return "", fmt.Errorf("create cached content returned no name")
	}
	return cache.Name, nil
}

// Query generates an answer against the agent's cached content
func (g *GeminiCache) Query(ctx context.Context, reg *domain.AgentRegistration, query string) (string, error) {
	if reg == nil || reg.AgentID == "" {
		return "", domain.ErrNoActiveAgent
	}
	model := reg.Model
	if model == "" {
		model = g.model
	}

	resp, err := g.client.Models.GenerateContent(ctx,
		model,
		[]*genai.Content{genai.NewContentFromText(query, genai.RoleUser)},
		&genai.GenerateContentConfig{
			CachedContent:    reg.AgentID,
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no answer returned")
	}
	return text, nil
}
