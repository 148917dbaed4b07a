package reasoning

import (
	"context"
	"fmt"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// Settings selects and configures a reasoning provider
type Settings struct {
	Provider domain.ReasoningProvider
	APIKey   string
	Model    string
	BaseURL  string
}

// IsConfigured reports whether enough is set to build a client
func (s *Settings) IsConfigured() bool {
	return s != nil && s.APIKey != ""
}

// New creates the reasoning service for settings.
// Unconfigured settings return nil without error; the API can still serve
// stored results without a reasoning backend.
func New(ctx context.Context, settings *Settings) (driven.ReasoningService, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.ProviderOpenAI, "":
		svc, err := NewOpenAIAssistants(settings.APIKey, settings.Model, settings.BaseURL)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case domain.ProviderGemini:
		svc, err := NewGeminiCache(ctx, settings.APIKey, settings.Model, settings.BaseURL)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}
