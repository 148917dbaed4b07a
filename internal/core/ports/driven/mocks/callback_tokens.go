package mocks

import (
	"strings"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// MockCallbackTokens issues transparent "cb:<sessionId>" tokens
type MockCallbackTokens struct{}

func (MockCallbackTokens) Issue(sessionID string, ttl time.Duration) (string, error) {
	return "cb:" + sessionID, nil
}

func (MockCallbackTokens) Verify(token string) (string, error) {
	id, ok := strings.CutPrefix(token, "cb:")
	if !ok || id == "" {
		return "", domain.ErrTokenInvalid
	}
	return id, nil
}
