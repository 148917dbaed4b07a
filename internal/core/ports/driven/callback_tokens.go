package driven

import "time"

// CallbackTokens mints and verifies tokens that authorize a workflow callback for one session
type CallbackTokens interface {
	// Issue returns a token bound to sessionID valid for ttl
	Issue(sessionID string, ttl time.Duration) (string, error)

	// Verify validates a token and returns the session id it is bound to
	Verify(token string) (string, error)
}
