package domain

import "time"

// SessionStatus is the lifecycle state of a search session.
type SessionStatus string

const (
	SessionWaiting    SessionStatus = "waiting"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionError      SessionStatus = "error"
)

// IsTerminal reports whether no further transition is possible.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionError
}

// ClientContext carries request metadata forwarded to the workflow trigger.
type ClientContext struct {
	Source    string `json:"source,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Locale    string `json:"locale,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
	Referer   string `json:"referer,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

// Preview is the coarse estimate returned with the intake acknowledgement.
type Preview struct {
	EstimatedCount int      `json:"estimatedCount"`
	Categories     []string `json:"categories"`
}

// SearchSession tracks one query from submission to result or timeout.
// It expires implicitly with the result horizon and is never deleted explicitly.
type SearchSession struct {
	ID          string        `json:"sessionId"`
	Query       string        `json:"query"`
	SubmittedAt time.Time     `json:"submittedAt"`
	Status      SessionStatus `json:"status"`
	Preview     *Preview      `json:"preview,omitempty"`
	Context     ClientContext `json:"context"`

	// AgentID is the agent the query was dispatched against
	AgentID string `json:"agentId,omitempty"`

	// Dispatched is false when the workflow trigger could not be reached
	Dispatched    bool   `json:"dispatched"`
	DispatchError string `json:"dispatchError,omitempty"`

	// Error is set when the workflow reported a failure
	Error       string     `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewSearchSession creates a session in the waiting state.
func NewSearchSession(id, query string, submittedAt time.Time, cc ClientContext) *SearchSession {
	return &SearchSession{
		ID:          id,
		Query:       query,
		SubmittedAt: submittedAt,
		Status:      SessionWaiting,
		Context:     cc,
		UpdatedAt:   time.Now(),
	}
}

// Complete moves the session to completed. Terminal sessions are left unchanged.
func (s *SearchSession) Complete() bool {
	if s.Status.IsTerminal() {
		return false
	}
	now := time.Now()
	s.Status = SessionCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
	return true
}

// Fail moves the session to error with a reason. Terminal sessions are left unchanged.
func (s *SearchSession) Fail(reason string) bool {
	if s.Status.IsTerminal() {
		return false
	}
	now := time.Now()
	s.Status = SessionError
	s.Error = reason
	s.CompletedAt = &now
	s.UpdatedAt = now
	return true
}

// SubmitRequest is the input to the intake gateway.
type SubmitRequest struct {
	Query string
	// SessionID is an optional client-proposed id
	SessionID string
	// Timestamp is the client's submission time in unix milliseconds, zero if absent
	Timestamp int64
	Context   ClientContext
}

// SubmitResponse is the intake acknowledgement.
type SubmitResponse struct {
	SessionID    string        `json:"sessionId"`
	Preview      Preview       `json:"preview"`
	Dispatched   bool          `json:"dispatched"`
	ResponseTime time.Duration `json:"-"`
}

// DispatchRequest is the one-way payload sent to the workflow trigger.
type DispatchRequest struct {
	Query         string           `json:"query"`
	SessionID     string           `json:"sessionId"`
	Timestamp     string           `json:"timestamp"`
	Source        string           `json:"source"`
	UserAgent     string           `json:"userAgent"`
	Locale        string           `json:"locale"`
	Metadata      DispatchMetadata `json:"metadata"`
	AgentID       string           `json:"agentId,omitempty"`
	ContentHandle string           `json:"contentHandle,omitempty"`
	CallbackURL   string           `json:"callbackUrl"`
	CallbackToken string           `json:"callbackToken"`
}

// DispatchMetadata is the request metadata block of a dispatch payload.
type DispatchMetadata struct {
	ClientIP    string `json:"clientIp"`
	Referer     string `json:"referer"`
	Origin      string `json:"origin"`
	RequestTime int64  `json:"requestTime"`
}
