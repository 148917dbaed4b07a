package domain

import "time"

// ReasoningProvider identifies the external reasoning service backing an agent.
type ReasoningProvider string

const (
	ProviderOpenAI ReasoningProvider = "openai"
	ProviderGemini ReasoningProvider = "gemini"
)

// IsValid reports whether p is a known provider.
func (p ReasoningProvider) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderGemini:
		return true
	}
	return false
}

// DefaultDeployment is the deployment name used when none is configured.
const DefaultDeployment = "default"

// AgentRegistration binds a published snapshot to a queryable reasoning agent.
// Registrations are versioned and never mutated; a deployment has at most one active registration.
type AgentRegistration struct {
	// ID is the registration version id
	ID string `json:"id"`

	Deployment string `json:"deployment"`

	// AgentID is the reasoning service's identifier for the agent
	AgentID string `json:"agentId"`

	// ContentHandle is the reasoning service's identifier for the uploaded snapshot
	ContentHandle string `json:"contentHandle"`

	Provider       ReasoningProvider `json:"provider"`
	Model          string            `json:"model,omitempty"`
	SnapshotDigest string            `json:"snapshotDigest"`
	RecordCount    int               `json:"recordCount"`
	CreatedAt      time.Time         `json:"createdAt"`

	// SupersededID is the registration that was active before this one, if any
	SupersededID string `json:"supersededId,omitempty"`
}

// AgentSpec describes an agent to create against an uploaded snapshot.
type AgentSpec struct {
	Name          string
	Description   string
	Instructions  string
	ContentHandle string
	Model         string
}

// ContentHandle is the result of uploading a snapshot to the reasoning service.
type ContentHandle struct {
	ID       string
	Provider ReasoningProvider
	Bytes    int64
}

// AgentAnswer is a recommendation list parsed from an agent's raw answer.
type AgentAnswer struct {
	Recommendations []AgentPick `json:"recommendations"`
	// Unknown lists ids the agent returned that are not in the catalog
	Unknown []string `json:"unknown,omitempty"`
}

// AgentPick is a single recommendation as answered by the agent.
type AgentPick struct {
	ID              string  `json:"id"`
	MatchPercentage float64 `json:"matchPercentage"`
	Recommendation  string  `json:"recommendation"`
}
