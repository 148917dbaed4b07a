package domain

import "time"

// Recommendation is one ranked match for a search session.
//
// MatchPercentage is the displayed score and already includes UrgencyBonus.
// Consumers must never add UrgencyBonus to MatchPercentage again.
type Recommendation struct {
	ID                 string      `json:"id"`
	MatchPercentage    float64     `json:"matchPercentage"`
	Rationale          string      `json:"recommendation"`
	PersonalizedReason string      `json:"personalizedReason,omitempty"`
	UrgencyBonus       *float64    `json:"urgencyBonus,omitempty"`
	ContextualTips     []string    `json:"contextualTips"`
	Benefits           []string    `json:"benefits"`
	Product            *ProductRef `json:"product,omitempty"`
}

// MatchBreakdown splits the displayed percentage into the base score and the included bonus.
func (r *Recommendation) MatchBreakdown() (base, bonus float64) {
	if r.UrgencyBonus == nil || *r.UrgencyBonus <= 0 {
		return r.MatchPercentage, 0
	}
	bonus = *r.UrgencyBonus
	if bonus > r.MatchPercentage {
		bonus = r.MatchPercentage
	}
	return r.MatchPercentage - bonus, bonus
}

// ResultStatus is the outcome reported by the workflow callback.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultError     ResultStatus = "error"
)

// ResultPayload is the final value held by the result store for a session.
type ResultPayload struct {
	SessionID        string           `json:"sessionId"`
	Query            string           `json:"query,omitempty"`
	Recommendations  []Recommendation `json:"recommendations"`
	TotalFound       int              `json:"totalFound"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
	Status           ResultStatus     `json:"status"`
	Error            string           `json:"error,omitempty"`
	StoredAt         time.Time        `json:"storedAt"`
}

// Callback is the body the workflow posts when evaluation finishes.
// Field aliases mirror the shapes different workflow versions emit.
type Callback struct {
	SessionID       string                   `json:"sessionId"`
	Query           string                   `json:"query"`
	Recommendations []CallbackRecommendation `json:"recommendations"`
	TotalFound      *int                     `json:"totalFound"`
	ProcessingTime  *int64                   `json:"processingTime"`
	Error           string                   `json:"error"`
}

// CallbackRecommendation is a recommendation as received, before normalization.
type CallbackRecommendation struct {
	ID                         string      `json:"id"`
	ToolID                     string      `json:"tool_id"`
	MatchPercentage            *float64    `json:"matchPercentage"`
	MatchScore                 *float64    `json:"match_score"`
	Recommendation             string      `json:"recommendation"`
	PersonalizedRecommendation string      `json:"personalized_recommendation"`
	PersonalizedReason         string      `json:"personalizedReason"`
	UrgencyBonus               *float64    `json:"urgencyBonus"`
	ContextualTips             []string    `json:"contextualTips"`
	Benefits                   []string    `json:"benefits"`
	MainBenefits               []string    `json:"main_benefits"`
	Product                    *ProductRef `json:"product"`
}
