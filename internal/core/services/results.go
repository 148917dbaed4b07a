package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driving"
)

const (
	defaultMatchPercentage = 85
	defaultRationale       = "Recommended tool for your needs."
)

// Ensure ResultService implements driving.ResultService
var _ driving.ResultService = (*ResultService)(nil)

// ResultService stores workflow callbacks and serves them to pollers.
type ResultService struct {
	results    driven.ResultStore
	sessions   driven.SearchSessionStore
	sessionTTL time.Duration
	logger     *slog.Logger
}

// ResultServiceConfig holds dependencies for ResultService.
type ResultServiceConfig struct {
	Results    driven.ResultStore
	Sessions   driven.SearchSessionStore
	SessionTTL time.Duration
	Logger     *slog.Logger
}

// NewResultService creates a new result service.
func NewResultService(cfg ResultServiceConfig) *ResultService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &ResultService{
		results:    cfg.Results,
		sessions:   cfg.Sessions,
		sessionTTL: ttl,
		logger:     logger,
	}
}

// Accept normalizes a callback, stores the payload and closes the session.
// Duplicate callbacks overwrite the stored payload; the session keeps its first terminal state.
func (s *ResultService) Accept(ctx context.Context, cb *domain.Callback) (*domain.ResultPayload, error) {
	if cb == nil || strings.TrimSpace(cb.SessionID) == "" {
		return nil, fmt.Errorf("%w: sessionId is required", domain.ErrInvalidInput)
	}
	if cb.Error == "" && cb.Recommendations == nil {
		return nil, fmt.Errorf("%w: recommendations are required", domain.ErrInvalidInput)
	}

	session, err := s.sessions.Get(ctx, cb.SessionID)
	if err != nil {
		return nil, err
	}

	payload := s.normalize(cb)
	if payload.Query == "" {
		payload.Query = session.Query
	}

	if err := s.results.Put(ctx, cb.SessionID, payload); err != nil {
		return nil, fmt.Errorf("failed to store results: %w", err)
	}

	var changed bool
	if payload.Status == domain.ResultError {
		changed = session.Fail(payload.Error)
	} else {
		changed = session.Complete()
	}
	if changed {
		if err := s.sessions.Save(ctx, session, s.sessionTTL); err != nil {
			// The payload is stored, which is what pollers read
			s.logger.Error("failed to update session status", "session_id", session.ID, "error", err)
		}
	}

	s.logger.Info("results received",
		"session_id", cb.SessionID,
		"status", payload.Status,
		"total_found", payload.TotalFound,
		"processing_ms", payload.ProcessingTimeMs,
	)
	return payload, nil
}

// Get returns the stored payload for a session
func (s *ResultService) Get(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, false, fmt.Errorf("%w: sessionId is required", domain.ErrInvalidInput)
	}
	payload, found, err := s.results.Get(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read results: %w", err)
	}
	return payload, found, nil
}

func (s *ResultService) normalize(cb *domain.Callback) *domain.ResultPayload {
	recs := make([]domain.Recommendation, 0, len(cb.Recommendations))
	for i, raw := range cb.Recommendations {
		rec, err := NormalizeRecommendation(raw)
		if err != nil {
			s.logger.Warn("dropping recommendation", "session_id", cb.SessionID, "index", i, "error", err)
			continue
		}
		recs = append(recs, rec)
	}

	payload := &domain.ResultPayload{
		SessionID:       cb.SessionID,
		Query:           cb.Query,
		Recommendations: recs,
		TotalFound:      len(recs),
		Status:          domain.ResultCompleted,
		StoredAt:        time.Now().UTC(),
	}
	if cb.TotalFound != nil && *cb.TotalFound >= 0 {
		payload.TotalFound = *cb.TotalFound
	}
	if cb.ProcessingTime != nil && *cb.ProcessingTime >= 0 {
		payload.ProcessingTimeMs = *cb.ProcessingTime
	}
	if cb.Error != "" {
		payload.Status = domain.ResultError
		payload.Error = cb.Error
	}
	return payload
}

// NormalizeRecommendation maps a received recommendation onto the stored shape.
// The match percentage is clamped to 0..100 and any urgency bonus is capped by it,
// since the bonus is already part of the displayed percentage.
func NormalizeRecommendation(raw domain.CallbackRecommendation) (domain.Recommendation, error) {
	id := firstNonEmpty(raw.ID, raw.ToolID)
	if id == "" && raw.Product != nil {
		id = raw.Product.ID
	}
	if id == "" {
		return domain.Recommendation{}, errors.New("recommendation has no id")
	}

	match := float64(defaultMatchPercentage)
	switch {
	case raw.MatchPercentage != nil:
		match = *raw.MatchPercentage
	case raw.MatchScore != nil:
		match = *raw.MatchScore
	}
	match = clamp(match, 0, 100)

	rec := domain.Recommendation{
		ID:                 id,
		MatchPercentage:    match,
		Rationale:          firstNonEmpty(raw.Recommendation, raw.PersonalizedRecommendation, defaultRationale),
		PersonalizedReason: raw.PersonalizedReason,
		ContextualTips:     nonNil(raw.ContextualTips),
		Benefits:           nonNil(firstNonEmptyList(raw.MainBenefits, raw.Benefits)),
		Product:            raw.Product,
	}
	if raw.UrgencyBonus != nil && *raw.UrgencyBonus > 0 {
		bonus := clamp(*raw.UrgencyBonus, 0, match)
		rec.UrgencyBonus = &bonus
	}
	return rec, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyList(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
