package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driving"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/runtime"
)

const (
	// MaxQueryLength bounds the accepted query text in characters
	MaxQueryLength = 1000

	defaultSessionTTL      = 10 * time.Minute
	defaultDispatchTimeout = 5 * time.Second
	defaultSource          = "homepage"
	defaultLocale          = "en-US"
)

// Ensure IntakeService implements driving.IntakeService
var _ driving.IntakeService = (*IntakeService)(nil)

// IntakeService creates search sessions and hands queries to the workflow trigger.
// Submit never waits for the reasoning outcome.
type IntakeService struct {
	sessions        driven.SearchSessionStore
	trigger         driven.WorkflowTrigger
	tokens          driven.CallbackTokens
	directory       *runtime.AgentDirectory
	callbackURL     string
	sessionTTL      time.Duration
	dispatchTimeout time.Duration
	failFast        bool
	logger          *slog.Logger
}

// IntakeConfig holds dependencies for IntakeService.
type IntakeConfig struct {
	Sessions  driven.SearchSessionStore
	Trigger   driven.WorkflowTrigger
	Tokens    driven.CallbackTokens
	Directory *runtime.AgentDirectory
	// CallbackURL is where the workflow posts results
	CallbackURL string
	// SessionTTL bounds how long a session and its callback token live
	SessionTTL time.Duration
	// DispatchTimeout bounds the wait for the trigger's acknowledgement
	DispatchTimeout time.Duration
	// FailFast makes Submit return domain.ErrDispatchFailed when dispatch fails
	FailFast bool
	Logger   *slog.Logger
}

// NewIntakeService creates a new intake service.
func NewIntakeService(cfg IntakeConfig) *IntakeService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &IntakeService{
		sessions:        cfg.Sessions,
		trigger:         cfg.Trigger,
		tokens:          cfg.Tokens,
		directory:       cfg.Directory,
		callbackURL:     cfg.CallbackURL,
		sessionTTL:      cfg.SessionTTL,
		dispatchTimeout: cfg.DispatchTimeout,
		failFast:        cfg.FailFast,
		logger:          logger,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = defaultSessionTTL
	}
	if s.dispatchTimeout <= 0 {
		s.dispatchTimeout = defaultDispatchTimeout
	}
	return s
}

// Submit validates the query, records a waiting session and dispatches it.
// A failed dispatch still leaves the session recorded so pollers time out cleanly.
func (s *IntakeService) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResponse, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, fmt.Errorf("%w: query exceeds %d characters", domain.ErrInvalidInput, MaxQueryLength)
	}

	sessionID := s.sessionID(req.SessionID)
	submittedAt := start.UTC()
	if req.Timestamp > 0 {
		submittedAt = time.UnixMilli(req.Timestamp).UTC()
	}

	preview := EstimatePreview(query)
	session := domain.NewSearchSession(sessionID, query, submittedAt, withContextDefaults(req.Context))
	session.Preview = &preview

	if err := s.sessions.Create(ctx, session, s.sessionTTL); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: session %s", domain.ErrAlreadyExists, sessionID)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	dispatchErr := s.dispatch(ctx, session)
	if dispatchErr != nil {
		session.DispatchError = dispatchErr.Error()
		s.logger.Warn("workflow dispatch failed",
			"session_id", sessionID,
			"error", dispatchErr,
		)
	} else {
		session.Dispatched = true
	}
	session.UpdatedAt = time.Now().UTC()

	if err := s.sessions.Save(ctx, session, s.sessionTTL); err != nil {
		s.logger.Error("failed to record dispatch outcome", "session_id", sessionID, "error", err)
	}

	resp := &domain.SubmitResponse{
		SessionID:    sessionID,
		Preview:      preview,
		Dispatched:   session.Dispatched,
		ResponseTime: time.Since(start),
	}

	if dispatchErr != nil && s.failFast {
		return resp, fmt.Errorf("%w: %v", domain.ErrDispatchFailed, dispatchErr)
	}

	s.logger.Info("search submitted",
		"session_id", sessionID,
		"dispatched", session.Dispatched,
		"agent_id", session.AgentID,
		"duration", resp.ResponseTime,
	)
	return resp, nil
}

// Session returns a stored session
func (s *IntakeService) Session(ctx context.Context, sessionID string) (*domain.SearchSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	return s.sessions.Get(ctx, sessionID)
}

// sessionID keeps a client-proposed id only if it is a well-formed UUID
func (s *IntakeService) sessionID(proposed string) string {
	proposed = strings.TrimSpace(proposed)
	if proposed != "" {
		if id, err := uuid.Parse(proposed); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}

func (s *IntakeService) dispatch(ctx context.Context, session *domain.SearchSession) error {
	var reg *domain.AgentRegistration
	if s.directory != nil {
		reg = s.directory.Current()
	}
	if reg == nil {
		return domain.ErrNoActiveAgent
	}
	if s.trigger == nil {
		return fmt.Errorf("workflow trigger not configured: %w", domain.ErrServiceUnavailable)
	}
	session.AgentID = reg.AgentID

	token, err := s.tokens.Issue(session.ID, s.sessionTTL)
	if err != nil {
		return fmt.Errorf("failed to issue callback token: %w", err)
	}

	req := &domain.DispatchRequest{
		Query:     session.Query,
		SessionID: session.ID,
		Timestamp: session.SubmittedAt.Format(time.RFC3339Nano),
		Source:    session.Context.Source,
		UserAgent: session.Context.UserAgent,
		Locale:    session.Context.Locale,
		Metadata: domain.DispatchMetadata{
			ClientIP:    session.Context.ClientIP,
			Referer:     session.Context.Referer,
			Origin:      session.Context.Origin,
			RequestTime: time.Now().UnixMilli(),
		},
		AgentID:       reg.AgentID,
		ContentHandle: reg.ContentHandle,
		CallbackURL:   s.callbackURL,
		CallbackToken: token,
	}

	// The session already exists, so dispatch outlives a disconnected client
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()

	if err := s.trigger.Dispatch(dctx, req); err != nil {
		return err
	}
	return nil
}

func withContextDefaults(cc domain.ClientContext) domain.ClientContext {
	if cc.Source == "" {
		cc.Source = defaultSource
	}
	if cc.Locale == "" {
		cc.Locale = defaultLocale
	}
	if cc.ClientIP == "" {
		cc.ClientIP = "unknown"
	}
	return cc
}
