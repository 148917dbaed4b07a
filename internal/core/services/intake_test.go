package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven/mocks"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/runtime"
)

func newTestIntake(t *testing.T, failFast bool) (*IntakeService, *mocks.MockSearchSessionStore, *mocks.MockWorkflowTrigger, *runtime.AgentDirectory) {
	t.Helper()

	sessions := mocks.NewMockSearchSessionStore()
	trigger := mocks.NewMockWorkflowTrigger()
	directory := runtime.NewAgentDirectory(nil, "default", nil)
	directory.Set(&domain.AgentRegistration{
		ID:            "reg-1",
		Deployment:    "default",
		AgentID:       "asst-1",
		ContentHandle: "file-1",
	})

	svc := NewIntakeService(IntakeConfig{
		Sessions:        sessions,
		Trigger:         trigger,
		Tokens:          mocks.MockCallbackTokens{},
		Directory:       directory,
		CallbackURL:     "https://example.test/api/v1/search/callback",
		SessionTTL:      10 * time.Minute,
		DispatchTimeout: 50 * time.Millisecond,
		FailFast:        failFast,
	})
	return svc, sessions, trigger, directory
}

func TestIntake_Submit(t *testing.T) {
	svc, sessions, trigger, _ := newTestIntake(t, false)
	ctx := context.Background()

	resp, err := svc.Submit(ctx, domain.SubmitRequest{
		Query:   "  email automation  ",
		Context: domain.ClientContext{UserAgent: "test-agent", ClientIP: "10.0.0.1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("expected a UUID session id, got %q", resp.SessionID)
	}
	if !resp.Dispatched {
		t.Error("expected dispatched acknowledgement")
	}
	if resp.Preview.EstimatedCount < 0 {
		t.Errorf("expected non-negative estimate, got %d", resp.Preview.EstimatedCount)
	}

	session, err := sessions.Get(ctx, resp.SessionID)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if session.Status != domain.SessionWaiting {
		t.Errorf("expected waiting session, got %s", session.Status)
	}
	if session.Query != "email automation" {
		t.Errorf("expected trimmed query, got %q", session.Query)
	}
	if session.AgentID != "asst-1" || !session.Dispatched {
		t.Errorf("expected dispatch against asst-1, got %+v", session)
	}

	reqs := trigger.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(reqs))
	}
	req := reqs[0]
	if req.SessionID != resp.SessionID || req.Query != "email automation" {
		t.Errorf("unexpected dispatch payload %+v", req)
	}
	if req.AgentID != "asst-1" || req.ContentHandle != "file-1" {
		t.Errorf("expected current agent in payload, got %s/%s", req.AgentID, req.ContentHandle)
	}
	if req.CallbackToken != "cb:"+resp.SessionID {
		t.Errorf("expected callback token bound to session, got %q", req.CallbackToken)
	}
	if req.Source != "homepage" || req.Locale != "en-US" {
		t.Errorf("expected context defaults, got source=%q locale=%q", req.Source, req.Locale)
	}
	if req.Metadata.ClientIP != "10.0.0.1" || req.UserAgent != "test-agent" {
		t.Errorf("expected client context forwarded, got %+v", req)
	}
}

func TestIntake_Submit_EmptyQuery(t *testing.T) {
	svc, sessions, trigger, _ := newTestIntake(t, false)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Submit(context.Background(), domain.SubmitRequest{Query: q})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("query %q: expected ErrInvalidInput, got %v", q, err)
		}
	}
	if sessions.Count() != 0 || len(trigger.Requests()) != 0 {
		t.Error("expected no session and no dispatch for invalid queries")
	}
}

func TestIntake_Submit_QueryTooLong(t *testing.T) {
	svc, _, _, _ := newTestIntake(t, false)
	long := make([]rune, MaxQueryLength+1)
	for i := range long {
		long[i] = 'a'
	}

	_, err := svc.Submit(context.Background(), domain.SubmitRequest{Query: string(long)})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIntake_Submit_ProposedSessionID(t *testing.T) {
	svc, _, _, _ := newTestIntake(t, false)
	ctx := context.Background()
	proposed := uuid.NewString()

	resp, err := svc.Submit(ctx, domain.SubmitRequest{Query: "seo", SessionID: proposed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.SessionID != proposed {
		t.Errorf("expected proposed id %s to be kept, got %s", proposed, resp.SessionID)
	}

	_, err = svc.Submit(ctx, domain.SubmitRequest{Query: "seo", SessionID: proposed})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for reused id, got %v", err)
	}
}

func TestIntake_Submit_GuessableSessionIDReplaced(t *testing.T) {
	svc, _, _, _ := newTestIntake(t, false)

	resp, err := svc.Submit(context.Background(), domain.SubmitRequest{Query: "seo", SessionID: "session_123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.SessionID == "session_123" {
		t.Error("expected a non-UUID proposal to be replaced")
	}
	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("expected UUID, got %q", resp.SessionID)
	}
}

func TestIntake_Submit_Timestamp(t *testing.T) {
	svc, sessions, _, _ := newTestIntake(t, false)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	resp, err := svc.Submit(context.Background(), domain.SubmitRequest{Query: "crm", Timestamp: ts.UnixMilli()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	session, _ := sessions.Get(context.Background(), resp.SessionID)
	if !session.SubmittedAt.Equal(ts) {
		t.Errorf("expected submittedAt %v, got %v", ts, session.SubmittedAt)
	}
}

func TestIntake_Submit_DispatchFailureDegrades(t *testing.T) {
	svc, sessions, trigger, _ := newTestIntake(t, false)
	trigger.DispatchFn = func(ctx context.Context, req *domain.DispatchRequest) error {
		return errors.New("connection refused")
	}

	resp, err := svc.Submit(context.Background(), domain.SubmitRequest{Query: "email automation"})
	if err != nil {
		t.Fatalf("expected submit to succeed despite dispatch failure, got %v", err)
	}
	if resp.Dispatched {
		t.Error("expected dispatched=false")
	}

	session, err := sessions.Get(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatalf("expected session to be recorded: %v", err)
	}
	if session.Dispatched || session.DispatchError == "" {
		t.Errorf("expected dispatch error on session, got %+v", session)
	}
	if session.Status != domain.SessionWaiting {
		t.Errorf("expected session to stay waiting, got %s", session.Status)
	}
}

func TestIntake_Submit_DispatchFailureFailFast(t *testing.T) {
	svc, sessions, trigger, _ := newTestIntake(t, true)
	trigger.DispatchFn = func(ctx context.Context, req *domain.DispatchRequest) error {
		return errors.New("connection refused")
	}

	resp, err := svc.Submit(context.Background(), domain.SubmitRequest{Query: "email automation"})
	if !errors.Is(err, domain.ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}
	if resp == nil || resp.SessionID == "" {
		t.Fatal("expected the recorded session id alongside the error")
	}
	if _, err := sessions.Get(context.Background(), resp.SessionID); err != nil {
		t.Errorf("expected session to remain recorded: %v", err)
	}
}

func TestIntake_Submit_DispatchIsBounded(t *testing.T) {
	svc, _, trigger, _ := newTestIntake(t, false)
	trigger.DispatchFn = func(ctx context.Context, req *domain.DispatchRequest) error {
		<-ctx.Done()
		return ctx.Err()
	}

	start := time.Now()
	resp, err := svc.Submit(context.Background(), domain.SubmitRequest{Query: "slow workflow"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("submit blocked for %v, expected the dispatch timeout to bound it", elapsed)
	}
	if resp.Dispatched {
		t.Error("expected a timed out dispatch to be reported as not dispatched")
	}
}

func TestIntake_Submit_NoActiveAgent(t *testing.T) {
	sessions := mocks.NewMockSearchSessionStore()
	trigger := mocks.NewMockWorkflowTrigger()
	svc := NewIntakeService(IntakeConfig{
		Sessions:  sessions,
		Trigger:   trigger,
		Tokens:    mocks.MockCallbackTokens{},
		Directory: runtime.NewAgentDirectory(nil, "default", nil),
	})

	resp, err := svc.Submit(context.Background(), domain.SubmitRequest{Query: "crm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Dispatched || len(trigger.Requests()) != 0 {
		t.Error("expected no dispatch without an active agent")
	}
	session, _ := sessions.Get(context.Background(), resp.SessionID)
	if session.DispatchError != domain.ErrNoActiveAgent.Error() {
		t.Errorf("expected no-agent dispatch error, got %q", session.DispatchError)
	}
}

func TestIntake_Session(t *testing.T) {
	svc, _, _, _ := newTestIntake(t, false)
	ctx := context.Background()

	if _, err := svc.Session(ctx, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Session(ctx, uuid.NewString()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	resp, _ := svc.Submit(ctx, domain.SubmitRequest{Query: "crm"})
	s, err := svc.Session(ctx, resp.SessionID)
	if err != nil || s.ID != resp.SessionID {
		t.Errorf("expected stored session, got %v %v", s, err)
	}
}
