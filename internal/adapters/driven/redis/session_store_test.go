package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

func createTestSession(id string) *domain.SearchSession {
	return domain.NewSearchSession(id, "crm for small teams", time.Now().UTC(), domain.ClientContext{
		Source:    "homepage",
		UserAgent: "Mozilla/5.0",
		Locale:    "en-US",
		ClientIP:  "192.168.1.1",
	})
}

func TestSessionStore_CreateGet(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewSessionStore(client)
	ctx := context.Background()
	session := createTestSession("session-123")

	if err := store.Create(ctx, session, 10*time.Minute); err != nil {
		t.Fatalf("unexpected error creating session: %v", err)
	}

	got, err := store.Get(ctx, "session-123")
	if err != nil {
		t.Fatalf("failed to retrieve session: %v", err)
	}
	if got.Query != session.Query {
		t.Errorf("expected query %q, got %q", session.Query, got.Query)
	}
	if got.Status != domain.SessionWaiting {
		t.Errorf("expected status waiting, got %s", got.Status)
	}
	if got.Context.ClientIP != "192.168.1.1" {
		t.Errorf("expected client IP to round-trip, got %q", got.Context.ClientIP)
	}
}

func TestSessionStore_CreateTakenID(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewSessionStore(client)
	ctx := context.Background()

	if err := store.Create(ctx, createTestSession("dup"), time.Minute); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	err := store.Create(ctx, createTestSession("dup"), time.Minute)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestSessionStore_SaveOverwrites(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewSessionStore(client)
	ctx := context.Background()
	session := createTestSession("s1")

	if err := store.Create(ctx, session, time.Minute); err != nil {
		t.Fatalf("Create: %v", err)
	}
	session.Dispatched = true
	session.Complete()
	if err := store.Save(ctx, session, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.SessionCompleted || !got.Dispatched || got.CompletedAt == nil {
		t.Errorf("saved session not persisted: %+v", got)
	}
}

func TestSessionStore_Expires(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewSessionStore(client)
	ctx := context.Background()

	if err := store.Create(ctx, createTestSession("s1"), 10*time.Minute); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ttl := mr.TTL(sessionPrefix + "s1"); ttl != 10*time.Minute {
		t.Errorf("expected 10m TTL, got %v", ttl)
	}

	mr.FastForward(11 * time.Minute)

	if _, err := store.Get(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after expiry, got %v", err)
	}
}

func TestSessionStore_GetInvalidJSON(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	if err := mr.Set(sessionPrefix+"bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := NewSessionStore(client).Get(context.Background(), "bad")
	if err == nil || errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}
