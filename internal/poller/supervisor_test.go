package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// sessionFetcher serves a result only for sessions marked ready.
type sessionFetcher struct {
	mu    sync.Mutex
	ready map[string]bool
	seen  map[string]int
}

func newSessionFetcher() *sessionFetcher {
	return &sessionFetcher{ready: map[string]bool{}, seen: map[string]int{}}
}

func (f *sessionFetcher) Fetch(ctx context.Context, id string) (*domain.ResultPayload, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[id]++
	if !f.ready[id] {
		return nil, false, nil
	}
	return &domain.ResultPayload{SessionID: id, Status: domain.ResultCompleted}, true, nil
}

func (f *sessionFetcher) markReady(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready[id] = true
}

func (f *sessionFetcher) calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[id]
}

func TestSupervisor_NewPollSupersedesOld(t *testing.T) {
	fetcher := newSessionFetcher()
	sup := NewSupervisor(Resolver{Fetcher: fetcher, Interval: testInterval, Budget: 5 * time.Second}, nil)
	defer sup.Close()

	var mu sync.Mutex
	var delivered []string
	done := make(chan struct{})
	onDone := func(o Outcome) {
		mu.Lock()
		delivered = append(delivered, o.Payload.SessionID)
		mu.Unlock()
		close(done)
	}

	if _, err := sup.Start(context.Background(), "browser-1", "old", nil, onDone); err != nil {
		t.Fatalf("Start old: %v", err)
	}
	time.Sleep(3 * testInterval)
	if _, err := sup.Start(context.Background(), "browser-1", "new", nil, onDone); err != nil {
		t.Fatalf("Start new: %v", err)
	}
	if got := sup.Active(); got != 1 {
		t.Errorf("Active = %d, want 1", got)
	}

	fetcher.markReady("old")
	time.Sleep(3 * testInterval)
	oldCalls := fetcher.calls("old")
	fetcher.markReady("new")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("new poll never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 || delivered[0] != "new" {
		t.Errorf("delivered = %v, want only the new session", delivered)
	}
	if fetcher.calls("old") != oldCalls {
		t.Errorf("old session still polled after being superseded")
	}
}

func TestSupervisor_Stop(t *testing.T) {
	fetcher := newSessionFetcher()
	sup := NewSupervisor(Resolver{Fetcher: fetcher, Interval: testInterval, Budget: 5 * time.Second}, nil)
	defer sup.Close()

	var called bool
	if _, err := sup.Start(context.Background(), "c", "s1", nil, func(Outcome) { called = true }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !sup.Stop("c") {
		t.Fatal("Stop = false, want true")
	}
	if sup.Stop("c") {
		t.Error("second Stop = true, want false")
	}
	if sup.Active() != 0 {
		t.Errorf("Active = %d after Stop", sup.Active())
	}
	sup.Close()
	if called {
		t.Error("stopped poll delivered an outcome")
	}
}

func TestSupervisor_DeliversTimeout(t *testing.T) {
	sup := NewSupervisor(Resolver{Fetcher: FetcherFunc(notFound), Interval: testInterval, Budget: testBudget}, nil)
	defer sup.Close()

	outcomes := make(chan Outcome, 1)
	var updates int
	var mu sync.Mutex
	_, err := sup.Start(context.Background(), "c", "s1",
		func(Update) { mu.Lock(); updates++; mu.Unlock() },
		func(o Outcome) { outcomes <- o })
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case o := <-outcomes:
		if o.Err == nil || o.Err.Kind != domain.PollTimeout {
			t.Errorf("outcome = %+v, want timeout", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if updates == 0 {
		t.Error("no progress updates delivered")
	}
}

func TestSupervisor_CloseStopsEverything(t *testing.T) {
	sup := NewSupervisor(Resolver{Fetcher: FetcherFunc(notFound), Interval: testInterval, Budget: 10 * time.Second}, nil)

	for _, c := range []string{"a", "b", "c"} {
		if _, err := sup.Start(context.Background(), c, "s-"+c, nil, nil); err != nil {
			t.Fatalf("Start %s: %v", c, err)
		}
	}
	if sup.Active() != 3 {
		t.Errorf("Active = %d, want 3", sup.Active())
	}

	sup.Close()

	if sup.Active() != 0 {
		t.Errorf("Active = %d after Close", sup.Active())
	}
	_, err := sup.Start(context.Background(), "a", "s", nil, nil)
	if !errors.Is(err, ErrSupervisorClosed) {
		t.Errorf("Start after Close = %v, want ErrSupervisorClosed", err)
	}
}

func TestSupervisor_ExitedClosesOnSupersede(t *testing.T) {
	sup := NewSupervisor(Resolver{Fetcher: FetcherFunc(notFound), Interval: testInterval, Budget: 10 * time.Second}, nil)
	defer sup.Close()

	exited, err := sup.Start(context.Background(), "c", "s1", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := sup.Start(context.Background(), "c", "s2", nil, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded poll loop did not exit")
	}
	if sup.Active() != 1 {
		t.Errorf("Active = %d, want 1", sup.Active())
	}
}
