package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven/mocks"
)

type purgerFunc func(ctx context.Context) (int, error)

func (f purgerFunc) PurgeExpired(ctx context.Context) (int, error) {
	return f(ctx)
}

func TestSweeper_PurgesExpiredResults(t *testing.T) {
	ctx := context.Background()
	results := mocks.NewMockResultStore(10 * time.Minute)
	now := time.Now()
	results.Now = func() time.Time { return now }

	results.Put(ctx, "old", &domain.ResultPayload{SessionID: "old"})
	now = now.Add(11 * time.Minute)
	results.Put(ctx, "fresh", &domain.ResultPayload{SessionID: "fresh"})

	sweeper := NewSweeper(SweeperConfig{Purgers: map[string]Purger{"results": results}})
	removed := sweeper.Sweep(ctx)

	if removed["results"] != 1 {
		t.Errorf("expected 1 purged result, got %d", removed["results"])
	}
	if results.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", results.Len())
	}
}

func TestSweeper_FailureDoesNotStopOthers(t *testing.T) {
	var called atomic.Bool
	sweeper := NewSweeper(SweeperConfig{
		Purgers: map[string]Purger{
			"broken": purgerFunc(func(context.Context) (int, error) { return 0, errors.New("db down") }),
			"ok": purgerFunc(func(context.Context) (int, error) {
				called.Store(true)
				return 2, nil
			}),
		},
		TaskQueue: mocks.NewMockTaskQueue(),
	})

	removed := sweeper.Sweep(context.Background())
	if !called.Load() {
		t.Error("expected the healthy purger to run")
	}
	if removed["ok"] != 2 {
		t.Errorf("expected 2 from ok, got %d", removed["ok"])
	}
	if _, ok := removed["broken"]; ok {
		t.Error("failed purger must not report a count")
	}
	if _, ok := removed["tasks"]; !ok {
		t.Error("expected the task queue to be purged")
	}
}

func TestSweeper_RunTicks(t *testing.T) {
	var sweeps atomic.Int32
	sweeper := NewSweeper(SweeperConfig{
		Purgers: map[string]Purger{
			"results": purgerFunc(func(context.Context) (int, error) {
				sweeps.Add(1)
				return 0, nil
			}),
		},
		Interval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return sweeps.Load() >= 2 })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNewSweeper_Defaults(t *testing.T) {
	s := NewSweeper(SweeperConfig{})
	if s.interval != 5*time.Minute {
		t.Errorf("expected 5m interval, got %v", s.interval)
	}
	if s.taskRetention != 7*24*time.Hour {
		t.Errorf("expected 7d retention, got %v", s.taskRetention)
	}
}
