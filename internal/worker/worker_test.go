package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven/mocks"
)

// mockPipeline implements driving.PublishPipeline for testing
type mockPipeline struct {
	mu    sync.Mutex
	runs  []domain.PublishOptions
	runFn func(opts domain.PublishOptions) (*domain.PublishReport, error)
}

func (m *mockPipeline) Run(ctx context.Context, opts domain.PublishOptions) (*domain.PublishReport, error) {
	m.mu.Lock()
	m.runs = append(m.runs, opts)
	m.mu.Unlock()
	if m.runFn != nil {
		return m.runFn(opts)
	}
	return &domain.PublishReport{Registration: &domain.AgentRegistration{ID: "reg-1", Deployment: "default"}}, nil
}

func (m *mockPipeline) Runs() []domain.PublishOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PublishOptions(nil), m.runs...)
}

// recordingSetter implements AgentSetter
type recordingSetter struct {
	mu  sync.Mutex
	set []*domain.AgentRegistration
}

func (r *recordingSetter) Set(reg *domain.AgentRegistration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = append(r.set, reg)
}

func (r *recordingSetter) Last() *domain.AgentRegistration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.set) == 0 {
		return nil
	}
	return r.set[len(r.set)-1]
}

// pingFailQueue reports an unhealthy backend
type pingFailQueue struct {
	*mocks.MockTaskQueue
}

func (q pingFailQueue) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func newTestWorker(queue *mocks.MockTaskQueue, pipeline *mockPipeline, agents AgentSetter) *Worker {
	return NewWorker(WorkerConfig{
		TaskQueue:      queue,
		Pipeline:       pipeline,
		Agents:         agents,
		Concurrency:    1,
		DequeueTimeout: 10 * time.Millisecond,
	})
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: mocks.NewMockTaskQueue()})

	if w.concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 5*time.Second {
		t.Errorf("expected default dequeue timeout 5s, got %v", w.dequeueTimeout)
	}
	if w.deployment != domain.DefaultDeployment {
		t.Errorf("expected default deployment, got %s", w.deployment)
	}
	if w.logger == nil {
		t.Error("expected default logger")
	}
}

func TestWorker_StartStop(t *testing.T) {
	w := newTestWorker(mocks.NewMockTaskQueue(), &mockPipeline{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	if !w.Health(ctx).Running {
		t.Error("expected worker to be running")
	}

	// Start again should be no-op
	if err := w.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	w.Stop()
	if w.Health(ctx).Running {
		t.Error("expected worker to be stopped")
	}

	// Stop again should be no-op
	w.Stop()
}

func TestWorker_Health_QueueError(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: pingFailQueue{mocks.NewMockTaskQueue()}})

	health := w.Health(context.Background())
	if health.QueueHealth {
		t.Error("expected queue to be unhealthy")
	}
	if health.Error != "connection refused" {
		t.Errorf("unexpected error %q", health.Error)
	}
}

func TestWorker_PublishTask(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	pipeline := &mockPipeline{}
	agents := &recordingSetter{}
	w := newTestWorker(queue, pipeline, agents)

	task := domain.NewPublishCatalogTask("default", domain.PublishOptions{SkipSmoke: true})
	queue.Enqueue(context.Background(), task)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	waitFor(t, func() bool { return len(queue.Acked()) == 1 })

	runs := pipeline.Runs()
	if len(runs) != 1 || !runs[0].SkipSmoke {
		t.Errorf("expected one run with skip_smoke, got %+v", runs)
	}
	if got := agents.Last(); got == nil || got.ID != "reg-1" {
		t.Errorf("expected reg-1 to be set on the directory, got %+v", got)
	}
}

func TestWorker_PublishFailureIsNacked(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	pipeline := &mockPipeline{runFn: func(domain.PublishOptions) (*domain.PublishReport, error) {
		return &domain.PublishReport{}, domain.NewStageError(domain.StageUpload, errors.New("quota exceeded"))
	}}
	agents := &recordingSetter{}
	w := newTestWorker(queue, pipeline, agents)

	task := domain.NewPublishCatalogTask("default", domain.PublishOptions{})
	queue.Enqueue(context.Background(), task)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	waitFor(t, func() bool { return len(queue.Nacked()) >= 1 })

	stored, _ := queue.GetTask(context.Background(), task.ID)
	if stored.Status != domain.TaskStatusPending || stored.Error == "" {
		t.Errorf("expected task rescheduled with error, got %s %q", stored.Status, stored.Error)
	}
	if agents.Last() != nil {
		t.Error("nothing was activated, directory must not change")
	}
}

func TestWorker_SmokeFailureKeepsAgent(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	reg := &domain.AgentRegistration{ID: "reg-2", Deployment: "default"}
	pipeline := &mockPipeline{runFn: func(domain.PublishOptions) (*domain.PublishReport, error) {
		return &domain.PublishReport{Registration: reg}, domain.NewStageError(domain.StageSmoke, domain.ErrMalformedAnswer)
	}}
	agents := &recordingSetter{}
	w := newTestWorker(queue, pipeline, agents)

	queue.Enqueue(context.Background(), domain.NewPublishCatalogTask("default", domain.PublishOptions{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	waitFor(t, func() bool { return len(queue.Acked()) == 1 })

	if len(queue.Nacked()) != 0 {
		t.Error("a smoke failure must not be retried")
	}
	if got := agents.Last(); got == nil || got.ID != "reg-2" {
		t.Errorf("expected reg-2 to stay active, got %+v", got)
	}
}

func TestWorker_ForeignDeploymentIsNacked(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	pipeline := &mockPipeline{}
	w := newTestWorker(queue, pipeline, nil)

	queue.Enqueue(context.Background(), domain.NewPublishCatalogTask("staging", domain.PublishOptions{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	waitFor(t, func() bool { return len(queue.Nacked()) >= 1 })
	if len(pipeline.Runs()) != 0 {
		t.Error("pipeline must not run for another deployment")
	}
}

func TestWorker_UnknownTaskType(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	w := newTestWorker(queue, &mockPipeline{}, nil)

	queue.Enqueue(context.Background(), domain.NewTask("reindex", "default", nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	waitFor(t, func() bool { return len(queue.Nacked()) >= 1 })
}

func TestWorker_ContextCancellation(t *testing.T) {
	w := newTestWorker(mocks.NewMockTaskQueue(), &mockPipeline{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}
