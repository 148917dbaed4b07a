package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driving"
)

// AgentSetter receives registrations activated by a publish run.
// runtime.AgentDirectory satisfies it.
type AgentSetter interface {
	Set(reg *domain.AgentRegistration)
}

// Worker processes tasks from the task queue.
// It runs the publish pipeline for each publish_catalog task.
type Worker struct {
	taskQueue  driven.TaskQueue
	pipeline   driving.PublishPipeline
	agents     AgentSetter
	sweeper    *Sweeper
	deployment string
	logger     *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue driven.TaskQueue
	Pipeline  driving.PublishPipeline
	// Agents is updated in-process after a publish activates a registration (optional)
	Agents AgentSetter
	// Sweeper runs alongside the task loops (optional)
	Sweeper *Sweeper
	// Deployment is the deployment the pipeline publishes; tasks for others fail
	Deployment     string
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout time.Duration // How long to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}

	deployment := cfg.Deployment
	if deployment == "" {
		deployment = domain.DefaultDeployment
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		pipeline:       cfg.Pipeline,
		agents:         cfg.Agents,
		sweeper:        cfg.Sweeper,
		deployment:     deployment,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
		"deployment", w.deployment,
	)

	loopCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(loopCtx, workerID)
		}(i)
	}

	if w.sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.sweeper.Run(loopCtx)
		}()
	}

	// Stop cancels the loops so a blocking dequeue returns promptly
	go func() {
		select {
		case <-w.stopCh:
		case <-loopCtx.Done():
		}
		cancel()
	}()

	go func() {
		wg.Wait()
		cancel()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker. A task in flight runs to completion.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker goroutine stopping")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second): // Back off on error
			}
			continue
		}

		if task == nil {
			continue
		}

		// the task runs on a context that survives Stop so it is never half-published
		w.processTask(context.WithoutCancel(ctx), task, logger)
	}
}

// processTask processes a single task.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "deployment", task.Deployment)
	logger.Info("processing task", "attempt", task.Attempts)

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypePublishCatalog:
		err = w.handlePublishCatalog(ctx, task, logger)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)

		// Nack the task so it can be retried
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handlePublishCatalog runs the pipeline for a publish_catalog task.
// Once a registration is activated it is handed to the directory, even when
// the smoke test afterwards fails. A smoke failure is not retried because a
// retry would publish yet another agent.
func (w *Worker) handlePublishCatalog(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	deployment := task.Deployment
	if deployment == "" {
		deployment = domain.DefaultDeployment
	}
	if deployment != w.deployment {
		return fmt.Errorf("task for deployment %s, worker publishes %s", deployment, w.deployment)
	}

	report, err := w.pipeline.Run(ctx, task.PublishOptions())
	if report != nil && report.Registration != nil && w.agents != nil {
		w.agents.Set(report.Registration)
	}

	if err == nil {
		return nil
	}
	if stage, ok := domain.FailedStage(err); ok && stage == domain.StageSmoke && report != nil && report.Registration != nil {
		logger.Error("smoke test failed, new agent stays active",
			"registration_id", report.Registration.ID,
			"error", err,
		)
		return nil
	}
	return err
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
