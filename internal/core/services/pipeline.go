package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driving"
)

const (
	// PublishLockName is the distributed lock held while the pipeline runs
	PublishLockName = "catalog-publish"

	defaultPublishLockTTL = 15 * time.Minute
	defaultSmokeTimeout   = 60 * time.Second
	defaultSmokeQuery     = "email automation"
)

// Ensure Pipeline implements PublishPipeline
var _ driving.PublishPipeline = (*Pipeline)(nil)

// Pipeline runs export, publish and smoke test as one exclusive job.
type Pipeline struct {
	exporter     driving.CatalogExporter
	publisher    *Publisher
	reasoning    driven.ReasoningService
	products     driven.ProductStore
	lock         driven.DistributedLock
	lockTTL      time.Duration
	smokeQuery   string
	smokeTimeout time.Duration
	deployment   string
	logger       *slog.Logger
}

// PipelineConfig holds dependencies for Pipeline.
type PipelineConfig struct {
	Exporter  driving.CatalogExporter
	Publisher *Publisher
	Reasoning driven.ReasoningService
	// Products validates smoke answer ids (optional, the snapshot id list is used otherwise)
	Products driven.ProductStore
	// Lock prevents concurrent runs across instances (optional)
	Lock         driven.DistributedLock
	LockTTL      time.Duration
	SmokeQuery   string
	SmokeTimeout time.Duration
	Logger       *slog.Logger
}

// NewPipeline creates a new publish pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		exporter:     cfg.Exporter,
		publisher:    cfg.Publisher,
		reasoning:    cfg.Reasoning,
		products:     cfg.Products,
		lock:         cfg.Lock,
		lockTTL:      cfg.LockTTL,
		smokeQuery:   cfg.SmokeQuery,
		smokeTimeout: cfg.SmokeTimeout,
		logger:       logger,
	}
	if p.lockTTL <= 0 {
		p.lockTTL = defaultPublishLockTTL
	}
	if p.smokeTimeout <= 0 {
		p.smokeTimeout = defaultSmokeTimeout
	}
	if p.smokeQuery == "" {
		p.smokeQuery = defaultSmokeQuery
	}
	if cfg.Publisher != nil {
		p.deployment = cfg.Publisher.deployment
	}
	return p
}

// Run executes export, publish and (unless skipped) the smoke query.
// The report is always returned; err is a *domain.StageError naming the failed stage,
// or domain.ErrPublishInProgress when another run holds the lock.
func (p *Pipeline) Run(ctx context.Context, opts domain.PublishOptions) (*domain.PublishReport, error) {
	report := &domain.PublishReport{
		Deployment: p.deployment,
		StartedAt:  time.Now().UTC(),
	}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if p.lock != nil {
		acquired, err := p.lock.Acquire(ctx, PublishLockName, p.lockTTL)
		if err != nil {
			return report, fmt.Errorf("failed to acquire publish lock: %w", err)
		}
		if !acquired {
			return report, domain.ErrPublishInProgress
		}
		defer func() {
			if err := p.lock.Release(context.WithoutCancel(ctx), PublishLockName); err != nil {
				p.logger.Warn("failed to release publish lock", "error", err)
			}
		}()
		stop := p.keepLock(ctx, cancel)
		defer stop()
	}

	p.logger.Info("publish pipeline started", "deployment", p.deployment, "skip_smoke", opts.SkipSmoke)

	started := time.Now()
	snapshot, err := p.exporter.Export(ctx)
	if err != nil {
		report.Record(domain.StageExport, started, err, "")
		return report, p.fail(ctx, domain.NewStageError(domain.StageExport, err))
	}
	report.Snapshot = snapshot
	report.Record(domain.StageExport, started, nil, exportDetail(snapshot))

	reg, err := p.publisher.publish(ctx, snapshot, report.Record)
	if err != nil {
		return report, p.fail(ctx, err)
	}
	report.Registration = reg

	if opts.SkipSmoke {
		report.Skip(domain.StageSmoke, "skipped by operator")
	} else {
		query := opts.SmokeQuery
		if query == "" {
			query = p.smokeQuery
		}
		started = time.Now()
		answer, err := p.smoke(ctx, reg, snapshot, query)
		if err != nil {
			report.Record(domain.StageSmoke, started, err, "")
			return report, p.fail(ctx, domain.NewStageError(domain.StageSmoke, err))
		}
		report.Smoke = answer
		report.Record(domain.StageSmoke, started, nil, fmt.Sprintf("%q: %d recommendations, %d unknown ids dropped",
			query, len(answer.Recommendations), len(answer.Unknown)))
	}

	p.logger.Info("publish pipeline finished",
		"deployment", p.deployment,
		"agent_id", reg.AgentID,
		"records", snapshot.RecordCount,
	)
	return report, nil
}

func (p *Pipeline) smoke(ctx context.Context, reg *domain.AgentRegistration, snapshot *domain.Snapshot, query string) (*domain.AgentAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, p.smokeTimeout)
	defer cancel()

	raw, err := p.reasoning.Query(ctx, reg, query)
	if err != nil {
		return nil, fmt.Errorf("smoke query failed: %w", err)
	}
	answer, err := ParseAgentAnswer(raw)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(answer.Recommendations))
	for _, pick := range answer.Recommendations {
		ids = append(ids, pick.ID)
	}

	var known map[string]bool
	if p.products != nil {
		known, err = p.products.ExistingIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to validate answer ids: %w", err)
		}
	} else {
		known = make(map[string]bool, len(ids))
		for _, id := range ids {
			known[id] = snapshot.HasProduct(id)
		}
	}

	filtered := FilterKnown(answer, known)
	if len(filtered.Unknown) > 0 {
		p.logger.Warn("smoke answer referenced unknown products", "ids", filtered.Unknown)
	}
	return filtered, nil
}

func (p *Pipeline) fail(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, domain.ErrLockLost) {
		err = fmt.Errorf("%w: %w", err, cause)
	}
	stage, _ := domain.FailedStage(err)
	p.logger.Error("publish pipeline failed", "deployment", p.deployment, "stage", stage, "error", err)
	return err
}

// keepLock renews the publish lock every third of its TTL until stopped.
// Losing the lock cancels the run so a second publisher cannot overlap it.
func (p *Pipeline) keepLock(ctx context.Context, cancel context.CancelCauseFunc) (stop func()) {
	interval := p.lockTTL / 3
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := p.lock.Extend(ctx, PublishLockName, p.lockTTL)
				if err == nil {
					continue
				}
				if errors.Is(err, domain.ErrLockLost) {
					p.logger.Error("publish lock lost, aborting run", "error", err)
					cancel(err)
					return
				}
				p.logger.Warn("failed to extend publish lock", "error", err)
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}

func exportDetail(s *domain.Snapshot) string {
	malformed := 0
	if s.Report != nil {
		malformed = s.Report.MalformedTotal()
	}
	return fmt.Sprintf("%d records, %d malformed fields defaulted", s.RecordCount, malformed)
}
