package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driving"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/runtime"
)

// Ensure Publisher implements KnowledgePublisher
var _ driving.KnowledgePublisher = (*Publisher)(nil)

// Publisher uploads snapshots and binds them to new reasoning agents.
// Every run creates a new agent; previous agents are superseded, never modified.
type Publisher struct {
	reasoning     driven.ReasoningService
	snapshots     driven.SnapshotStore
	registrations driven.RegistrationStore
	directory     *runtime.AgentDirectory
	deployment    string
	model         string
	logger        *slog.Logger
}

// PublisherConfig holds dependencies for Publisher.
type PublisherConfig struct {
	Reasoning     driven.ReasoningService
	Snapshots     driven.SnapshotStore
	Registrations driven.RegistrationStore
	// Directory is updated in-process after activation (optional)
	Directory  *runtime.AgentDirectory
	Deployment string
	Model      string
	Logger     *slog.Logger
}

// NewPublisher creates a new knowledge base publisher.
func NewPublisher(cfg PublisherConfig) *Publisher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	deployment := cfg.Deployment
	if deployment == "" {
		deployment = domain.DefaultDeployment
	}
	return &Publisher{
		reasoning:     cfg.Reasoning,
		snapshots:     cfg.Snapshots,
		registrations: cfg.Registrations,
		directory:     cfg.Directory,
		deployment:    deployment,
		model:         cfg.Model,
		logger:        logger,
	}
}

// stageRecorder receives the outcome of each publish stage.
type stageRecorder func(stage domain.PublishStage, started time.Time, err error, detail string)

// Publish uploads snapshot, creates an agent bound to it and activates the registration.
func (p *Publisher) Publish(ctx context.Context, snapshot *domain.Snapshot) (*domain.AgentRegistration, error) {
	return p.publish(ctx, snapshot, nil)
}

func (p *Publisher) publish(ctx context.Context, snapshot *domain.Snapshot, record stageRecorder) (*domain.AgentRegistration, error) {
	if record == nil {
		record = func(domain.PublishStage, time.Time, error, string) {}
	}
	if snapshot == nil || snapshot.Path == "" {
		err := fmt.Errorf("%w: snapshot is required", domain.ErrInvalidInput)
		record(domain.StageUpload, time.Now(), err, "")
		return nil, domain.NewStageError(domain.StageUpload, err)
	}
	if p.reasoning == nil {
		err := fmt.Errorf("%w: no reasoning provider configured", domain.ErrServiceUnavailable)
		record(domain.StageUpload, time.Now(), err, "")
		return nil, domain.NewStageError(domain.StageUpload, err)
	}

	started := time.Now()
	handle, err := p.upload(ctx, snapshot)
	if err != nil {
		record(domain.StageUpload, started, err, "")
		return nil, domain.NewStageError(domain.StageUpload, err)
	}
	record(domain.StageUpload, started, nil, fmt.Sprintf("content handle %s", handle.ID))
	p.logger.Info("snapshot uploaded",
		"content_handle", handle.ID,
		"provider", handle.Provider,
		"bytes", handle.Bytes,
	)

	started = time.Now()
	agentID, err := p.reasoning.CreateAgent(ctx, domain.AgentSpec{
		Name:          agentName,
		Description:   agentDescription,
		Instructions:  BuildInstructions(snapshot),
		ContentHandle: handle.ID,
		Model:         p.model,
	})
	if err == nil && agentID == "" {
		err = errors.New("reasoning service returned an empty agent id")
	}
	if err != nil {
		err = fmt.Errorf("content %s uploaded but agent not created: %w", handle.ID, err)
		record(domain.StageRegister, started, err, "")
		return nil, domain.NewStageError(domain.StageRegister, err)
	}
	record(domain.StageRegister, started, nil, fmt.Sprintf("agent %s", agentID))

	reg := &domain.AgentRegistration{
		ID:             domain.GenerateID(),
		Deployment:     p.deployment,
		AgentID:        agentID,
		ContentHandle:  handle.ID,
		Provider:       p.reasoning.Provider(),
		Model:          p.model,
		SnapshotDigest: snapshot.Digest,
		RecordCount:    snapshot.RecordCount,
		CreatedAt:      time.Now().UTC(),
	}

	started = time.Now()
	if err := p.registrations.Activate(ctx, reg); err != nil {
		err = fmt.Errorf("agent %s created but not activated: %w", agentID, err)
		record(domain.StageActivate, started, err, "")
		return nil, domain.NewStageError(domain.StageActivate, err)
	}
	record(domain.StageActivate, started, nil, fmt.Sprintf("registration %s", reg.ID))

	if p.directory != nil {
		p.directory.Set(reg)
	}

	p.logger.Info("agent registration activated",
		"deployment", reg.Deployment,
		"registration_id", reg.ID,
		"agent_id", reg.AgentID,
		"superseded_id", reg.SupersededID,
	)
	return reg, nil
}

func (p *Publisher) upload(ctx context.Context, snapshot *domain.Snapshot) (*domain.ContentHandle, error) {
	r, err := p.snapshots.Open(ctx, snapshot.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer r.Close()

	handle, err := p.reasoning.UploadSnapshot(ctx, filepath.Base(snapshot.Path), r)
	if err != nil {
		return nil, err
	}
	if handle == nil || handle.ID == "" {
		return nil, errors.New("reasoning service returned an empty content handle")
	}
	return handle, nil
}
