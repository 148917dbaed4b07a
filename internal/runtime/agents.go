package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// AgentDirectory holds the registration currently serving a deployment.
// Intake reads it on every submit; publish and refresh replace it.
// Thread-safe for concurrent access.
type AgentDirectory struct {
	mu      sync.RWMutex
	current *domain.AgentRegistration
	// generation counts installs; Refresh only installs if none happened during its read
	generation uint64

	store      driven.RegistrationStore
	deployment string
	logger     *slog.Logger
}

// NewAgentDirectory creates a directory for deployment backed by store.
// store may be nil, in which case only Set changes the current agent.
func NewAgentDirectory(store driven.RegistrationStore, deployment string, logger *slog.Logger) *AgentDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	if deployment == "" {
		deployment = domain.DefaultDeployment
	}
	return &AgentDirectory{
		store:      store,
		deployment: deployment,
		logger:     logger,
	}
}

// Deployment returns the deployment this directory tracks
func (d *AgentDirectory) Deployment() string {
	return d.deployment
}

// Current returns the active registration (may be nil)
func (d *AgentDirectory) Current() *domain.AgentRegistration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Set replaces the current registration. Registrations for other deployments are ignored.
func (d *AgentDirectory) Set(reg *domain.AgentRegistration) {
	d.install(reg, 0, false)
}

// install swaps in reg. With conditional set, it only does so while the
// generation still equals seen, so a refresh that read the store before a
// concurrent Set cannot put the superseded registration back.
func (d *AgentDirectory) install(reg *domain.AgentRegistration, seen uint64, conditional bool) bool {
	if reg == nil || reg.Deployment != d.deployment {
		return false
	}

	d.mu.Lock()
	if conditional && d.generation != seen {
		d.mu.Unlock()
		return false
	}
	prev := d.current
	d.current = reg
	d.generation++
	d.mu.Unlock()

	if prev == nil || prev.ID != reg.ID {
		d.logger.Info("active agent changed",
			"deployment", d.deployment,
			"registration_id", reg.ID,
			"agent_id", reg.AgentID,
		)
	}
	return true
}

// Refresh reloads the active registration from the store.
// An unpublished deployment leaves the directory empty without error.
// A Set that lands while the store is being read wins over the read.
func (d *AgentDirectory) Refresh(ctx context.Context) error {
	if d.store == nil {
		return nil
	}

	d.mu.RLock()
	seen := d.generation
	d.mu.RUnlock()

	reg, err := d.store.Active(ctx, d.deployment)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveAgent) {
			return nil
		}
		return err
	}
	if !d.install(reg, seen, true) {
		d.logger.Debug("discarded stale agent refresh", "deployment", d.deployment, "registration_id", reg.ID)
	}
	return nil
}

// Watch refreshes every interval until ctx is cancelled.
func (d *AgentDirectory) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				d.logger.Warn("agent refresh failed", "deployment", d.deployment, "error", err)
			}
		}
	}
}
