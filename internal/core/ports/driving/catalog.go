package driving

import (
	"context"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// CatalogExporter turns the product store into a sanitized snapshot artifact
type CatalogExporter interface {
	// Export reads every product, sanitizes structured fields and writes the snapshot.
	// A malformed field never fails the export; only artifact I/O does.
	Export(ctx context.Context) (*domain.Snapshot, error)
}

// KnowledgePublisher binds a snapshot to a newly created reasoning agent
type KnowledgePublisher interface {
	// Publish uploads the snapshot, creates an agent and activates its registration.
	// Failures are *domain.StageError tagged upload, register or activate.
	Publish(ctx context.Context, snapshot *domain.Snapshot) (*domain.AgentRegistration, error)
}

// PublishPipeline runs export, publish and smoke test as one exclusive job
type PublishPipeline interface {
	// Run executes the pipeline. The report is returned even when a stage fails.
	Run(ctx context.Context, opts domain.PublishOptions) (*domain.PublishReport, error)
}
