package driven

import (
	"context"
	"io"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// SnapshotStore persists catalog snapshots as durable artifacts
type SnapshotStore interface {
	// Write serializes products to the artifact location, replacing any previous artifact.
	// The returned snapshot carries path, digest, record count and creation time.
	Write(ctx context.Context, products []*domain.SanitizedProduct) (*domain.Snapshot, error)

	// Open returns a reader over the artifact at path
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
