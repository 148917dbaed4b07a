package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driving"
)

// Ensure Exporter implements CatalogExporter
var _ driving.CatalogExporter = (*Exporter)(nil)

// Exporter reads the product store and writes a sanitized snapshot.
type Exporter struct {
	products  driven.ProductStore
	snapshots driven.SnapshotStore
	logger    *slog.Logger
}

// ExporterConfig holds dependencies for Exporter.
type ExporterConfig struct {
	Products  driven.ProductStore
	Snapshots driven.SnapshotStore
	Logger    *slog.Logger
}

// NewExporter creates a new catalog exporter.
func NewExporter(cfg ExporterConfig) *Exporter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		products:  cfg.Products,
		snapshots: cfg.Snapshots,
		logger:    logger,
	}
}

// Export reads every product record, sanitizes it and writes the snapshot artifact.
func (e *Exporter) Export(ctx context.Context) (*domain.Snapshot, error) {
	start := time.Now()

	records, err := e.products.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	e.logger.Info("exporting catalog", "records", len(records))

	report := domain.NewSanitizeReport()
	report.Records = len(records)

	sanitized := make([]*domain.SanitizedProduct, 0, len(records))
	ids := make([]string, 0, len(records))
	names := make(map[string]string, len(records))

	for _, rec := range records {
		product, results := SanitizeProduct(rec)
		for _, res := range results {
			report.Add(res)
			if res.Status == domain.FieldMalformed {
				e.logger.Warn("malformed product field replaced by default",
					"product_id", res.ProductID,
					"field", res.Field,
					"reason", res.Reason,
				)
			}
		}
		sanitized = append(sanitized, product)
		ids = append(ids, product.ID)
		names[product.ID] = product.Name
	}

	snapshot, err := e.snapshots.Write(ctx, sanitized)
	if err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	snapshot.Report = report
	snapshot.ProductIDs = ids
	snapshot.ProductNames = names

	attrs := []any{
		"path", snapshot.Path,
		"records", snapshot.RecordCount,
		"parsed", report.Parsed,
		"empty", report.Empty,
		"malformed", report.MalformedTotal(),
		"digest", snapshot.Digest,
		"duration", time.Since(start),
	}
	if report.MalformedTotal() > 0 {
		e.logger.Warn("catalog exported with defaulted fields", attrs...)
	} else {
		e.logger.Info("catalog exported", attrs...)
	}

	return snapshot, nil
}
