package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProductStore = (*ProductStore)(nil)

// ProductStore implements driven.ProductStore over the products table.
// It only reads; the admin panels own writes.
type ProductStore struct {
	db *DB
}

// NewProductStore creates a new ProductStore
func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

// ListProducts returns every product ordered by id.
// Structured columns come back as raw text; NULL reads as "".
func (s *ProductStore) ListProducts(ctx context.Context) ([]*domain.ProductRecord, error) {
	query := `
		SELECT id, name, description, category, price,
		       tags, advantages, disadvantages, pricing_info, video_urls,
		       detail_info, image_url, external_url, has_trial, updated_at
		FROM products
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.ProductRecord
	for rows.Next() {
		var p domain.ProductRecord
		var tags, advantages, disadvantages, pricingInfo, videoURLs sql.NullString

		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Category,
			&p.Price,
			&tags,
			&advantages,
			&disadvantages,
			&pricingInfo,
			&videoURLs,
			&p.DetailInfo,
			&p.ImageURL,
			&p.ExternalURL,
			&p.HasTrial,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		p.Tags = tags.String
		p.Advantages = advantages.String
		p.Disadvantages = disadvantages.String
		p.PricingInfo = pricingInfo.String
		p.VideoURLs = videoURLs.String
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

// ExistingIDs reports which of ids are present in the catalog
func (s *ProductStore) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query product ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product ids: %w", err)
	}
	return found, nil
}
