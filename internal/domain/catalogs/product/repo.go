package product

import (
	"context"

	"packstock/internal/core/id"
	"packstock/internal/domain"
)

// Repository defines the interface for Product persistence.
type Repository interface {
	domain.CatalogRepository[*Product]

	// GetWithBatches retrieves a product with its batch ledger loaded.
	GetWithBatches(ctx context.Context, id id.ID) (*Product, error)

	// GetForUpdate retrieves a product with a row lock, batches included.
	// Workflows that mutate batches must read through this to serialize
	// concurrent sales against the same product.
	GetForUpdate(ctx context.Context, id id.ID) (*Product, error)

	// UpdateAggregate writes only the cached aggregate stock figure.
	UpdateAggregate(ctx context.Context, id id.ID, aggregate int64) error

	// FindLowStock retrieves products with stock at or below their threshold.
	FindLowStock(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error)
}
