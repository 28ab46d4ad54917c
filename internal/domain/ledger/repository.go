package ledger

import (
	"context"

	"packstock/internal/core/id"
)

// BatchRepository persists the batch ledger. Implementations live in
// infrastructure/storage/postgres.
type BatchRepository interface {
	// Create inserts a new batch.
	Create(ctx context.Context, batch *Batch) error

	// GetByProduct returns all batches for a product, including drained ones.
	GetByProduct(ctx context.Context, productID id.ID) ([]*Batch, error)

	// GetByProductForUpdate locks the product's batches for the duration of
	// the surrounding transaction. Ledger mutations must use this read so
	// concurrent sessions serialize per product.
	GetByProductForUpdate(ctx context.Context, productID id.ID) ([]*Batch, error)

	// UpdateRemainders writes back the remaining-unit counters of the given
	// batches. Other batch fields are immutable after creation.
	UpdateRemainders(ctx context.Context, batches []*Batch) error

	// Delete removes a batch permanently.
	Delete(ctx context.Context, batchID id.ID) error
}
