package sale

import (
	"context"
	"time"

	"packstock/internal/core/id"
	"packstock/internal/domain"
	"packstock/internal/domain/ledger"
)

// Repository defines persistence for sale documents. The allocation
// snapshot is stored separately from the sale row, mirroring the split
// between a document and its table part.
type Repository interface {
	Create(ctx context.Context, doc *Sale) error
	GetByID(ctx context.Context, docID id.ID) (*Sale, error)
	GetByNumber(ctx context.Context, number string) (*Sale, error)
	Update(ctx context.Context, doc *Sale) error
	Delete(ctx context.Context, docID id.ID) error

	GetAllocations(ctx context.Context, docID id.ID) ([]ledger.Allocation, error)
	SaveAllocations(ctx context.Context, docID id.ID, allocations []ledger.Allocation) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Sale], error)
}

// ListFilter for filtering sales.
type ListFilter struct {
	domain.ListFilter

	ProductID *id.ID
	DateFrom  *time.Time
	DateTo    *time.Time
}
