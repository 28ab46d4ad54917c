package purchase

import (
	"context"
	"time"

	"packstock/internal/core/id"
	"packstock/internal/domain"
)

// Repository defines persistence for purchase documents.
type Repository interface {
	Create(ctx context.Context, doc *Purchase) error
	GetByID(ctx context.Context, docID id.ID) (*Purchase, error)
	GetByNumber(ctx context.Context, number string) (*Purchase, error)
	Update(ctx context.Context, doc *Purchase) error
	Delete(ctx context.Context, docID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Purchase], error)
}

// ListFilter for filtering purchases.
type ListFilter struct {
	domain.ListFilter

	ProductID    *id.ID
	ForInventory *bool
	DateFrom     *time.Time
	DateTo       *time.Time
}
