package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"packstock/internal/core/id"
	"packstock/internal/domain"
	"packstock/internal/domain/catalogs/product"
	"packstock/internal/domain/ledger"
	"packstock/internal/infrastructure/storage/postgres"
)

const productTable = "cat_products"

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
	batches ledger.BatchRepository
}

// NewProductRepo creates a new product repository.
func NewProductRepo(batches ledger.BatchRepository) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*product.Product](
			productTable,
			postgres.ExtractDBColumns[product.Product](),
			func() *product.Product { return &product.Product{} },
		),
		batches: batches,
	}
}

// GetWithBatches retrieves a product with its batch ledger loaded.
func (r *ProductRepo) GetWithBatches(ctx context.Context, productID id.ID) (*product.Product, error) {
	prod, err := r.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	prod.Batches, err = r.batches.GetByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return prod, nil
}

// GetForUpdate retrieves a product with a row lock and its batches loaded.
// The batch rows are locked too, so concurrent sales against the same
// product serialize on the product row before touching the ledger.
func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	prod, err := r.BaseCatalogRepo.GetForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	prod.Batches, err = r.batches.GetByProductForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	return prod, nil
}

// UpdateAggregate writes only the cached aggregate stock figure.
// Bypasses optimistic locking: callers hold the product row lock already.
func (r *ProductRepo) UpdateAggregate(ctx context.Context, productID id.ID, aggregate int64) error {
	q := r.Builder().
		Update(productTable).
		Set("aggregate_stock", aggregate).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": productID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update aggregate: %w", err)
	}

	result, err := r.getTxManager(ctx).GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update aggregate: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update aggregate: product %s not found", productID)
	}

	return nil
}

// FindLowStock retrieves products with stock at or below their threshold.
// Products with a zero threshold never report as low.
func (r *ProductRepo) FindLowStock(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	result := domain.ListResult[*product.Product]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect(ctx).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.Gt{"low_stock_threshold": 0}).
		Where(squirrel.Expr("aggregate_stock <= low_stock_threshold")).
		OrderBy("name ASC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build low stock query: %w", err)
	}

	var items []*product.Product
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return result, fmt.Errorf("find low stock: %w", err)
	}
	result.Items = items
	result.TotalCount = int64(len(items))

	return result, nil
}
