package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/domain"
	"packstock/internal/domain/documents/sale"
	"packstock/internal/domain/ledger"
	"packstock/internal/infrastructure/storage/postgres"
)

const (
	salesTable           = "doc_sales"
	saleAllocationsTable = "doc_sale_allocations"
)

// SaleRepo implements sale.Repository.
type SaleRepo struct {
	*BaseDocumentRepo[*sale.Sale]
}

// NewSaleRepo creates a new sale repository.
func NewSaleRepo() *SaleRepo {
	return &SaleRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*sale.Sale](
			salesTable,
			postgres.ExtractDBColumns[sale.Sale](),
			func() *sale.Sale { return &sale.Sale{} },
		),
	}
}

// Delete removes the sale and its allocation snapshot permanently.
// Reversal workflows restore the batches first, so nothing references
// the allocations once the document goes.
func (r *SaleRepo) Delete(ctx context.Context, docID id.ID) error {
	querier := r.getTxManager(ctx).GetQuerier(ctx)

	if _, err := querier.Exec(ctx,
		"DELETE FROM "+saleAllocationsTable+" WHERE document_id = $1", docID); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}

	result, err := querier.Exec(ctx,
		"DELETE FROM "+salesTable+" WHERE id = $1", docID)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(salesTable, docID.String())
	}

	return nil
}

// GetAllocations returns the allocation snapshot for a sale in the order
// the batches were consumed.
func (r *SaleRepo) GetAllocations(ctx context.Context, docID id.ID) ([]ledger.Allocation, error) {
	q := r.Builder().
		Select("batch_id", "units_taken", "unit_cost").
		From(saleAllocationsTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var allocations []ledger.Allocation
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &allocations, sql, args...); err != nil {
		return nil, fmt.Errorf("get allocations: %w", err)
	}

	return allocations, nil
}

// copyThreshold is the allocation count from which the COPY protocol beats
// a multi-row INSERT.
const copyThreshold = 16

// SaveAllocations replaces the allocation snapshot of a sale.
func (r *SaleRepo) SaveAllocations(ctx context.Context, docID id.ID, allocations []ledger.Allocation) error {
	txm := r.getTxManager(ctx)
	querier := txm.GetQuerier(ctx)

	deleteSQL := "DELETE FROM " + saleAllocationsTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing allocations: %w", err)
	}

	if len(allocations) == 0 {
		return nil
	}

	if len(allocations) >= copyThreshold && txm.GetTx(ctx) != nil {
		rows := make([][]any, len(allocations))
		for i, a := range allocations {
			rows[i] = []any{docID, i + 1, a.BatchID, a.UnitsTaken, a.UnitCost}
		}
		inserter := postgres.NewBatchInserter(txm)
		if _, err := inserter.CopyFromSlice(ctx, saleAllocationsTable,
			[]string{"document_id", "line_no", "batch_id", "units_taken", "unit_cost"}, rows); err != nil {
			return fmt.Errorf("copy allocations: %w", err)
		}
		return nil
	}

	q := r.Builder().
		Insert(saleAllocationsTable).
		Columns("document_id", "line_no", "batch_id", "units_taken", "unit_cost")

	for i, a := range allocations {
		q = q.Values(docID, i+1, a.BatchID, a.UnitsTaken, a.UnitCost)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert allocations: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert allocations: %w", err)
	}

	return nil
}

// List retrieves sales with domain filtering.
func (r *SaleRepo) List(ctx context.Context, filter sale.ListFilter) (domain.ListResult[*sale.Sale], error) {
	result := domain.ListResult[*sale.Sale]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect(ctx)

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}

	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}

	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select: %w", err)
	}

	return result, nil
}
