// Package ledger_repo provides the PostgreSQL implementation of the batch
// ledger repository.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/domain/ledger"
	"packstock/internal/infrastructure/storage/postgres"
)

const batchTable = "ledger_batches"

// BatchRepo implements ledger.BatchRepository.
type BatchRepo struct {
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewBatchRepo creates a new batch ledger repository.
func NewBatchRepo() *BatchRepo {
	return &BatchRepo{
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[ledger.Batch](),
	}
}

// getTxManager retrieves TxManager from context.
func (r *BatchRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts a new batch.
func (r *BatchRepo) Create(ctx context.Context, batch *ledger.Batch) error {
	data := postgres.StructToMap(batch)

	q := r.builder.
		Insert(batchTable).
		SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	return nil
}

// GetByProduct returns all batches for a product in FIFO order, drained
// batches included.
func (r *BatchRepo) GetByProduct(ctx context.Context, productID id.ID) ([]*ledger.Batch, error) {
	return r.getByProduct(ctx, productID, false)
}

// GetByProductForUpdate locks the product's batch rows for the duration of
// the surrounding transaction.
func (r *BatchRepo) GetByProductForUpdate(ctx context.Context, productID id.ID) ([]*ledger.Batch, error) {
	return r.getByProduct(ctx, productID, true)
}

func (r *BatchRepo) getByProduct(ctx context.Context, productID id.ID, forUpdate bool) ([]*ledger.Batch, error) {
	q := r.builder.
		Select(r.selectCols...).
		From(batchTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at ASC", "id ASC")

	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []*ledger.Batch
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("get batches: %w", err)
	}

	return batches, nil
}

// UpdateRemainders writes back the remaining-unit counters of the given
// batches. Other batch fields are immutable after creation.
func (r *BatchRepo) UpdateRemainders(ctx context.Context, batches []*ledger.Batch) error {
	if len(batches) == 0 {
		return nil
	}

	txm := r.getTxManager(ctx)

	queries := make([]postgres.BatchQuery, 0, len(batches))
	for _, b := range batches {
		q := r.builder.
			Update(batchTable).
			Set("remaining_units", b.RemainingUnits).
			Where(squirrel.Eq{"id": b.ID})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	// Fast path: single round trip when inside a transaction.
	if txm.GetTx(ctx) != nil {
		executor := postgres.NewBatchExecutor(txm)
		if err := executor.ExecuteBatch(ctx, queries); err != nil {
			return fmt.Errorf("update batch remainders: %w", err)
		}
		return nil
	}

	// Fallback: one statement per batch. Prefer calling within tx.
	querier := txm.GetQuerier(ctx)
	for i, q := range queries {
		result, err := querier.Exec(ctx, q.SQL, q.Args...)
		if err != nil {
			return fmt.Errorf("update batch remainder: %w", err)
		}
		if result.RowsAffected() == 0 {
			return apperror.NewNotFound("batch", batches[i].ID.String())
		}
	}

	return nil
}

// Delete removes a batch permanently.
func (r *BatchRepo) Delete(ctx context.Context, batchID id.ID) error {
	q := r.builder.
		Delete(batchTable).
		Where(squirrel.Eq{"id": batchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.getTxManager(ctx).GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", batchID.String())
	}

	return nil
}
