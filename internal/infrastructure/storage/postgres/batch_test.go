package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyFromSlice_RequiresTransaction(t *testing.T) {
	inserter := NewBatchInserter(NewTxManagerFromRawPool(nil))

	rows := [][]any{{"doc-1", 1, "batch-1", int64(5), "1.25"}}
	n, err := inserter.CopyFromSlice(context.Background(), "doc_sale_allocations",
		[]string{"document_id", "line_no", "batch_id", "units_taken", "unit_cost"}, rows)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires transaction")
	assert.Zero(t, n)
}

func TestExecuteBatch_RequiresTransaction(t *testing.T) {
	executor := NewBatchExecutor(NewTxManagerFromRawPool(nil))

	err := executor.ExecuteBatch(context.Background(), []BatchQuery{
		{SQL: "UPDATE ledger_batches SET units_remaining = $1 WHERE id = $2", Args: []any{int64(0), "batch-1"}},
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires transaction")
}
