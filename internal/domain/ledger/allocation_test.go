package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packstock/internal/core/id"
	"packstock/internal/core/types"
)

func makeBatch(t *testing.T, createdAt time.Time, units int64, unitCost string) *Batch {
	t.Helper()
	b := NewBatch(id.New(), BatchInput{
		Units:      units,
		PackSize:   1,
		Cost:       types.MustMoney(unitCost),
		Basis:      CostBasisPerUnit,
		AcquiredAt: createdAt,
	})
	return b
}

func TestAllocate_TwoBatchesOldestFirst(t *testing.T) {
	// batch1 Jan 1: 10 units @ 5; batch2 Jan 2: 20 units @ 6.
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	batch1 := makeBatch(t, jan1, 10, "5")
	batch2 := makeBatch(t, jan2, 20, "6")

	result := Allocate([]*Batch{batch2, batch1}, 25)

	require.Len(t, result.Allocations, 2)
	assert.Equal(t, batch1.ID, result.Allocations[0].BatchID)
	assert.Equal(t, int64(10), result.Allocations[0].UnitsTaken)
	assert.True(t, result.Allocations[0].UnitCost.Equal(types.MustMoney("5")))
	assert.Equal(t, batch2.ID, result.Allocations[1].BatchID)
	assert.Equal(t, int64(15), result.Allocations[1].UnitsTaken)
	assert.True(t, result.Allocations[1].UnitCost.Equal(types.MustMoney("6")))

	assert.Equal(t, int64(25), result.Taken)
	assert.True(t, CostTotal(result.Allocations).Equal(types.MustMoney("140")))

	// Mutated copy reflects the take; inputs stay untouched.
	assert.Equal(t, int64(0), findBatch(t, result.Batches, batch1.ID).RemainingUnits)
	assert.Equal(t, int64(5), findBatch(t, result.Batches, batch2.ID).RemainingUnits)
	assert.Equal(t, int64(10), batch1.RemainingUnits)
	assert.Equal(t, int64(20), batch2.RemainingUnits)
}

func TestAllocate_FIFOExhaustsOldestForEveryN(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	jan3 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	for n := int64(1); n <= 18; n++ {
		oldest := makeBatch(t, jan1, 5, "1")
		middle := makeBatch(t, jan2, 6, "2")
		newest := makeBatch(t, jan3, 7, "3")

		result := Allocate([]*Batch{newest, oldest, middle}, n)
		require.Equal(t, n, result.Taken)

		// A newer batch is only touched once every older one is drained.
		got := map[id.ID]*Batch{}
		for _, b := range result.Batches {
			got[b.ID] = b
		}
		if got[middle.ID].RemainingUnits < 6 {
			assert.Zero(t, got[oldest.ID].RemainingUnits, "n=%d", n)
		}
		if got[newest.ID].RemainingUnits < 7 {
			assert.Zero(t, got[middle.ID].RemainingUnits, "n=%d", n)
		}
	}
}

func TestAllocate_TimestampTieBreaksOnID(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	first := makeBatch(t, at, 3, "1")
	second := makeBatch(t, at, 3, "1")
	// UUIDv7 IDs are time-ordered: first was created first.
	require.True(t, id.Less(first.ID, second.ID))

	result := Allocate([]*Batch{second, first}, 4)

	require.Len(t, result.Allocations, 2)
	assert.Equal(t, first.ID, result.Allocations[0].BatchID)
	assert.Equal(t, int64(3), result.Allocations[0].UnitsTaken)
	assert.Equal(t, second.ID, result.Allocations[1].BatchID)
	assert.Equal(t, int64(1), result.Allocations[1].UnitsTaken)
}

func TestAllocate_ShortfallReportedNotRaised(t *testing.T) {
	b := makeBatch(t, time.Now(), 4, "2")

	result := Allocate([]*Batch{b}, 10)

	assert.Equal(t, int64(4), result.Taken)
	assert.Equal(t, int64(6), result.Shortfall(10))
	assert.Equal(t, result.Taken, UnitsAllocated(result.Allocations))
	assert.Equal(t, int64(0), findBatch(t, result.Batches, b.ID).RemainingUnits)
}

func TestAllocate_ExactDrain(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	b1 := makeBatch(t, jan1, 10, "5")
	b2 := makeBatch(t, jan2, 20, "6")

	result := Allocate([]*Batch{b1, b2}, 30)

	assert.Equal(t, int64(30), result.Taken)
	for _, b := range result.Batches {
		assert.Equal(t, int64(0), b.RemainingUnits)
	}
}

func TestAllocate_ZeroRequest(t *testing.T) {
	b := makeBatch(t, time.Now(), 5, "1")

	result := Allocate([]*Batch{b}, 0)

	assert.Empty(t, result.Allocations)
	assert.Equal(t, int64(0), result.Taken)
	assert.Equal(t, int64(5), findBatch(t, result.Batches, b.ID).RemainingUnits)
}

func TestAllocate_SkipsDrainedBatches(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	drained := makeBatch(t, jan1, 5, "1")
	drained.Take(5)
	live := makeBatch(t, jan1.Add(time.Hour), 5, "2")

	result := Allocate([]*Batch{drained, live}, 3)

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, live.ID, result.Allocations[0].BatchID)
}

func TestAllocate_Conservation(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batches := []*Batch{
		makeBatch(t, jan1, 10, "5"),
		makeBatch(t, jan1.AddDate(0, 0, 1), 20, "6"),
		makeBatch(t, jan1.AddDate(0, 0, 2), 15, "7"),
	}
	before := SumRemaining(batches)

	result := Allocate(batches, 27)

	// aggregate == sum of remainders after the committed step
	assert.Equal(t, before-result.Taken, SumRemaining(result.Batches))
	assert.Equal(t, result.Taken, UnitsAllocated(result.Allocations))
}

func TestRestore_ReversesAllocation(t *testing.T) {
	// Scenario: deleting the two-batch sale restores both remainders.
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	batch1 := makeBatch(t, jan1, 10, "5")
	batch2 := makeBatch(t, jan2, 20, "6")

	allocated := Allocate([]*Batch{batch1, batch2}, 25)
	require.Equal(t, int64(25), allocated.Taken)

	restored := Restore(allocated.Batches, allocated.Allocations)

	assert.Equal(t, int64(25), restored.Restored)
	assert.Empty(t, restored.Orphaned)
	assert.Equal(t, int64(10), findBatch(t, restored.Batches, batch1.ID).RemainingUnits)
	assert.Equal(t, int64(20), findBatch(t, restored.Batches, batch2.ID).RemainingUnits)
}

func TestRestore_ThenReallocateIsIdempotent(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batches := []*Batch{
		makeBatch(t, jan1, 10, "5"),
		makeBatch(t, jan1.AddDate(0, 0, 1), 20, "6"),
	}

	first := Allocate(batches, 17)
	restored := Restore(first.Batches, first.Allocations)
	second := Allocate(restored.Batches, 17)

	require.Len(t, second.Allocations, len(first.Allocations))
	for i := range first.Allocations {
		assert.Equal(t, first.Allocations[i].BatchID, second.Allocations[i].BatchID)
		assert.Equal(t, first.Allocations[i].UnitsTaken, second.Allocations[i].UnitsTaken)
	}
}

func TestRestore_OrphanedBatchReported(t *testing.T) {
	b := makeBatch(t, time.Now(), 10, "4")
	gone := Allocation{BatchID: id.New(), UnitsTaken: 5, UnitCost: types.MustMoney("4")}
	kept := Allocation{BatchID: b.ID, UnitsTaken: 3, UnitCost: types.MustMoney("4")}
	b.Take(3)

	result := Restore([]*Batch{b}, []Allocation{gone, kept})

	assert.Equal(t, int64(3), result.Restored)
	require.Len(t, result.Orphaned, 1)
	assert.Equal(t, gone.BatchID, result.Orphaned[0].BatchID)
	assert.Equal(t, int64(10), findBatch(t, result.Batches, b.ID).RemainingUnits)
}

func TestAvailableUnits(t *testing.T) {
	batches := []*Batch{
		makeBatch(t, time.Now(), 10, "1"),
		makeBatch(t, time.Now(), 5, "1"),
	}

	assert.Equal(t, int64(15), AvailableUnits(nil, batches))

	cached := int64(12)
	assert.Equal(t, int64(12), AvailableUnits(&cached, batches))

	negative := int64(-3)
	assert.Equal(t, int64(0), AvailableUnits(&negative, batches))
}

func TestClampStock(t *testing.T) {
	assert.Equal(t, int64(0), ClampStock(-1))
	assert.Equal(t, int64(0), ClampStock(0))
	assert.Equal(t, int64(7), ClampStock(7))
}

func findBatch(t *testing.T, batches []*Batch, batchID id.ID) *Batch {
	t.Helper()
	for _, b := range batches {
		if b.ID == batchID {
			return b
		}
	}
	t.Fatalf("batch %s not found", batchID)
	return nil
}
