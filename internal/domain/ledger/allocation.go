package ledger

import (
	"sort"

	"packstock/internal/core/id"
	"packstock/internal/core/types"
)

// Allocation links a sale to one batch it drew from. UnitCost is the batch's
// cost per unit at the moment of the take - a snapshot, not a live reference.
// The snapshot is what keeps reversal and profit reporting correct even if
// the batch's cost is later edited.
type Allocation struct {
	BatchID    id.ID       `db:"batch_id" json:"batchId"`
	UnitsTaken int64       `db:"units_taken" json:"unitsTaken"`
	UnitCost   types.Money `db:"unit_cost" json:"unitCost"`
}

// CostTotal is the weighted acquisition cost of the allocated units.
func CostTotal(allocations []Allocation) types.Money {
	total := types.Zero()
	for _, a := range allocations {
		total = total.Add(a.UnitCost.Mul(types.NewMoneyFromInt(a.UnitsTaken)))
	}
	return total
}

// UnitsAllocated sums the units across allocation entries.
func UnitsAllocated(allocations []Allocation) int64 {
	var total int64
	for _, a := range allocations {
		total += a.UnitsTaken
	}
	return total
}

// AllocationResult is the outcome of one FIFO allocation pass.
type AllocationResult struct {
	// Allocations in batch consumption order. An entry is only recorded
	// when at least one unit was taken from its batch.
	Allocations []Allocation

	// Batches is the mutated copy of the input collection. The input is
	// never touched, so a caller that hits a downstream failure rolls back
	// by discarding this copy.
	Batches []*Batch

	// Taken is the unit count actually allocated. Taken < requested means
	// supply ran out; that is reported, not raised - the caller decides
	// whether a shortfall is fatal.
	Taken int64
}

// Shortfall returns how many requested units could not be covered.
func (r AllocationResult) Shortfall(requested int64) int64 {
	if r.Taken >= requested {
		return 0
	}
	return requested - r.Taken
}

// Allocate walks a product's batches oldest-first and consumes remaining
// units until unitsToTake is satisfied or supply is exhausted.
//
// Batches are ordered by acquisition timestamp ascending; creation-time ties
// break on batch ID, which for UUIDv7 equals insertion order, giving a
// deterministic total order.
//
// Guarantees: Taken <= unitsToTake; Taken == sum of entry units; no batch's
// RemainingUnits is ever driven negative.
func Allocate(batches []*Batch, unitsToTake int64) AllocationResult {
	work := CloneAll(batches)
	sortFIFO(work)

	result := AllocationResult{
		Allocations: make([]Allocation, 0, len(work)),
		Batches:     work,
	}

	needed := unitsToTake
	for _, b := range work {
		if needed <= 0 {
			break
		}
		take := b.Take(needed)
		if take == 0 {
			continue
		}
		result.Allocations = append(result.Allocations, Allocation{
			BatchID:    b.ID,
			UnitsTaken: take,
			UnitCost:   b.CostPerUnit,
		})
		result.Taken += take
		needed -= take
	}

	return result
}

// RestoreResult is the outcome of replaying an allocation snapshot back onto
// its source batches.
type RestoreResult struct {
	// Batches is the mutated copy with restored remainders.
	Batches []*Batch

	// Restored is the unit count actually put back.
	Restored int64

	// Orphaned holds allocation entries whose batch no longer exists. Their
	// units are dropped; the caller should surface a warning rather than
	// silently losing them.
	Orphaned []Allocation
}

// Restore replays an allocation snapshot onto the batches it came from,
// matched by batch id. Like Allocate it operates on a copy.
func Restore(batches []*Batch, allocations []Allocation) RestoreResult {
	work := CloneAll(batches)

	byID := make(map[id.ID]*Batch, len(work))
	for _, b := range work {
		byID[b.ID] = b
	}

	result := RestoreResult{Batches: work}
	for _, a := range allocations {
		b, ok := byID[a.BatchID]
		if !ok {
			result.Orphaned = append(result.Orphaned, a)
			continue
		}
		b.Restore(a.UnitsTaken)
		result.Restored += a.UnitsTaken
	}

	return result
}

func sortFIFO(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		if batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return id.Less(batches[i].ID, batches[j].ID)
		}
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})
}
