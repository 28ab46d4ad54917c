// Package ledger provides the batch-based inventory ledger: discrete stock
// batches per product, FIFO cost allocation against them, and the aggregate
// stock reconciliation rule.
package ledger

import (
	"time"

	"packstock/internal/core/id"
	"packstock/internal/core/types"
)

// CostBasis says how an acquisition cost is expressed.
type CostBasis string

const (
	// CostBasisPerPack - the cost covers one whole pack
	CostBasisPerPack CostBasis = "per_pack"
	// CostBasisPerUnit - the cost covers one loose unit
	CostBasisPerUnit CostBasis = "per_unit"
)

// Valid reports whether the basis is one of the two known values.
func (b CostBasis) Valid() bool {
	return b == CostBasisPerPack || b == CostBasisPerUnit
}

// Batch is a discrete acquisition of stock: a quantity received at a point
// in time with its own unit cost. Batches are consumed oldest-first.
//
// Invariant: 0 <= RemainingUnits <= UnitsAdded at all times outside an
// in-flight reversal-then-reallocate transition.
type Batch struct {
	ID        id.ID `db:"id" json:"id"`
	ProductID id.ID `db:"product_id" json:"productId"`

	// PurchaseID links back to the purchase that created the batch (nullable:
	// batches can also be added directly).
	PurchaseID *id.ID `db:"purchase_id" json:"purchaseId,omitempty"`

	// CreatedAt is the acquisition timestamp - the FIFO sort key.
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	// UnitsAdded is the total unit count this batch contributed, fixed at creation.
	UnitsAdded int64 `db:"units_added" json:"unitsAdded"`

	// RemainingUnits decreases as sales allocate against the batch and
	// increases only during reversal.
	RemainingUnits int64 `db:"remaining_units" json:"remainingUnits"`

	// CostPerUnit and CostPerPack are two views of the same acquisition cost,
	// kept numerically consistent: CostPerPack = CostPerUnit * pack size.
	CostPerUnit types.Money `db:"cost_per_unit" json:"costPerUnit"`
	CostPerPack types.Money `db:"cost_per_pack" json:"costPerPack"`
}

// BatchInput carries the raw intake figures for the batch factory.
type BatchInput struct {
	// Packs and Units express the received quantity as whole packs plus
	// loose units. Both must be >= 0.
	Packs int64
	Units int64

	// PackSize is the owning product's units-per-pack constant (>= 1).
	PackSize int64

	// Cost is the acquisition cost in the given basis.
	Cost  types.Money
	Basis CostBasis

	// AcquiredAt defaults to now when zero.
	AcquiredAt time.Time
}

// ComputeUnits converts a packs+units quantity to a total unit count.
func ComputeUnits(packSize, packs, units int64) int64 {
	return packs*packSize + units
}

// SplitUnits splits a total unit count into whole packs and a loose-unit
// remainder. Used by two-tier pricing: a full pack may legitimately be
// priced differently from the equivalent loose units.
func SplitUnits(total, packSize int64) (packs, remainder int64) {
	if packSize <= 0 {
		return 0, total
	}
	return total / packSize, total % packSize
}

// NewBatch builds a batch from raw intake figures, normalizing the quantity
// to a canonical unit count and the cost to both per-unit and per-pack views.
// A zero-unit batch is not an error here; rejecting it is the caller's call.
func NewBatch(productID id.ID, in BatchInput) *Batch {
	acquiredAt := in.AcquiredAt
	if acquiredAt.IsZero() {
		acquiredAt = time.Now().UTC()
	}

	units := ComputeUnits(in.PackSize, in.Packs, in.Units)

	var costPerUnit, costPerPack types.Money
	packSize := types.NewMoneyFromInt(in.PackSize)
	switch in.Basis {
	case CostBasisPerPack:
		costPerPack = in.Cost
		costPerUnit = in.Cost.Div(packSize)
	default:
		costPerUnit = in.Cost
		costPerPack = in.Cost.Mul(packSize)
	}

	return &Batch{
		ID:             id.New(),
		ProductID:      productID,
		CreatedAt:      acquiredAt,
		UnitsAdded:     units,
		RemainingUnits: units,
		CostPerUnit:    costPerUnit,
		CostPerPack:    costPerPack,
	}
}

// Clone returns a copy of the batch. The allocation engine works on copies
// so callers can roll back by discarding them.
func (b *Batch) Clone() *Batch {
	c := *b
	return &c
}

// CloneAll copies a batch slice element-wise.
func CloneAll(batches []*Batch) []*Batch {
	out := make([]*Batch, len(batches))
	for i, b := range batches {
		out[i] = b.Clone()
	}
	return out
}

// Take consumes up to want units from the batch and returns how many were
// actually taken. RemainingUnits is never driven negative.
func (b *Batch) Take(want int64) int64 {
	if want <= 0 || b.RemainingUnits <= 0 {
		return 0
	}
	take := want
	if take > b.RemainingUnits {
		take = b.RemainingUnits
	}
	b.RemainingUnits -= take
	return take
}

// Restore puts previously allocated units back onto the batch.
func (b *Batch) Restore(units int64) {
	if units <= 0 {
		return
	}
	b.RemainingUnits += units
}

// IsDrained reports whether the batch has no units left.
func (b *Batch) IsDrained() bool {
	return b.RemainingUnits <= 0
}
