// Package sale provides the Sale document: an outgoing stock movement
// fulfilled by FIFO allocation against the product's batch ledger.
package sale

import (
	"context"

	"packstock/internal/core/apperror"
	"packstock/internal/core/entity"
	"packstock/internal/core/id"
	"packstock/internal/core/types"
	"packstock/internal/domain/ledger"
)

// Sale records a fulfilled outgoing quantity together with the allocation
// snapshot it drew from the ledger. The snapshot (batch id, units taken,
// unit cost at take time) is what makes reversal and profit reporting
// stable even if batch costs are later edited.
type Sale struct {
	entity.Document

	ProductID id.ID `db:"product_id" json:"productId"`

	// Packs and LooseUnits are the quantity as requested.
	Packs      int64 `db:"packs" json:"packs"`
	LooseUnits int64 `db:"loose_units" json:"looseUnits"`

	// TotalUnitsSold is the fulfilled unit count. Always equals the
	// requested total: insufficient stock fails the sale, it never
	// partially fills.
	TotalUnitsSold int64 `db:"total_units_sold" json:"totalUnitsSold"`

	// PricePerUnit and PricePerPack are the selling prices applied,
	// either given explicitly or inherited from the product.
	PricePerUnit types.Money `db:"price_per_unit" json:"pricePerUnit"`
	PricePerPack types.Money `db:"price_per_pack" json:"pricePerPack"`

	// Revenue, CostTotal and Profit are derived at sale time.
	// Revenue prices complete packs and the loose remainder separately.
	Revenue   types.Money `db:"revenue" json:"revenue"`
	CostTotal types.Money `db:"cost_total" json:"costTotal"`
	Profit    types.Money `db:"profit" json:"profit"`

	// CostPerUnitEffective is the weighted average cost of the units sold.
	CostPerUnitEffective types.Money `db:"cost_per_unit_effective" json:"costPerUnitEffective"`

	// Allocations is the snapshot, stored separately from the sale row.
	Allocations []ledger.Allocation `db:"-" json:"allocations"`
}

// NewSale creates an empty sale document for a product.
func NewSale(productID id.ID) *Sale {
	return &Sale{
		Document:  entity.NewDocument(),
		ProductID: productID,
	}
}

// Validate implements entity.Validatable.
func (s *Sale) Validate(ctx context.Context) error {
	if err := s.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(s.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}

	if s.Packs < 0 || s.LooseUnits < 0 {
		return apperror.NewInvalidQuantity(s.Packs, s.LooseUnits)
	}

	return nil
}

// UnitsFromAllocations sums the snapshot. For a consistent sale this
// equals TotalUnitsSold.
func (s *Sale) UnitsFromAllocations() int64 {
	return ledger.UnitsAllocated(s.Allocations)
}
