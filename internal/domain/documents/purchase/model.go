// Package purchase provides the Purchase document: an acquisition record
// that optionally feeds the batch ledger through batch intake.
package purchase

import (
	"context"

	"packstock/internal/core/apperror"
	"packstock/internal/core/entity"
	"packstock/internal/core/id"
	"packstock/internal/core/types"
	"packstock/internal/domain/ledger"
)

// Purchase records an acquisition. When ForInventory is set the purchase
// creates a ledger batch; otherwise it is a pure bookkeeping expense with
// no ledger effect.
type Purchase struct {
	entity.Document

	ProductID id.ID `db:"product_id" json:"productId"`

	// Packs and LooseUnits are the acquired quantity.
	Packs      int64 `db:"packs" json:"packs"`
	LooseUnits int64 `db:"loose_units" json:"looseUnits"`

	// Cost in the given basis, and the basis itself.
	Cost      types.Money      `db:"cost" json:"cost"`
	CostBasis ledger.CostBasis `db:"cost_basis" json:"costBasis"`

	// TotalCost is the full acquisition cost across all units.
	TotalCost types.Money `db:"total_cost" json:"totalCost"`

	ForInventory bool `db:"for_inventory" json:"forInventory"`

	// BatchID links to the batch this purchase created, when ForInventory.
	BatchID *id.ID `db:"batch_id" json:"batchId,omitempty"`
}

// NewPurchase creates an empty purchase document for a product.
func NewPurchase(productID id.ID) *Purchase {
	return &Purchase{
		Document:  entity.NewDocument(),
		ProductID: productID,
	}
}

// Validate implements entity.Validatable.
func (p *Purchase) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(p.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}

	if p.Packs < 0 || p.LooseUnits < 0 {
		return apperror.NewInvalidQuantity(p.Packs, p.LooseUnits)
	}

	if p.Cost.IsNegative() {
		return apperror.NewValidation("cost cannot be negative").
			WithDetail("field", "cost")
	}

	if !p.CostBasis.Valid() {
		return apperror.NewValidation("invalid cost basis").
			WithDetail("field", "costBasis").
			WithDetail("value", string(p.CostBasis))
	}

	return nil
}
