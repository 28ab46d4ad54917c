// Package product provides the Product catalog: sellable items with
// two-tier pack/unit pricing and a cached aggregate stock figure backed
// by the batch ledger.
package product

import (
	"context"

	"packstock/internal/core/apperror"
	"packstock/internal/core/entity"
	"packstock/internal/core/types"
	"packstock/internal/domain/ledger"
)

// Product represents a sellable item. Stock lives in the batch ledger;
// AggregateStock is a cached derivation of the batch remainders and must
// be refreshed whenever batches mutate.
type Product struct {
	entity.Catalog

	// PackSize is the units-per-pack constant for quantity conversion (>= 1).
	PackSize int64 `db:"pack_size" json:"packSize"`

	// PricePerUnit and PricePerPack are the two selling-price tiers.
	// Revenue for a sale is complete packs at the pack price plus the
	// loose remainder at the unit price.
	PricePerUnit types.Money `db:"price_per_unit" json:"pricePerUnit"`
	PricePerPack types.Money `db:"price_per_pack" json:"pricePerPack"`

	// LowStockThreshold triggers a stock.low event when the aggregate
	// drops to or below it. Zero disables the alert.
	LowStockThreshold int64 `db:"low_stock_threshold" json:"lowStockThreshold"`

	// AggregateStock is the cached total of batch remainders, clamped >= 0.
	AggregateStock int64 `db:"aggregate_stock" json:"aggregateStock"`

	// Batches is the ledger, loaded separately from the product row.
	Batches []*ledger.Batch `db:"-" json:"batches,omitempty"`
}

// NewProduct creates a product with required fields.
func NewProduct(code, name string, packSize int64) *Product {
	return &Product{
		Catalog:      entity.NewCatalog(code, name),
		PackSize:     packSize,
		PricePerUnit: types.Zero(),
		PricePerPack: types.Zero(),
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	if p.PackSize < 1 {
		return apperror.NewValidation("pack size must be at least 1").
			WithDetail("field", "packSize").
			WithDetail("value", p.PackSize)
	}

	if p.PricePerUnit.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").
			WithDetail("field", "pricePerUnit")
	}

	if p.PricePerPack.IsNegative() {
		return apperror.NewValidation("pack price cannot be negative").
			WithDetail("field", "pricePerPack")
	}

	if p.LowStockThreshold < 0 {
		return apperror.NewValidation("low stock threshold cannot be negative").
			WithDetail("field", "lowStockThreshold")
	}

	return nil
}

// AvailableUnits returns the product's current available stock, preferring
// the cached aggregate and falling back to the batch sum.
func (p *Product) AvailableUnits() int64 {
	if p.Batches == nil {
		return ledger.ClampStock(p.AggregateStock)
	}
	cached := p.AggregateStock
	return ledger.AvailableUnits(&cached, p.Batches)
}

// RefreshAggregate recomputes the cached aggregate from loaded batches.
func (p *Product) RefreshAggregate() {
	p.AggregateStock = ledger.SumRemaining(p.Batches)
}

// IsLowStock reports whether the aggregate is at or below the threshold.
func (p *Product) IsLowStock() bool {
	return p.LowStockThreshold > 0 && p.AggregateStock <= p.LowStockThreshold
}

// Revenue prices a quantity against the two tiers: complete packs at the
// pack price, the loose remainder at the unit price.
func (p *Product) Revenue(totalUnits int64) types.Money {
	packs, remainder := ledger.SplitUnits(totalUnits, p.PackSize)
	packPart := p.PricePerPack.Mul(types.NewMoneyFromInt(packs))
	unitPart := p.PricePerUnit.Mul(types.NewMoneyFromInt(remainder))
	return packPart.Add(unitPart)
}
