package dto

import (
	"time"

	"packstock/internal/core/types"
	"packstock/internal/domain/catalogs/product"
	"packstock/internal/domain/ledger"
)

// --- Batch ledger DTOs ---

// BatchResponse represents one ledger batch in API responses.
type BatchResponse struct {
	ID             string      `json:"id"`
	ProductID      string      `json:"productId"`
	PurchaseID     *string     `json:"purchaseId,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UnitsAdded     int64       `json:"unitsAdded"`
	RemainingUnits int64       `json:"remainingUnits"`
	CostPerUnit    types.Money `json:"costPerUnit"`
	CostPerPack    types.Money `json:"costPerPack"`
	Drained        bool        `json:"drained"`
}

// FromBatch converts a ledger batch to a response DTO.
func FromBatch(b *ledger.Batch) BatchResponse {
	resp := BatchResponse{
		ID:             b.ID.String(),
		ProductID:      b.ProductID.String(),
		CreatedAt:      b.CreatedAt,
		UnitsAdded:     b.UnitsAdded,
		RemainingUnits: b.RemainingUnits,
		CostPerUnit:    b.CostPerUnit,
		CostPerPack:    b.CostPerPack,
		Drained:        b.IsDrained(),
	}
	if b.PurchaseID != nil {
		s := b.PurchaseID.String()
		resp.PurchaseID = &s
	}
	return resp
}

// --- Stock summary DTOs ---

// StockSummaryResponse reports a product's stock position: the cached
// aggregate, its packs+loose breakdown, and the live batch ledger.
type StockSummaryResponse struct {
	ProductID      string          `json:"productId"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	PackSize       int64           `json:"packSize"`
	AvailableUnits int64           `json:"availableUnits"`
	Packs          int64           `json:"packs"`
	LooseUnits     int64           `json:"looseUnits"`
	LowStock       bool            `json:"lowStock"`
	Batches        []BatchResponse `json:"batches"`
}

// FromStockSummary builds the stock view of a product with batches loaded.
func FromStockSummary(p *product.Product) *StockSummaryResponse {
	available := p.AvailableUnits()
	packs, loose := ledger.SplitUnits(available, p.PackSize)

	resp := &StockSummaryResponse{
		ProductID:      p.ID.String(),
		Code:           p.Code,
		Name:           p.Name,
		PackSize:       p.PackSize,
		AvailableUnits: available,
		Packs:          packs,
		LooseUnits:     loose,
		LowStock:       p.IsLowStock(),
		Batches:        make([]BatchResponse, 0, len(p.Batches)),
	}

	for _, b := range p.Batches {
		resp.Batches = append(resp.Batches, FromBatch(b))
	}

	return resp
}
