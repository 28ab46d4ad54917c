package dto

import (
	"time"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/core/types"
	"packstock/internal/domain/documents/sale"
)

// --- Request DTOs ---

// SaleRequest is the request body for recording or editing a sale.
type SaleRequest struct {
	ProductID string `json:"productId" binding:"required"`

	Packs int64 `json:"packs"`
	Units int64 `json:"units"`

	// Optional price overrides. Absent fields fall back to the product's
	// standing prices; a single given price derives the other through the
	// pack size.
	PricePerUnit *types.Money `json:"pricePerUnit"`
	PricePerPack *types.Money `json:"pricePerPack"`

	Date    *time.Time `json:"date"`
	Comment string     `json:"comment"`
}

// ToInput converts the request to a sale workflow input.
func (r *SaleRequest) ToInput() (sale.Input, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return sale.Input{}, apperror.NewValidation("invalid productId").
			WithDetail("value", r.ProductID)
	}

	in := sale.Input{
		ProductID:    productID,
		Packs:        r.Packs,
		Units:        r.Units,
		PricePerUnit: r.PricePerUnit,
		PricePerPack: r.PricePerPack,
		Comment:      r.Comment,
	}
	if r.Date != nil {
		in.Date = *r.Date
	}
	return in, nil
}

// --- Response DTOs ---

// AllocationResponse is one line of a sale's allocation snapshot.
type AllocationResponse struct {
	BatchID    string      `json:"batchId"`
	UnitsTaken int64       `json:"unitsTaken"`
	UnitCost   types.Money `json:"unitCost"`
}

// SaleResponse is the response body for a sale.
type SaleResponse struct {
	ID     string    `json:"id"`
	Number string    `json:"number"`
	Date   time.Time `json:"date"`

	ProductID      string `json:"productId"`
	Packs          int64  `json:"packs"`
	LooseUnits     int64  `json:"looseUnits"`
	TotalUnitsSold int64  `json:"totalUnitsSold"`

	PricePerUnit types.Money `json:"pricePerUnit"`
	PricePerPack types.Money `json:"pricePerPack"`

	Revenue              types.Money `json:"revenue"`
	CostTotal            types.Money `json:"costTotal"`
	Profit               types.Money `json:"profit"`
	CostPerUnitEffective types.Money `json:"costPerUnitEffective"`

	Allocations []AllocationResponse `json:"allocations,omitempty"`

	Comment string `json:"comment,omitempty"`
	Version int    `json:"version"`
}

// FromSale creates response DTO from domain entity.
func FromSale(doc *sale.Sale) *SaleResponse {
	resp := &SaleResponse{
		ID:                   doc.ID.String(),
		Number:               doc.Number,
		Date:                 doc.Date,
		ProductID:            doc.ProductID.String(),
		Packs:                doc.Packs,
		LooseUnits:           doc.LooseUnits,
		TotalUnitsSold:       doc.TotalUnitsSold,
		PricePerUnit:         doc.PricePerUnit,
		PricePerPack:         doc.PricePerPack,
		Revenue:              doc.Revenue,
		CostTotal:            doc.CostTotal,
		Profit:               doc.Profit,
		CostPerUnitEffective: doc.CostPerUnitEffective,
		Comment:              doc.Comment,
		Version:              doc.Version,
	}

	for _, a := range doc.Allocations {
		resp.Allocations = append(resp.Allocations, AllocationResponse{
			BatchID:    a.BatchID.String(),
			UnitsTaken: a.UnitsTaken,
			UnitCost:   a.UnitCost,
		})
	}

	return resp
}
