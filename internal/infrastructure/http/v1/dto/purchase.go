package dto

import (
	"time"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/core/types"
	"packstock/internal/domain/documents/purchase"
	"packstock/internal/domain/ledger"
)

// --- Request DTOs ---

// PurchaseRequest is the request body for recording a purchase.
type PurchaseRequest struct {
	ProductID string `json:"productId" binding:"required"`

	Packs int64 `json:"packs"`
	Units int64 `json:"units"`

	Cost      types.Money `json:"cost"`
	CostBasis string      `json:"costBasis" binding:"required"`

	ForInventory bool `json:"forInventory"`

	AcquiredAt *time.Time `json:"acquiredAt"`
	Date       *time.Time `json:"date"`
	Comment    string     `json:"comment"`
}

// ToInput converts the request to a purchase workflow input.
func (r *PurchaseRequest) ToInput() (purchase.Input, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return purchase.Input{}, apperror.NewValidation("invalid productId").
			WithDetail("value", r.ProductID)
	}

	basis := ledger.CostBasis(r.CostBasis)
	if !basis.Valid() {
		return purchase.Input{}, apperror.NewValidation("invalid costBasis").
			WithDetail("value", r.CostBasis).
			WithDetail("allowed", []string{string(ledger.CostBasisPerPack), string(ledger.CostBasisPerUnit)})
	}

	in := purchase.Input{
		ProductID:    productID,
		Packs:        r.Packs,
		Units:        r.Units,
		Cost:         r.Cost,
		CostBasis:    basis,
		ForInventory: r.ForInventory,
		Comment:      r.Comment,
	}
	if r.AcquiredAt != nil {
		in.AcquiredAt = *r.AcquiredAt
	}
	if r.Date != nil {
		in.Date = *r.Date
	}
	return in, nil
}

// --- Response DTOs ---

// PurchaseResponse is the response body for a purchase.
type PurchaseResponse struct {
	ID     string    `json:"id"`
	Number string    `json:"number"`
	Date   time.Time `json:"date"`

	ProductID  string `json:"productId"`
	Packs      int64  `json:"packs"`
	LooseUnits int64  `json:"looseUnits"`

	Cost      types.Money `json:"cost"`
	CostBasis string      `json:"costBasis"`
	TotalCost types.Money `json:"totalCost"`

	ForInventory bool    `json:"forInventory"`
	BatchID      *string `json:"batchId,omitempty"`

	Comment string `json:"comment,omitempty"`
	Version int    `json:"version"`
}

// FromPurchase creates response DTO from domain entity.
func FromPurchase(doc *purchase.Purchase) *PurchaseResponse {
	resp := &PurchaseResponse{
		ID:           doc.ID.String(),
		Number:       doc.Number,
		Date:         doc.Date,
		ProductID:    doc.ProductID.String(),
		Packs:        doc.Packs,
		LooseUnits:   doc.LooseUnits,
		Cost:         doc.Cost,
		CostBasis:    string(doc.CostBasis),
		TotalCost:    doc.TotalCost,
		ForInventory: doc.ForInventory,
		Comment:      doc.Comment,
		Version:      doc.Version,
	}

	if doc.BatchID != nil {
		s := doc.BatchID.String()
		resp.BatchID = &s
	}

	return resp
}
