package dto

import (
	"packstock/internal/core/types"
	"packstock/internal/domain/catalogs/product"
)

// --- Request DTOs ---

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	Code              string      `json:"code"`
	Name              string      `json:"name" binding:"required"`
	PackSize          int64       `json:"packSize" binding:"required,min=1"`
	PricePerUnit      types.Money `json:"pricePerUnit"`
	PricePerPack      types.Money `json:"pricePerPack"`
	LowStockThreshold int64       `json:"lowStockThreshold"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	item := product.NewProduct(r.Code, r.Name, r.PackSize)
	item.PricePerUnit = r.PricePerUnit
	item.PricePerPack = r.PricePerPack
	item.LowStockThreshold = r.LowStockThreshold
	return item
}

// UpdateProductRequest is the request body for updating a product.
type UpdateProductRequest struct {
	Code              string      `json:"code"`
	Name              string      `json:"name" binding:"required"`
	PackSize          int64       `json:"packSize" binding:"required,min=1"`
	PricePerUnit      types.Money `json:"pricePerUnit"`
	PricePerPack      types.Money `json:"pricePerPack"`
	LowStockThreshold int64       `json:"lowStockThreshold"`
	Version           int         `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateProductRequest) ApplyTo(item *product.Product) {
	item.Code = r.Code
	item.Name = r.Name
	item.PackSize = r.PackSize
	item.PricePerUnit = r.PricePerUnit
	item.PricePerPack = r.PricePerPack
	item.LowStockThreshold = r.LowStockThreshold
	item.Version = r.Version
}

// --- Response DTOs ---

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID                string      `json:"id"`
	Code              string      `json:"code"`
	Name              string      `json:"name"`
	PackSize          int64       `json:"packSize"`
	PricePerUnit      types.Money `json:"pricePerUnit"`
	PricePerPack      types.Money `json:"pricePerPack"`
	LowStockThreshold int64       `json:"lowStockThreshold"`
	AggregateStock    int64       `json:"aggregateStock"`
	LowStock          bool        `json:"lowStock"`
	DeletionMark      bool        `json:"deletionMark"`
	Version           int         `json:"version"`
}

// FromProduct creates response DTO from domain entity.
func FromProduct(item *product.Product) *ProductResponse {
	return &ProductResponse{
		ID:                item.ID.String(),
		Code:              item.Code,
		Name:              item.Name,
		PackSize:          item.PackSize,
		PricePerUnit:      item.PricePerUnit,
		PricePerPack:      item.PricePerPack,
		LowStockThreshold: item.LowStockThreshold,
		AggregateStock:    item.AggregateStock,
		LowStock:          item.IsLowStock(),
		DeletionMark:      item.DeletionMark,
		Version:           item.Version,
	}
}
