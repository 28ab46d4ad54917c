package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/domain/catalogs/product"
	"packstock/internal/infrastructure/http/v1/dto"
)

// StockHandler serves read-only stock views: per-product summaries and the
// underlying batch ledger.
type StockHandler struct {
	*BaseHandler
	products *product.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, products *product.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		products:    products,
	}
}

// Summary handles GET /stock/:productId - cached aggregate, packs+loose
// breakdown and batch ledger for one product.
func (h *StockHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	p, err := h.products.GetWithBatches(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromStockSummary(p))
}

// Batches handles GET /stock/:productId/batches - the batch ledger in
// consumption order.
func (h *StockHandler) Batches(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	p, err := h.products.GetWithBatches(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.BatchResponse, 0, len(p.Batches))
	for _, b := range p.Batches {
		items = append(items, dto.FromBatch(b))
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      len(items),
		Offset:     0,
	})
}
