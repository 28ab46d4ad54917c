package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/domain"
	"packstock/internal/domain/documents/sale"
	"packstock/internal/infrastructure/http/v1/dto"
	"packstock/internal/infrastructure/storage/postgres"
)

// SaleHandler handles HTTP requests for Sale documents.
type SaleHandler struct {
	*BaseHandler
	service *sale.Service
	audit   *postgres.AuditService
}

// NewSaleHandler creates a new sale handler. audit may be nil.
func NewSaleHandler(base *BaseHandler, service *sale.Service, audit *postgres.AuditService) *SaleHandler {
	return &SaleHandler{
		BaseHandler: base,
		service:     service,
		audit:       audit,
	}
}

// logAction records the document action in the audit trail. Failures are
// swallowed: audit must not undo a committed sale.
func (h *SaleHandler) logAction(c *gin.Context, action postgres.AuditAction, saleID id.ID, changes map[string]any) {
	if h.audit == nil {
		return
	}
	_ = h.audit.LogChange(c.Request.Context(), "sale", saleID, action, changes)
}

// Create handles POST /documents/sales - sell from stock.
func (h *SaleHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SaleRequest
	if !h.BindJSONLegacy(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.Sell(ctx, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAction(c, postgres.AuditActionSell, doc.ID, map[string]any{
		"number":           doc.Number,
		"product_id":       doc.ProductID,
		"total_units_sold": doc.TotalUnitsSold,
		"revenue":          doc.Revenue,
	})

	response := dto.FromSale(doc)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Update handles PUT /documents/sales/:id - edit a recorded sale.
// The old sale is reversed and the new parameters re-sold atomically.
func (h *SaleHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.SaleRequest
	if !h.BindJSONLegacy(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.Edit(ctx, saleID, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAction(c, postgres.AuditActionUpdate, doc.ID, map[string]any{
		"number":           doc.Number,
		"product_id":       doc.ProductID,
		"total_units_sold": doc.TotalUnitsSold,
		"revenue":          doc.Revenue,
	})

	response := dto.FromSale(doc)
	h.CompleteIdempotency(c, http.StatusOK, "application/json", response)
	c.JSON(http.StatusOK, response)
}

// Delete handles DELETE /documents/sales/:id - reverse the sale and
// restore the drawn-down batches.
func (h *SaleHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, saleID); err != nil {
		h.Error(c, err)
		return
	}

	h.logAction(c, postgres.AuditActionReverse, saleID, nil)

	h.NoContent(c)
}

// Get handles GET /documents/sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(ctx, saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSale(doc))
}

// List handles GET /documents/sales - list with filtering.
func (h *SaleHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := sale.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "date DESC")

	if productID := c.Query("productId"); productID != "" {
		parsed, err := id.Parse(productID)
		if err == nil {
			filter.ProductID = &parsed
		}
	}

	if dateFrom := c.Query("dateFrom"); dateFrom != "" {
		if parsed, err := time.Parse(time.RFC3339, dateFrom); err == nil {
			filter.DateFrom = &parsed
		}
	}

	if dateTo := c.Query("dateTo"); dateTo != "" {
		if parsed, err := time.Parse(time.RFC3339, dateTo); err == nil {
			filter.DateTo = &parsed
		}
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.SaleResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromSale(doc)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
