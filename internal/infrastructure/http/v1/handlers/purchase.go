package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/domain"
	"packstock/internal/domain/documents/purchase"
	"packstock/internal/infrastructure/http/v1/dto"
	"packstock/internal/infrastructure/storage/postgres"
)

// PurchaseHandler handles HTTP requests for Purchase documents.
type PurchaseHandler struct {
	*BaseHandler
	service *purchase.Service
	audit   *postgres.AuditService
}

// NewPurchaseHandler creates a new purchase handler. audit may be nil.
func NewPurchaseHandler(base *BaseHandler, service *purchase.Service, audit *postgres.AuditService) *PurchaseHandler {
	return &PurchaseHandler{
		BaseHandler: base,
		service:     service,
		audit:       audit,
	}
}

func (h *PurchaseHandler) logAction(c *gin.Context, action postgres.AuditAction, purchaseID id.ID, changes map[string]any) {
	if h.audit == nil {
		return
	}
	_ = h.audit.LogChange(c.Request.Context(), "purchase", purchaseID, action, changes)
}

// Create handles POST /documents/purchases - receive stock into a new batch.
func (h *PurchaseHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PurchaseRequest
	if !h.BindJSONLegacy(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.Receive(ctx, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAction(c, postgres.AuditActionReceive, doc.ID, map[string]any{
		"number":     doc.Number,
		"product_id": doc.ProductID,
		"total_cost": doc.TotalCost,
		"batch_id":   doc.BatchID,
	})

	response := dto.FromPurchase(doc)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Delete handles DELETE /documents/purchases/:id - remove the intake and
// its batch. Fails if the batch has already been drawn from.
func (h *PurchaseHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	purchaseID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, purchaseID); err != nil {
		h.Error(c, err)
		return
	}

	h.logAction(c, postgres.AuditActionDelete, purchaseID, nil)

	h.NoContent(c)
}

// Get handles GET /documents/purchases/:id
func (h *PurchaseHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	purchaseID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(ctx, purchaseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromPurchase(doc))
}

// List handles GET /documents/purchases - list with filtering.
func (h *PurchaseHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := purchase.ListFilter{
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

	if forInventory := c.Query("forInventory"); forInventory != "" {
		val := forInventory == "true"
		filter.ForInventory = &val
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

	items := make([]*dto.PurchaseResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromPurchase(doc)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
