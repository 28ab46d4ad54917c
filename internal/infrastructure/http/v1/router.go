// Package v1 provides HTTP API version 1.
package v1

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"packstock/internal/domain/catalogs/product"
	"packstock/internal/domain/documents/purchase"
	"packstock/internal/domain/documents/sale"
	"packstock/internal/infrastructure/http/v1/handlers"
	"packstock/internal/infrastructure/http/v1/middleware"
	"packstock/internal/infrastructure/storage/fallback"
	"packstock/internal/infrastructure/storage/postgres"
	"packstock/internal/infrastructure/storage/postgres/catalog_repo"
	"packstock/internal/infrastructure/storage/postgres/document_repo"
	"packstock/internal/infrastructure/storage/postgres/ledger_repo"
	"packstock/pkg/logger"
	"packstock/pkg/numerator"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool
	Pool *postgres.Pool

	// TxManager runs transactions over the pool
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger

	// IdempotencyEnabled enables idempotency middleware
	IdempotencyEnabled bool

	// IdempotencyTTL is how long completed keys replay before cleanup
	IdempotencyTTL time.Duration

	// FallbackReads serves last-known-good product snapshots when the
	// database is unreachable
	FallbackReads bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Repos and services are created once; the transaction manager is
	// obtained from the request context per-request.
	num := numerator.NewFromContext()

	batchRepo := ledger_repo.NewBatchRepo()
	productRepo := catalog_repo.NewProductRepo(batchRepo)

	var products product.Repository = productRepo
	var degraded handlers.DegradedReporter
	if cfg.FallbackReads {
		store := fallback.NewProductStore(productRepo, cfg.Logger)
		products = store
		degraded = store
	}

	productService := product.NewService(products, num)

	auditService, err := postgres.NewAuditService(cfg.TxManager)
	if err != nil {
		cfg.Logger.Fatalw("failed to initialize audit service", "error", err)
	}

	// Catalog mutations leave an audit trail; document actions are logged
	// by their handlers with the richer sell/receive/reverse verbs.
	productService.Hooks().OnAfterCreate(auditProduct(auditService, postgres.AuditActionCreate))
	productService.Hooks().OnAfterUpdate(auditProduct(auditService, postgres.AuditActionUpdate))
	productService.Hooks().OnAfterDelete(auditProduct(auditService, postgres.AuditActionDelete))

	events := postgres.NewOutboxPublisher(cfg.TxManager)

	saleRepo := document_repo.NewSaleRepo()
	saleService := sale.NewService(saleRepo, products, batchRepo, num, events, cfg.TxManager)

	purchaseRepo := document_repo.NewPurchaseRepo()
	purchaseService := purchase.NewService(purchaseRepo, products, batchRepo, num, events, cfg.TxManager)

	// Health endpoints (no storage middleware required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, degraded)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	// API v1
	api := router.Group("/api/v1")
	api.Use(middleware.Storage(cfg.Pool, cfg.TxManager))

	if cfg.IdempotencyEnabled {
		ttl := cfg.IdempotencyTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		store := postgres.NewIdempotencyStore(cfg.Pool, cfg.TxManager, ttl)
		api.Use(middleware.Idempotency(store))
	}

	auditHandler := handlers.NewAuditHandler(baseHandler, auditService)

	// --- CATALOGS ---
	catalogs := api.Group("/catalog")
	{
		handler := handlers.NewProductHandler(baseHandler, productService)
		group := catalogs.Group("/products")
		group.GET("/low-stock", handler.LowStock)
		group.GET("/:id/history", auditHandler.EntityHistory("product"))
		RegisterCatalogRoutes(group, handler)
	}

	// --- DOCUMENTS ---
	documents := api.Group("/document")
	{
		handler := handlers.NewSaleHandler(baseHandler, saleService, auditService)
		group := documents.Group("/sales")
		group.GET("/:id/history", auditHandler.EntityHistory("sale"))
		RegisterDocumentRoutes(group, handler)
	}
	{
		handler := handlers.NewPurchaseHandler(baseHandler, purchaseService, auditService)
		group := documents.Group("/purchases")
		group.GET("/:id/history", auditHandler.EntityHistory("purchase"))
		RegisterDocumentRoutes(group, handler)
	}

	// --- STOCK ---
	{
		handler := handlers.NewStockHandler(baseHandler, productService)
		stock := api.Group("/stock")
		stock.GET("/:productId", handler.Summary)
		stock.GET("/:productId/batches", handler.Batches)
	}

	return router
}

// auditProduct records a catalog mutation in the audit log. Audit failures
// do not abort the business operation.
func auditProduct(audit *postgres.AuditService, action postgres.AuditAction) func(ctx context.Context, p *product.Product) error {
	return func(ctx context.Context, p *product.Product) error {
		err := audit.LogChange(ctx, "product", p.ID, action, map[string]any{
			"code":            p.Code,
			"name":            p.Name,
			"pack_size":       p.PackSize,
			"aggregate_stock": p.AggregateStock,
			"version":         p.Version,
		})
		if err != nil {
			logger.FromContext(ctx).Warnw("audit log write failed",
				"entity_type", "product",
				"entity_id", p.ID,
				"error", err,
			)
		}
		return nil
	}
}
