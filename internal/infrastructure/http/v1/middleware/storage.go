package middleware

import (
	"github.com/gin-gonic/gin"

	"packstock/internal/core/tx"
	"packstock/internal/infrastructure/storage/postgres"
)

// Storage middleware injects the database pool and TxManager into the
// request context. It MUST run before any handler that touches the
// database: repositories resolve their TxManager from context.
func Storage(pool *postgres.Pool, txManager *postgres.TxManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		ctx = tx.WithPool(ctx, pool.Unwrap())
		ctx = tx.WithManager(ctx, txManager)

		c.Request = c.Request.WithContext(ctx)

		// Also set in Gin context for handlers that use c.Get()
		c.Set("tx_manager", txManager)

		c.Next()
	}
}

// GetTxManagerFromContext retrieves TxManager from Gin context.
// Returns nil if not found. Use this in handlers.
func GetTxManagerFromContext(c *gin.Context) *postgres.TxManager {
	if v, exists := c.Get("tx_manager"); exists {
		if txm, ok := v.(*postgres.TxManager); ok {
			return txm
		}
	}
	return nil
}
