package tx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Context keys for storage-related values.
type ctxKey int

const (
	poolKey ctxKey = iota
	managerKey
)

// Errors for context operations.
var (
	ErrNoPoolInContext = errors.New("database pool not found in context")
	ErrNoManager       = errors.New("transaction manager not found in context")
)

// --- Pool ---

// WithPool stores the database pool in context.
func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, poolKey, pool)
}

// GetPool retrieves the database pool from context.
func GetPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, ok := ctx.Value(poolKey).(*pgxpool.Pool)
	if !ok || pool == nil {
		return nil, ErrNoPoolInContext
	}
	return pool, nil
}

// MustGetPool retrieves the database pool or panics.
// Use in places where a missing pool is a programming error.
func MustGetPool(ctx context.Context) *pgxpool.Pool {
	pool, err := GetPool(ctx)
	if err != nil {
		panic("database pool not in context: " + err.Error())
	}
	return pool
}

// --- Manager ---

// WithManager stores the transaction manager in context.
func WithManager(ctx context.Context, txm Manager) context.Context {
	return context.WithValue(ctx, managerKey, txm)
}

// GetManager retrieves the transaction manager from context.
func GetManager(ctx context.Context) (Manager, error) {
	txm, ok := ctx.Value(managerKey).(Manager)
	if !ok || txm == nil {
		return nil, ErrNoManager
	}
	return txm, nil
}

// MustGetManager retrieves the transaction manager or panics.
// Use in places where a missing manager is a programming error.
func MustGetManager(ctx context.Context) Manager {
	txm, err := GetManager(ctx)
	if err != nil {
		panic("transaction manager not in context: " + err.Error())
	}
	return txm
}
