package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packstock/internal/core/id"
	"packstock/internal/core/types"
)

func TestComputeUnits(t *testing.T) {
	tests := []struct {
		name     string
		packSize int64
		packs    int64
		units    int64
		want     int64
	}{
		{"zero packs", 12, 0, 0, 0},
		{"packs only", 12, 2, 0, 24},
		{"units only", 12, 0, 5, 5},
		{"packs and units", 10, 1, 5, 15},
		{"pack size one", 1, 3, 2, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeUnits(tt.packSize, tt.packs, tt.units))
		})
	}
}

func TestSplitUnits(t *testing.T) {
	packs, rem := SplitUnits(15, 10)
	assert.Equal(t, int64(1), packs)
	assert.Equal(t, int64(5), rem)

	packs, rem = SplitUnits(20, 10)
	assert.Equal(t, int64(2), packs)
	assert.Equal(t, int64(0), rem)

	packs, rem = SplitUnits(7, 0)
	assert.Equal(t, int64(0), packs)
	assert.Equal(t, int64(7), rem)
}

func TestNewBatch_PerPackBasis(t *testing.T) {
	productID := id.New()
	b := NewBatch(productID, BatchInput{
		Packs:    2,
		Units:    4,
		PackSize: 10,
		Cost:     types.MustMoney("50"),
		Basis:    CostBasisPerPack,
	})

	assert.Equal(t, productID, b.ProductID)
	assert.Equal(t, int64(24), b.UnitsAdded)
	assert.Equal(t, int64(24), b.RemainingUnits)
	assert.True(t, b.CostPerPack.Equal(types.MustMoney("50")))
	assert.True(t, b.CostPerUnit.Equal(types.MustMoney("5")))
	assert.False(t, b.CreatedAt.IsZero())
}

func TestNewBatch_PerUnitBasis(t *testing.T) {
	b := NewBatch(id.New(), BatchInput{
		Packs:    0,
		Units:    30,
		PackSize: 6,
		Cost:     types.MustMoney("2.5"),
		Basis:    CostBasisPerUnit,
	})

	assert.Equal(t, int64(30), b.UnitsAdded)
	assert.True(t, b.CostPerUnit.Equal(types.MustMoney("2.5")))
	assert.True(t, b.CostPerPack.Equal(types.MustMoney("15")))
}

func TestNewBatch_ExplicitAcquiredAt(t *testing.T) {
	acquired := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	b := NewBatch(id.New(), BatchInput{
		Packs:      1,
		PackSize:   12,
		Cost:       types.MustMoney("12"),
		Basis:      CostBasisPerPack,
		AcquiredAt: acquired,
	})

	assert.Equal(t, acquired, b.CreatedAt)
}

func TestNewBatch_ZeroUnits(t *testing.T) {
	// The factory has no intrinsic error; the caller rejects zero-unit
	// batches when undesirable.
	b := NewBatch(id.New(), BatchInput{
		PackSize: 12,
		Cost:     types.MustMoney("1"),
		Basis:    CostBasisPerUnit,
	})

	assert.Equal(t, int64(0), b.UnitsAdded)
	assert.Equal(t, int64(0), b.RemainingUnits)
	assert.True(t, b.IsDrained())
}

func TestBatch_Take(t *testing.T) {
	b := NewBatch(id.New(), BatchInput{
		Units:    10,
		PackSize: 1,
		Cost:     types.MustMoney("3"),
		Basis:    CostBasisPerUnit,
	})

	require.Equal(t, int64(4), b.Take(4))
	assert.Equal(t, int64(6), b.RemainingUnits)

	// Over-take is capped at the remainder, never negative.
	require.Equal(t, int64(6), b.Take(100))
	assert.Equal(t, int64(0), b.RemainingUnits)

	assert.Equal(t, int64(0), b.Take(1))
	assert.Equal(t, int64(0), b.Take(-5))
}

func TestBatch_Restore(t *testing.T) {
	b := NewBatch(id.New(), BatchInput{
		Units:    10,
		PackSize: 1,
		Cost:     types.MustMoney("3"),
		Basis:    CostBasisPerUnit,
	})
	b.Take(7)

	b.Restore(7)
	assert.Equal(t, int64(10), b.RemainingUnits)

	b.Restore(0)
	b.Restore(-3)
	assert.Equal(t, int64(10), b.RemainingUnits)
}
