package ledger

// The stock aggregator produces the single "available units" figure for a
// product. Two sources are reconciled: the cached aggregate on the product
// record (fast, preferred for reads) and the live sum of batch remainders
// (authoritative after any batch mutation). Every workflow that mutates
// batches must refresh the cached figure from the batch sum to avoid drift.

// SumRemaining derives a product's total available units as the sum of its
// batches' remaining units.
func SumRemaining(batches []*Batch) int64 {
	var total int64
	for _, b := range batches {
		total += b.RemainingUnits
	}
	return ClampStock(total)
}

// AvailableUnits reconciles the cached aggregate with the live batch sum.
// The cached figure wins when present (optimistic-update contexts hand in an
// overridden current-stock value); nil means derive from batches.
func AvailableUnits(cached *int64, batches []*Batch) int64 {
	if cached != nil {
		return ClampStock(*cached)
	}
	return SumRemaining(batches)
}

// ClampStock enforces the aggregate-never-negative invariant. An underflow
// cannot occur when the allocation rules are followed; clamping keeps a
// drifted store from reporting negative stock.
func ClampStock(units int64) int64 {
	if units < 0 {
		return 0
	}
	return units
}
