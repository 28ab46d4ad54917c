package dto

import (
	"encoding/json"
	"fmt"
)

// Historical clients used several names for the same payload fields.
// NormalizeAliases translates them to the canonical camelCase keys at the
// ingestion boundary, so request DTOs and everything behind them only ever
// see one schema.
//
// A canonical key already present in the payload always wins; aliases never
// overwrite it. Among aliases, the first match in declaration order wins.
var legacyAliases = map[string][]string{
	"productId":         {"product_id", "product"},
	"packs":             {"pack_count", "packCount"},
	"units":             {"loose_units", "looseUnits", "qty", "quantity"},
	"packSize":          {"pack_size", "unitsPerPack", "units_per_pack"},
	"pricePerUnit":      {"price_per_unit", "unitPrice", "unit_price"},
	"pricePerPack":      {"price_per_pack", "packPrice", "pack_price"},
	"cost":              {"acquisition_cost", "acquisitionCost"},
	"costBasis":         {"cost_basis", "basis"},
	"forInventory":      {"for_inventory", "toInventory"},
	"lowStockThreshold": {"low_stock_threshold", "minStock", "min_stock"},
	"acquiredAt":        {"acquired_at", "receivedAt", "received_at"},
}

// NormalizeAliases rewrites legacy field aliases in a JSON object payload to
// their canonical names. Non-object payloads and unknown keys pass through
// untouched.
func NormalizeAliases(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("normalize aliases: %w", err)
	}

	for canonical, aliases := range legacyAliases {
		if _, ok := fields[canonical]; ok {
			// Canonical key present: drop competing aliases.
			for _, alias := range aliases {
				delete(fields, alias)
			}
			continue
		}
		for _, alias := range aliases {
			if val, ok := fields[alias]; ok {
				fields[canonical] = val
				for _, a := range aliases {
					delete(fields, a)
				}
				break
			}
		}
	}

	return json.Marshal(fields)
}
