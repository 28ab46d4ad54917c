package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalize(t *testing.T, in string) map[string]any {
	t.Helper()
	out, err := NormalizeAliases([]byte(in))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	return m
}

func TestNormalizeAliases_SnakeCase(t *testing.T) {
	m := normalize(t, `{"product_id":"p1","pack_size":12,"price_per_unit":"1.50"}`)

	assert.Equal(t, "p1", m["productId"])
	assert.Equal(t, float64(12), m["packSize"])
	assert.Equal(t, "1.50", m["pricePerUnit"])
	assert.NotContains(t, m, "product_id")
	assert.NotContains(t, m, "pack_size")
	assert.NotContains(t, m, "price_per_unit")
}

func TestNormalizeAliases_CanonicalWins(t *testing.T) {
	m := normalize(t, `{"packSize":24,"pack_size":12,"unitsPerPack":6}`)

	assert.Equal(t, float64(24), m["packSize"])
	assert.NotContains(t, m, "pack_size")
	assert.NotContains(t, m, "unitsPerPack")
}

func TestNormalizeAliases_FirstAliasWins(t *testing.T) {
	m := normalize(t, `{"loose_units":3,"qty":7}`)

	assert.Equal(t, float64(3), m["units"])
	assert.NotContains(t, m, "qty")
	assert.NotContains(t, m, "loose_units")
}

func TestNormalizeAliases_QuantityVariant(t *testing.T) {
	m := normalize(t, `{"quantity":5,"pack_count":2}`)

	assert.Equal(t, float64(5), m["units"])
	assert.Equal(t, float64(2), m["packs"])
}

func TestNormalizeAliases_UnknownKeysPassThrough(t *testing.T) {
	m := normalize(t, `{"comment":"hello","some_custom":true}`)

	assert.Equal(t, "hello", m["comment"])
	assert.Equal(t, true, m["some_custom"])
}

func TestNormalizeAliases_EmptyPayload(t *testing.T) {
	out, err := NormalizeAliases(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestNormalizeAliases_InvalidJSON(t *testing.T) {
	_, err := NormalizeAliases([]byte(`[1,2,3`))
	assert.Error(t, err)
}
