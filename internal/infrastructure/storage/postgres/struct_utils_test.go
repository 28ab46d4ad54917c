package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"packstock/internal/core/entity"
)

type MockCatalog struct {
	entity.Catalog
	PackSize int64 `db:"pack_size" json:"packSize"`
	Ignored  int64 `db:"-" json:"-"`
}

func TestExtractDBColumns_EmbeddedFields(t *testing.T) {
	cols := ExtractDBColumns[MockCatalog]()

	expectedCols := []string{
		"id", "deletion_mark", "version", "created_at", "updated_at",
		"code", "name", "pack_size",
	}

	for _, expected := range expectedCols {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "-")
}

func TestStructToMap_EmbeddedFields(t *testing.T) {
	cat := MockCatalog{
		Catalog:  entity.NewCatalog("TEST", "Test Name"),
		PackSize: 12,
		Ignored:  99,
	}
	cat.DeletionMark = true
	cat.Version = 5

	m := StructToMap(cat)

	assert.Equal(t, cat.ID, m["id"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "TEST", m["code"])
	assert.Equal(t, "Test Name", m["name"])
	assert.Equal(t, int64(12), m["pack_size"])
	assert.NotContains(t, m, "-")
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap("nope"))
}
