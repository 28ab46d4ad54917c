package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff_ChangedField(t *testing.T) {
	oldState := map[string]any{"name": "Widget", "pack_size": int64(12)}
	newState := map[string]any{"name": "Widget XL", "pack_size": int64(12)}

	changes := Diff(oldState, newState)

	assert.Len(t, changes, 1)
	assert.Equal(t, map[string]any{"old": "Widget", "new": "Widget XL"}, changes["name"])
}

func TestDiff_AddedAndRemovedFields(t *testing.T) {
	oldState := map[string]any{"name": "Widget", "comment": "old"}
	newState := map[string]any{"name": "Widget", "low_stock_threshold": int64(5)}

	changes := Diff(oldState, newState)

	assert.Len(t, changes, 2)
	assert.Equal(t, map[string]any{"old": nil, "new": int64(5)}, changes["low_stock_threshold"])
	assert.Equal(t, map[string]any{"old": "old", "new": nil}, changes["comment"])
}

func TestDiff_NoChanges(t *testing.T) {
	state := map[string]any{"name": "Widget", "pack_size": int64(12)}

	changes := Diff(state, state)

	assert.Empty(t, changes)
}

func TestDiff_NumericRepresentation(t *testing.T) {
	// int and int64 with the same value compare equal through the string
	// representation, so a rescan does not produce phantom changes.
	oldState := map[string]any{"version": 3}
	newState := map[string]any{"version": int64(3)}

	changes := Diff(oldState, newState)

	assert.Empty(t, changes)
}
