package plans

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mergeJSON(t *testing.T, doc, patch string) any {
	t.Helper()
	var docVal, patchVal any
	require.NoError(t, json.Unmarshal([]byte(doc), &docVal))
	require.NoError(t, json.Unmarshal([]byte(patch), &patchVal))
	return DeepMerge(docVal, patchVal)
}

func TestDeepMergeObjectsRecurse(t *testing.T) {
	merged := mergeJSON(t,
		`{"a": {"x": 1, "y": 2}, "b": "keep"}`,
		`{"a": {"y": 3, "z": 4}}`,
	)

	assert.Equal(t, map[string]any{
		"a": map[string]any{"x": float64(1), "y": float64(3), "z": float64(4)},
		"b": "keep",
	}, merged)
}

func TestDeepMergeArraysReplaceWholesale(t *testing.T) {
	merged := mergeJSON(t,
		`{"items": [1, 2, 3]}`,
		`{"items": [9]}`,
	)

	assert.Equal(t, map[string]any{"items": []any{float64(9)}}, merged)
}

func TestDeepMergeScalarsReplace(t *testing.T) {
	merged := mergeJSON(t,
		`{"name": "old", "count": 1}`,
		`{"name": "new"}`,
	)

	assert.Equal(t, map[string]any{"name": "new", "count": float64(1)}, merged)
}

func TestDeepMergeAddsNewKeys(t *testing.T) {
	merged := mergeJSON(t, `{"a": 1}`, `{"b": {"c": 2}}`)

	assert.Equal(t, map[string]any{
		"a": float64(1),
		"b": map[string]any{"c": float64(2)},
	}, merged)
}

func TestDeepMergeTypeChangeReplaces(t *testing.T) {
	// An object replacing a scalar, and vice versa.
	merged := mergeJSON(t, `{"a": 1}`, `{"a": {"nested": true}}`)
	assert.Equal(t, map[string]any{"a": map[string]any{"nested": true}}, merged)

	merged = mergeJSON(t, `{"a": {"nested": true}}`, `{"a": 1}`)
	assert.Equal(t, map[string]any{"a": float64(1)}, merged)
}

func TestDeepMergeNullOverwrites(t *testing.T) {
	merged := mergeJSON(t, `{"a": 1}`, `{"a": null}`)
	assert.Equal(t, map[string]any{"a": nil}, merged)
}
