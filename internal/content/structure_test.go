package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructure_Valid(t *testing.T) {
	items, err := ParseStructure(`{"structure": [
		{"type": "h2", "block_index": 0},
		{"type": "p", "block_index": 1},
		{"type": "image", "image_index": 1},
		{"type": "table", "block_index": 2}
	]}`)
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, ItemHeading2, items[0].Type)
	assert.Equal(t, 0, *items[0].BlockIndex)
	assert.Equal(t, ItemImage, items[2].Type)
	assert.Equal(t, 1, *items[2].ImageIndex)
}

func TestParseStructure_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":           `classifier went off script`,
		"missing array":      `{"items": []}`,
		"unknown type":       `{"structure": [{"type": "h5", "block_index": 0}]}`,
		"block without idx":  `{"structure": [{"type": "p"}]}`,
		"image without idx":  `{"structure": [{"type": "image"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStructure(raw)
			assert.Error(t, err)
		})
	}
}

func TestParseStructure_IndexProblemsLeftToAssembler(t *testing.T) {
	// Duplicate and out-of-range indices parse fine; the assembler
	// recovers from them item by item.
	items, err := ParseStructure(`{"structure": [
		{"type": "p", "block_index": 7},
		{"type": "p", "block_index": 7}
	]}`)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestIdentityStructure(t *testing.T) {
	items := IdentityStructure(3)
	require.Len(t, items, 3)
	for i, item := range items {
		assert.Equal(t, ItemParagraph, item.Type)
		require.NotNil(t, item.BlockIndex)
		assert.Equal(t, i, *item.BlockIndex)
	}

	assert.Empty(t, IdentityStructure(0))
}
