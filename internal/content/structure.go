package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ItemType is the semantic role the classifier assigns to a slot in
// the output document.
type ItemType string

const (
	ItemParagraph ItemType = "p"
	ItemHeading2  ItemType = "h2"
	ItemHeading3  ItemType = "h3"
	ItemListItem  ItemType = "li"
	ItemTable     ItemType = "table"
	ItemImage     ItemType = "image"
)

// StructureItem maps one output slot to either a source block (by
// 0-based index) or a generated image (by 1-based index). The
// classifier proposes these; the assembler never trusts them.
type StructureItem struct {
	Type       ItemType `json:"type"`
	BlockIndex *int     `json:"block_index,omitempty"`
	ImageIndex *int     `json:"image_index,omitempty"`
}

type structurePayload struct {
	Structure []StructureItem `json:"structure"`
}

// ParseStructure decodes a classifier response. It rejects unparseable
// JSON and unknown item types outright; index problems (missing,
// duplicate, out of range) are deliberately left for the assembler,
// which can recover from them item by item.
func ParseStructure(raw string) ([]StructureItem, error) {
	var payload structurePayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, fmt.Errorf("unparseable structure response: %w", err)
	}
	if payload.Structure == nil {
		return nil, fmt.Errorf("structure response missing structure array")
	}

	for i, item := range payload.Structure {
		switch item.Type {
		case ItemParagraph, ItemHeading2, ItemHeading3, ItemListItem, ItemTable:
			if item.BlockIndex == nil {
				return nil, fmt.Errorf("structure item %d (%s) has no block_index", i, item.Type)
			}
		case ItemImage:
			if item.ImageIndex == nil {
				return nil, fmt.Errorf("structure item %d (image) has no image_index", i)
			}
		default:
			return nil, fmt.Errorf("structure item %d has unknown type %q", i, item.Type)
		}
	}

	return payload.Structure, nil
}

// IdentityStructure returns the do-nothing classification: every block
// is a paragraph in original order and no images are placed.
func IdentityStructure(blockCount int) []StructureItem {
	items := make([]StructureItem, blockCount)
	for i := range items {
		idx := i
		items[i] = StructureItem{Type: ItemParagraph, BlockIndex: &idx}
	}
	return items
}
