package content

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func idx(i int) *int { return &i }

func paragraphBlocks(texts ...string) []Block {
	blocks := make([]Block, len(texts))
	for i, text := range texts {
		blocks[i] = Block{Index: i, Tag: "p", HTML: text, Text: text}
	}
	return blocks
}

func TestAssemble_TypeDirectedRendering(t *testing.T) {
	a := NewAssembler(zap.NewNop(), nil)
	blocks := []Block{
		{Index: 0, Tag: "h1", HTML: "Heading text", Text: "Heading text"},
		{Index: 1, Tag: "p", HTML: "Body with <em>emphasis</em>", Text: "Body with emphasis"},
	}
	items := []StructureItem{
		{Type: ItemHeading2, BlockIndex: idx(0)},
		{Type: ItemParagraph, BlockIndex: idx(1)},
	}

	out := a.Assemble(context.Background(), blocks, items, nil)

	assert.Contains(t, out, "<h2>Heading text</h2>")
	assert.Contains(t, out, "<p>Body with <em>emphasis</em></p>")
}

func TestAssemble_ContentNeverRewritten(t *testing.T) {
	a := NewAssembler(zap.NewNop(), nil)
	inner := `Exact <a href="https://x.test">inner</a> HTML, "quotes" &amp; all`
	blocks := []Block{{Index: 0, Tag: "p", HTML: inner, Text: "x"}}

	out := a.Assemble(context.Background(), blocks, IdentityStructure(1), nil)
	assert.Contains(t, out, inner)
}

func TestAssemble_ListGrouping(t *testing.T) {
	a := NewAssembler(zap.NewNop(), nil)
	blocks := paragraphBlocks("one", "two", "middle", "three")
	items := []StructureItem{
		{Type: ItemListItem, BlockIndex: idx(0)},
		{Type: ItemListItem, BlockIndex: idx(1)},
		{Type: ItemParagraph, BlockIndex: idx(2)},
		{Type: ItemListItem, BlockIndex: idx(3)},
	}

	out := a.Assemble(context.Background(), blocks, items, nil)

	// Two separate list containers, never one container of three.
	assert.Equal(t, 2, strings.Count(out, "<ul>"))
	assert.Equal(t, 2, strings.Count(out, "</ul>"))

	first := strings.Index(out, "<ul>")
	close1 := strings.Index(out, "</ul>")
	middle := strings.Index(out, "<p>middle</p>")
	assert.Less(t, first, close1)
	assert.Less(t, close1, middle)
}

func TestAssemble_ListClosedAtEnd(t *testing.T) {
	a := NewAssembler(zap.NewNop(), nil)
	blocks := paragraphBlocks("only item")
	items := []StructureItem{{Type: ItemListItem, BlockIndex: idx(0)}}

	out := a.Assemble(context.Background(), blocks, items, nil)
	assert.Equal(t, strings.Count(out, "<ul>"), strings.Count(out, "</ul>"))
}

func TestAssemble_NoBlockSilentlyDropped(t *testing.T) {
	a := NewAssembler(zap.NewNop(), nil)
	blocks := paragraphBlocks("alpha", "beta", "gamma")

	// Classifier only references block 1.
	items := []StructureItem{{Type: ItemParagraph, BlockIndex: idx(1)}}
	out := a.Assemble(context.Background(), blocks, items, nil)

	for _, b := range blocks {
		assert.Equal(t, 1, strings.Count(out, b.HTML), "block %d must appear exactly once", b.Index)
	}
}

func TestAssemble_NoImageSilentlyDropped(t *testing.T) {
	a := NewAssembler(zap.NewNop(), nil)
	blocks := paragraphBlocks("text")
	images := []Image{
		{URL: "https://cdn.test/one.png", Prompt: "one"},
		{URL: "https://cdn.test/two.png", Prompt: "two"},
	}

	// Structure ignores the images entirely.
	out := a.Assemble(context.Background(), blocks, IdentityStructure(1), images)

	assert.Equal(t, 2, strings.Count(out, "<figure>"))
	assert.Contains(t, out, "https://cdn.test/one.png")
	assert.Contains(t, out, "https://cdn.test/two.png")
}

func TestAssemble_AdversarialStructures(t *testing.T) {
	a := NewAssembler(zap.NewNop(), nil)
	blocks := paragraphBlocks("b0", "b1", "b2")
	images := []Image{{URL: "https://cdn.test/i.png"}}

	cases := map[string][]StructureItem{
		"empty": {},
		"all duplicates": {
			{Type: ItemParagraph, BlockIndex: idx(0)},
			{Type: ItemParagraph, BlockIndex: idx(0)},
			{Type: ItemParagraph, BlockIndex: idx(0)},
		},
		"out of range": {
			{Type: ItemParagraph, BlockIndex: idx(42)},
			{Type: ItemParagraph, BlockIndex: idx(-1)},
			{Type: ItemImage, ImageIndex: idx(99)},
		},
		"missing indices": {
			{Type: ItemParagraph},
			{Type: ItemImage},
		},
	}

	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			out := a.Assemble(context.Background(), blocks, items, images)
			for _, b := range blocks {
				assert.Equal(t, 1, strings.Count(out, b.HTML), "block %d", b.Index)
			}
			assert.Equal(t, 1, strings.Count(out, "https://cdn.test/i.png"))
		})
	}
}

func TestAssemble_TablePassthrough(t *testing.T) {
	a := NewAssembler(zap.NewNop(), nil)
	table := "<table><tbody><tr><td>v</td></tr></tbody></table>"
	blocks := []Block{{Index: 0, Tag: "table", HTML: table, Text: "v"}}
	items := []StructureItem{{Type: ItemTable, BlockIndex: idx(0)}}

	out := a.Assemble(context.Background(), blocks, items, nil)

	assert.Contains(t, out, rawOpen)
	assert.Contains(t, out, table)
	assert.Contains(t, out, rawClose)
	assert.NotContains(t, out, "<p><table>")
}

func TestAssemble_TableBlockClassifiedAsParagraph(t *testing.T) {
	// Even when the classifier mislabels a table block, its markup is
	// re-emitted as a raw passthrough, never wrapped in a paragraph.
	a := NewAssembler(zap.NewNop(), nil)
	table := "<table><tbody><tr><td>v</td></tr></tbody></table>"
	blocks := []Block{{Index: 0, Tag: "table", HTML: table, Text: "v"}}

	out := a.Assemble(context.Background(), blocks, IdentityStructure(1), nil)
	assert.Contains(t, out, rawOpen)
	assert.NotContains(t, out, "<p><table>")
}

func TestAssemble_ImagePlacement(t *testing.T) {
	captions := 0
	caption := func(ctx context.Context, prompt string) (string, error) {
		captions++
		return fmt.Sprintf("Caption for %s", prompt), nil
	}

	a := NewAssembler(zap.NewNop(), caption)
	blocks := paragraphBlocks("before", "after")
	images := []Image{{URL: "https://cdn.test/fig.png", Prompt: "sunset"}}
	items := []StructureItem{
		{Type: ItemParagraph, BlockIndex: idx(0)},
		{Type: ItemImage, ImageIndex: idx(1)},
		{Type: ItemParagraph, BlockIndex: idx(1)},
	}

	out := a.Assemble(context.Background(), blocks, items, images)

	figPos := strings.Index(out, "<figure>")
	assert.Greater(t, figPos, strings.Index(out, "before"))
	assert.Less(t, figPos, strings.Index(out, "after"))
	assert.Contains(t, out, "<figcaption>Caption for sunset</figcaption>")
	assert.Contains(t, out, `alt="Caption for sunset"`)
	assert.Contains(t, out, "max-width:100%")
	assert.Equal(t, 1, captions)
}

func TestAssemble_CaptionFallback(t *testing.T) {
	caption := func(ctx context.Context, prompt string) (string, error) {
		return "", fmt.Errorf("caption model unavailable")
	}

	a := NewAssembler(zap.NewNop(), caption)
	images := []Image{{URL: "https://cdn.test/fig.png", Prompt: "x"}}
	items := []StructureItem{{Type: ItemImage, ImageIndex: idx(1)}}

	out := a.Assemble(context.Background(), nil, items, images)
	assert.Contains(t, out, "<figcaption>"+genericCaption+"</figcaption>")
}

func TestAssemble_AltTextWinsOverCaptionFunc(t *testing.T) {
	captions := 0
	caption := func(ctx context.Context, prompt string) (string, error) {
		captions++
		return "from the model", nil
	}

	a := NewAssembler(zap.NewNop(), caption)
	images := []Image{{URL: "https://cdn.test/fig.png", Alt: "already captioned", Prompt: "x"}}
	items := []StructureItem{{Type: ItemImage, ImageIndex: idx(1)}}

	out := a.Assemble(context.Background(), nil, items, images)
	assert.Contains(t, out, `alt="already captioned"`)
	assert.Contains(t, out, "<figcaption>already captioned</figcaption>")
	assert.Equal(t, 0, captions)
}

func TestAssemble_EndToEndDegraded(t *testing.T) {
	// Five paragraphs, two images, classifier returned nothing usable:
	// all five paragraphs in original order, both images appended.
	a := NewAssembler(zap.NewNop(), nil)
	blocks := paragraphBlocks("p one", "p two", "p three", "p four", "p five")
	images := []Image{
		{URL: "https://cdn.test/1.png"},
		{URL: "https://cdn.test/2.png"},
	}

	out := a.Assemble(context.Background(), blocks, nil, images)

	last := -1
	for _, b := range blocks {
		pos := strings.Index(out, "<p>"+b.HTML+"</p>")
		require.GreaterOrEqual(t, pos, 0)
		assert.Greater(t, pos, last, "paragraphs must keep original order")
		last = pos
	}
	assert.Equal(t, 2, strings.Count(out, "<figure>"))
	assert.Greater(t, strings.Index(out, "<figure>"), last)
}
