package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtract_BlockOrder(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	blocks, err := e.Extract(`
		<h1>Title</h1>
		<p>First paragraph with <strong>bold</strong> text.</p>
		<h2>Section</h2>
		<ul><li>Item one</li><li>Item two</li></ul>
		<blockquote>A quote</blockquote>
	`)
	require.NoError(t, err)
	require.Len(t, blocks, 6)

	assert.Equal(t, "h1", blocks[0].Tag)
	assert.Equal(t, "p", blocks[1].Tag)
	assert.Equal(t, "h2", blocks[2].Tag)
	assert.Equal(t, "li", blocks[3].Tag)
	assert.Equal(t, "li", blocks[4].Tag)
	assert.Equal(t, "blockquote", blocks[5].Tag)

	for i, b := range blocks {
		assert.Equal(t, i, b.Index)
	}
}

func TestExtract_PreservesInlineMarkup(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	blocks, err := e.Extract(`<p>Go to <a href="https://example.com">the site</a> for <em>more</em>.</p>`)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	assert.Contains(t, blocks[0].HTML, `<a href="https://example.com">the site</a>`)
	assert.Contains(t, blocks[0].HTML, `<em>more</em>`)
}

func TestExtract_TableCapturedWhole(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	blocks, err := e.Extract(`<p>Intro</p><table><tbody><tr><td>cell</td></tr></tbody></table>`)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, "table", blocks[1].Tag)
	assert.Contains(t, blocks[1].HTML, "<table>")
	assert.Contains(t, blocks[1].HTML, "<td>cell</td>")
}

func TestExtract_NestedListCapturedOnce(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	blocks, err := e.Extract(`<ul><li>parent item<ul><li>child item</li></ul></li></ul>`)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	assert.Equal(t, "li", blocks[0].Tag)
	assert.Contains(t, blocks[0].HTML, "child item")

	count := 0
	for _, b := range blocks {
		count += strings.Count(b.Text, "child item")
	}
	assert.Equal(t, 1, count)
}

func TestExtract_BlockquoteOwnsNestedBlocks(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	blocks, err := e.Extract(`<blockquote><ul><li>quoted item</li></ul></blockquote>`)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "blockquote", blocks[0].Tag)
	assert.Contains(t, blocks[0].HTML, "<li>quoted item</li>")

	blocks, err = e.Extract(`<blockquote><table><tbody><tr><td>quoted cell</td></tr></tbody></table></blockquote>`)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "blockquote", blocks[0].Tag)
	assert.Contains(t, blocks[0].HTML, "<td>quoted cell</td>")
}

func TestExtract_ListItemOwnsNestedParagraph(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	blocks, err := e.Extract(`<ul><li><p>wrapped text</p></li></ul>`)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "li", blocks[0].Tag)
	assert.Contains(t, blocks[0].HTML, "wrapped text")
}

func TestExtract_DropsEmptyBlocks(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	blocks, err := e.Extract(`<p>Real</p><p></p><p>   </p><h2></h2>`)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Real", blocks[0].Text)
}

func TestExtract_PlainTextFallback(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	blocks, err := e.Extract("First paragraph of a text blob.\n\nSecond paragraph.\n\n\nThird.")
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	for _, b := range blocks {
		assert.Equal(t, "p", b.Tag)
	}
	assert.Equal(t, "Second paragraph.", blocks[1].Text)
}

func TestExtract_EmptyContent(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	_, err := e.Extract("")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = e.Extract("   \n\n  ")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestExtract_Title(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	blocks, err := e.Extract(`<p>Lead</p><h1>The Title</h1>`)
	require.NoError(t, err)
	assert.Equal(t, "The Title", e.Title(blocks))

	blocks, err = e.Extract(`<p>No heading here</p>`)
	require.NoError(t, err)
	assert.Equal(t, "", e.Title(blocks))
}

func TestSplitParagraphs(t *testing.T) {
	paras := SplitParagraphs("one\n\ntwo\n \nthree")
	assert.Equal(t, []string{"one", "two", "three"}, paras)

	assert.Empty(t, SplitParagraphs(""))
}
