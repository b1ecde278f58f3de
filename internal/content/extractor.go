package content

import (
	"errors"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrEmptyContent is returned when a document yields no usable text.
var ErrEmptyContent = errors.New("document has no extractable content")

const blockSelector = "h1, h2, h3, h4, p, li, blockquote, table"

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// Extractor splits raw document HTML into ordered content blocks.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract selects block-level elements in document order. Tables are
// captured whole; everything else keeps its inner HTML. Blocks with no
// visible text are dropped. If the markup contains no recognizable
// blocks (some exporters emit one undifferentiated blob), the plain
// text is split on blank lines and each run becomes a paragraph block.
func (e *Extractor) Extract(rawHTML string) ([]Block, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		// goquery only fails on reader errors; fall through to the
		// plain-text path rather than aborting the pipeline.
		e.logger.Warn("Failed to parse document HTML", zap.Error(err))
		return fallbackBlocks(rawHTML)
	}

	var blocks []Block
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)

		// Tables, blockquotes, and list items own everything nested
		// inside them. Capturing a descendant as its own block would put
		// the same source text in two blocks and render it twice.
		if s.ParentsFiltered("table, blockquote, li").Length() > 0 {
			return
		}

		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}

		var inner string
		if tag == "table" {
			outer, err := goquery.OuterHtml(s)
			if err != nil {
				e.logger.Warn("Failed to serialize table block", zap.Error(err))
				return
			}
			inner = strings.TrimSpace(outer)
		} else {
			h, err := s.Html()
			if err != nil {
				e.logger.Warn("Failed to serialize block", zap.String("tag", tag), zap.Error(err))
				return
			}
			inner = strings.TrimSpace(h)
		}

		blocks = append(blocks, Block{
			Index: len(blocks),
			Tag:   tag,
			HTML:  inner,
			Text:  text,
		})
	})

	if len(blocks) == 0 {
		e.logger.Warn("No block elements found, falling back to plain-text split")
		return fallbackBlocks(doc.Text())
	}

	return blocks, nil
}

// Title returns the document's first h1 text, if any.
func (e *Extractor) Title(blocks []Block) string {
	for _, b := range blocks {
		if b.Tag == "h1" {
			return b.Text
		}
	}
	return ""
}

func fallbackBlocks(text string) ([]Block, error) {
	paras := SplitParagraphs(text)
	if len(paras) == 0 {
		return nil, ErrEmptyContent
	}

	blocks := make([]Block, 0, len(paras))
	for _, para := range paras {
		blocks = append(blocks, Block{
			Index: len(blocks),
			Tag:   "p",
			HTML:  html.EscapeString(para),
			Text:  para,
		})
	}
	return blocks, nil
}

// SplitParagraphs breaks plain text on blank-line boundaries.
func SplitParagraphs(text string) []string {
	var paras []string
	for _, chunk := range paragraphSplit.Split(text, -1) {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			paras = append(paras, chunk)
		}
	}
	return paras
}
