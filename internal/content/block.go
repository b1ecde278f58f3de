package content

import (
	"fmt"
	"html"
	"strings"
)

// Block is one semantic unit of source content. HTML holds the block's
// inner markup exactly as found so inline emphasis and links survive
// untouched; tables keep their outer <table> wrapper instead.
type Block struct {
	Index int
	Tag   string
	HTML  string
	Text  string
}

// Image is one generated illustration available to the assembler.
type Image struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	MediaID string `json:"external_media_id"`
	Prompt  string `json:"prompt"`
}

// PlainText joins the visible text of all blocks, one per line.
func PlainText(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// BlocksHTML renders blocks back to HTML using their source tag hints.
// Used as the formatting fallback when classification is unavailable.
func BlocksHTML(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		switch b.Tag {
		case "table":
			sb.WriteString(b.HTML)
		case "li":
			fmt.Fprintf(&sb, "<ul><li>%s</li></ul>", b.HTML)
		default:
			tag := b.Tag
			if tag == "" {
				tag = "p"
			}
			fmt.Fprintf(&sb, "<%s>%s</%s>", tag, b.HTML, tag)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ParagraphsFromText wraps each blank-line-separated run of text in a
// paragraph tag. Last line of defense against publishing nothing.
func ParagraphsFromText(text string) string {
	var sb strings.Builder
	for _, para := range SplitParagraphs(text) {
		fmt.Fprintf(&sb, "<p>%s</p>\n", html.EscapeString(para))
	}
	return sb.String()
}
