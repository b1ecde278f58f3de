package content

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"
)

// CaptionFunc produces a short caption for a generated image. The
// assembler only positions the result; length and language are the
// capability's concern.
type CaptionFunc func(ctx context.Context, prompt string) (string, error)

const genericCaption = "Article illustration"

// wp:html block comments mark raw passthrough regions so the
// downstream block editor does not mangle tables and embeds.
const (
	rawOpen  = "<!-- wp:html -->"
	rawClose = "<!-- /wp:html -->"
)

// Assembler deterministically renders classified structure plus images
// into final HTML. Whatever the classifier returned, every source
// block and every image ends up in the output exactly once.
type Assembler struct {
	logger  *zap.Logger
	caption CaptionFunc
}

func NewAssembler(logger *zap.Logger, caption CaptionFunc) *Assembler {
	return &Assembler{logger: logger, caption: caption}
}

// Assemble renders blocks and images according to items. Items with
// missing, duplicate, or out-of-range indices are skipped with a
// warning; blocks and images the structure never referenced are
// appended at the end. Partial correctness beats total failure here,
// so Assemble never returns an error.
func (a *Assembler) Assemble(ctx context.Context, blocks []Block, items []StructureItem, images []Image) string {
	usedBlocks := make([]bool, len(blocks))
	usedImages := make([]bool, len(images))

	var sb strings.Builder
	insideList := false

	closeList := func() {
		if insideList {
			sb.WriteString("</ul>\n")
			insideList = false
		}
	}

	for _, item := range items {
		switch item.Type {
		case ItemParagraph, ItemHeading2, ItemHeading3, ItemTable:
			idx, ok := a.takeBlock(item, usedBlocks)
			if !ok {
				continue
			}
			closeList()
			a.writeBlock(&sb, blocks[idx], item.Type)

		case ItemListItem:
			idx, ok := a.takeBlock(item, usedBlocks)
			if !ok {
				continue
			}
			if !insideList {
				sb.WriteString("<ul>\n")
				insideList = true
			}
			fmt.Fprintf(&sb, "<li>%s</li>\n", blocks[idx].HTML)

		case ItemImage:
			if item.ImageIndex == nil {
				a.logger.Warn("Image item without index, skipping")
				continue
			}
			// 1-based externally, 0-based at lookup
			idx := *item.ImageIndex - 1
			if idx < 0 || idx >= len(images) {
				a.logger.Warn("Image index out of range, skipping",
					zap.Int("image_index", *item.ImageIndex),
					zap.Int("image_count", len(images)))
				continue
			}
			if usedImages[idx] {
				a.logger.Warn("Duplicate image index, skipping", zap.Int("image_index", *item.ImageIndex))
				continue
			}
			usedImages[idx] = true
			closeList()
			a.writeFigure(ctx, &sb, images[idx])

		default:
			a.logger.Warn("Unknown structure item type, skipping", zap.String("type", string(item.Type)))
		}
	}

	closeList()

	// Invariant: no block is ever silently dropped.
	for i, used := range usedBlocks {
		if used {
			continue
		}
		a.logger.Warn("Block not referenced by structure, appending", zap.Int("block_index", i))
		a.writeBlock(&sb, blocks[i], ItemParagraph)
	}

	// Invariant: no image is ever silently dropped.
	for i, used := range usedImages {
		if used {
			continue
		}
		a.logger.Warn("Image not referenced by structure, appending", zap.Int("image_index", i+1))
		a.writeFigure(ctx, &sb, images[i])
	}

	return sb.String()
}

// takeBlock validates a block-bearing item and marks its block used.
func (a *Assembler) takeBlock(item StructureItem, used []bool) (int, bool) {
	if item.BlockIndex == nil {
		a.logger.Warn("Structure item without block index, skipping", zap.String("type", string(item.Type)))
		return 0, false
	}
	idx := *item.BlockIndex
	if idx < 0 || idx >= len(used) {
		a.logger.Warn("Block index out of range, skipping",
			zap.Int("block_index", idx), zap.Int("block_count", len(used)))
		return 0, false
	}
	if used[idx] {
		a.logger.Warn("Duplicate block index, skipping", zap.Int("block_index", idx))
		return 0, false
	}
	used[idx] = true
	return idx, true
}

// writeBlock wraps a block's original inner HTML in the target tag.
// The text itself is never regenerated or rewritten. Source tables are
// re-emitted verbatim inside a raw passthrough regardless of the
// classified type, since table markup cannot nest inside a paragraph.
func (a *Assembler) writeBlock(sb *strings.Builder, b Block, t ItemType) {
	if b.Tag == "table" || t == ItemTable {
		fmt.Fprintf(sb, "%s\n%s\n%s\n", rawOpen, b.HTML, rawClose)
		return
	}
	fmt.Fprintf(sb, "<%s>%s</%s>\n", t, b.HTML, t)
}

func (a *Assembler) writeFigure(ctx context.Context, sb *strings.Builder, img Image) {
	caption := a.captionFor(ctx, img)
	fmt.Fprintf(sb,
		`<figure><img src="%s" alt="%s" style="max-width:100%%;height:auto"/><figcaption>%s</figcaption></figure>`+"\n",
		html.EscapeString(img.URL), html.EscapeString(caption), html.EscapeString(caption))
}

// captionFor prefers the alt text already produced during the image
// stage so the model is not asked to caption the same image twice.
func (a *Assembler) captionFor(ctx context.Context, img Image) string {
	if img.Alt != "" {
		return img.Alt
	}
	if a.caption == nil {
		return genericCaption
	}
	caption, err := a.caption(ctx, img.Prompt)
	if err != nil || strings.TrimSpace(caption) == "" {
		a.logger.Warn("Caption generation failed, using generic caption",
			zap.String("image_url", img.URL), zap.Error(err))
		return genericCaption
	}
	return strings.TrimSpace(caption)
}

// WrapRaw wraps arbitrary HTML in the raw passthrough marker used for
// tables and widget embeds.
func WrapRaw(inner string) string {
	return rawOpen + "\n" + inner + "\n" + rawClose
}
