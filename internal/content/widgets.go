package content

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Widget positions within a post.
const (
	PositionTop    = "top"
	PositionBottom = "bottom"
)

// Widget is one catalog entry of embeddable marketing HTML tagged with
// topical keywords. The catalog is read-only during job processing.
type Widget struct {
	ID        string   `yaml:"id" validate:"required"`
	Position  string   `yaml:"position" validate:"required,oneof=top bottom"`
	Tags      []string `yaml:"tags"`
	EmbedHTML string   `yaml:"embed_html" validate:"required"`
}

// Catalog holds the widget inventory, loaded once at process start and
// injected into the selector rather than referenced as global state.
type Catalog struct {
	Widgets          []Widget `yaml:"widgets"`
	FallbackBottomID string   `yaml:"fallback_bottom_id"`
}

// LoadCatalog reads and validates the widget catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read widget catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse widget catalog: %w", err)
	}

	validate := validator.New()
	for i, w := range catalog.Widgets {
		if err := validate.Struct(w); err != nil {
			return nil, fmt.Errorf("invalid widget at index %d: %w", i, err)
		}
	}

	return &catalog, nil
}

// WidgetDecision records which widgets were chosen for a post.
type WidgetDecision struct {
	TopWidgetID    string `json:"top_widget_id,omitempty"`
	BottomWidgetID string `json:"bottom_widget_id,omitempty"`
}

// Injector selects widgets against article tags and inserts them into
// sanitized HTML. Widgets are a non-critical enhancement; nothing in
// here is ever allowed to fail the job.
type Injector struct {
	catalog   *Catalog
	threshold int
	logger    *zap.Logger
}

func NewInjector(catalog *Catalog, topThreshold int, logger *zap.Logger) *Injector {
	if topThreshold <= 0 {
		topThreshold = 3
	}
	return &Injector{catalog: catalog, threshold: topThreshold, logger: logger}
}

// Select picks the highest-scoring widget for a position. Score is how
// many of the widget's tags overlap the article tag set by substring
// containment, case-insensitive, either direction. Ties resolve to
// catalog order. At zero score only the bottom position may fall back
// to the configured universal widget.
func (inj *Injector) Select(position string, articleTags []string) *Widget {
	lowered := make([]string, len(articleTags))
	for i, t := range articleTags {
		lowered[i] = strings.ToLower(t)
	}

	var best *Widget
	bestScore := 0
	for i := range inj.catalog.Widgets {
		w := &inj.catalog.Widgets[i]
		if w.Position != position {
			continue
		}
		score := tagScore(w.Tags, lowered)
		if score > bestScore {
			best = w
			bestScore = score
		}
	}

	if best == nil && position == PositionBottom && inj.catalog.FallbackBottomID != "" {
		for i := range inj.catalog.Widgets {
			w := &inj.catalog.Widgets[i]
			if w.ID == inj.catalog.FallbackBottomID && w.Position == PositionBottom {
				return w
			}
		}
	}

	return best
}

func tagScore(widgetTags, articleTags []string) int {
	score := 0
	for _, wt := range widgetTags {
		wt = strings.ToLower(wt)
		for _, at := range articleTags {
			if strings.Contains(at, wt) || strings.Contains(wt, at) {
				score++
				break
			}
		}
	}
	return score
}

// Inject inserts at most one widget at each of the two fixed slots.
// The top widget goes after the Nth block-level element when the post
// is long enough, otherwise before all content; the bottom widget is
// always appended. Any failure returns the input HTML unmodified.
func (inj *Injector) Inject(htmlStr string, articleTags []string) (string, WidgetDecision) {
	decision := WidgetDecision{}

	top := inj.Select(PositionTop, articleTags)
	bottom := inj.Select(PositionBottom, articleTags)
	if top == nil && bottom == nil {
		return htmlStr, decision
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		inj.logger.Warn("Widget injection skipped, HTML parse failed", zap.Error(err))
		return htmlStr, decision
	}

	body := doc.Find("body")

	if top != nil {
		blocks := body.ChildrenFiltered("p, h2, h3, ul, ol, blockquote, figure")
		if blocks.Length() > inj.threshold {
			blocks.Eq(inj.threshold - 1).AfterHtml("\n" + WrapRaw(top.EmbedHTML) + "\n")
		} else {
			body.PrependHtml(WrapRaw(top.EmbedHTML) + "\n")
		}
		decision.TopWidgetID = top.ID
	}

	if bottom != nil {
		body.AppendHtml("\n" + WrapRaw(bottom.EmbedHTML) + "\n")
		decision.BottomWidgetID = bottom.ID
	}

	out, err := body.Html()
	if err != nil {
		inj.logger.Warn("Widget injection skipped, render failed", zap.Error(err))
		return htmlStr, WidgetDecision{}
	}
	return out, decision
}
