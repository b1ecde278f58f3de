package content

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// allowedTags is the structural/formatting/table/media whitelist, plus
// the script passthrough widget embeds depend on.
var allowedTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"ul": true, "ol": true, "li": true, "blockquote": true,
	"table": true, "thead": true, "tbody": true, "tfoot": true,
	"tr": true, "td": true, "th": true, "caption": true,
	"a": true, "strong": true, "em": true, "b": true, "i": true,
	"u": true, "s": true, "sub": true, "sup": true,
	"code": true, "pre": true, "br": true, "hr": true,
	"img": true, "figure": true, "figcaption": true,
	"span": true, "div": true, "script": true,
}

// dropContent lists disallowed tags whose inner text is noise rather
// than content and must go with the tag.
var dropContent = map[string]bool{
	"style": true, "head": true, "title": true, "meta": true,
	"link": true, "iframe": true, "object": true, "embed": true,
	"noscript": true,
}

var allowedAttrs = map[string]bool{
	"href": true, "src": true, "alt": true, "title": true,
	"style": true, "target": true, "rel": true,
	"width": true, "height": true, "colspan": true, "rowspan": true,
	"type": true, "async": true, "defer": true,
}

var wpComment = regexp.MustCompile(`<!--\s*/?wp:[^>]*?-->`)

// Sanitizer cleans a whole document's HTML against the whitelist,
// preserves block-editor passthrough comments, and rewrites anchors
// that leave the publish domain.
type Sanitizer struct {
	publishHost string
	logger      *zap.Logger
}

func NewSanitizer(publishDomain string, logger *zap.Logger) *Sanitizer {
	return &Sanitizer{
		publishHost: normalizeHost(publishDomain),
		logger:      logger,
	}
}

// Sanitize is pure over the whole document content. Malformed input
// never errors; the parser always produces some DOM. An unexpected
// internal fault is returned as an error, which callers treat as fatal
// because publishing unsanitized content is unacceptable.
func (s *Sanitizer) Sanitize(in string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sanitizer internal fault: %v", r)
		}
	}()

	// Block-editor comments are not standard markup and would not
	// survive the DOM round trip; stash them behind placeholders.
	var comments []string
	masked := wpComment.ReplaceAllStringFunc(in, func(c string) string {
		comments = append(comments, c)
		return fmt.Sprintf("@@wp-comment-%d@@", len(comments)-1)
	})

	doc, parseErr := html.Parse(strings.NewReader(masked))
	if parseErr != nil {
		return "", fmt.Errorf("parse document: %w", parseErr)
	}

	body := findNode(doc, "body")
	if body == nil {
		return "", nil
	}

	s.cleanChildren(body)

	var sb strings.Builder
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		if renderErr := html.Render(&sb, child); renderErr != nil {
			return "", fmt.Errorf("render document: %w", renderErr)
		}
	}

	result := sb.String()
	for i, c := range comments {
		result = strings.ReplaceAll(result, fmt.Sprintf("@@wp-comment-%d@@", i), c)
	}
	return result, nil
}

func (s *Sanitizer) cleanChildren(n *html.Node) {
	// Children are collected first; cleaning mutates the list.
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		s.cleanNode(n, c)
	}
}

func (s *Sanitizer) cleanNode(parent, n *html.Node) {
	switch n.Type {
	case html.CommentNode:
		parent.RemoveChild(n)

	case html.ElementNode:
		if dropContent[n.Data] {
			parent.RemoveChild(n)
			return
		}
		if !allowedTags[n.Data] {
			// Strip the tag but keep its children in place.
			var children []*html.Node
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				children = append(children, c)
			}
			for _, c := range children {
				n.RemoveChild(c)
				parent.InsertBefore(c, n)
				s.cleanNode(parent, c)
			}
			parent.RemoveChild(n)
			return
		}

		s.cleanAttrs(n)
		if n.Data == "a" {
			s.rewriteExternalLink(n)
		}
		s.cleanChildren(n)
	}
}

func (s *Sanitizer) cleanAttrs(n *html.Node) {
	kept := n.Attr[:0]
	for _, attr := range n.Attr {
		if attr.Namespace != "" {
			continue
		}
		key := strings.ToLower(attr.Key)
		if allowedAttrs[key] || strings.HasPrefix(key, "data-") {
			kept = append(kept, attr)
		}
	}
	n.Attr = kept
}

// rewriteExternalLink forces target=_blank and a safe rel on anchors
// whose absolute href points off the publish domain. Relative links,
// same-domain links, and non-http(s) schemes are left untouched.
func (s *Sanitizer) rewriteExternalLink(n *html.Node) {
	href := getAttr(n, "href")
	if href == "" {
		return
	}

	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return
	}
	if s.publishHost != "" && normalizeHost(u.Host) == s.publishHost {
		return
	}

	setAttr(n, "target", "_blank")
	setAttr(n, "rel", "noopener noreferrer")
}

func findNode(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
