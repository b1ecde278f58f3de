package content

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var tagWord = regexp.MustCompile(`[\p{L}\p{N}]+`)

const maxArticleTags = 30

// DeriveTags builds the article tag set the widget scorer matches
// against: lowercase words from the title and section headings, in
// document order, deduplicated. Short stop-ish words are dropped.
func DeriveTags(title, htmlStr string) []string {
	var sources []string
	if title != "" {
		sources = append(sources, title)
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr)); err == nil {
		doc.Find("h2, h3").Each(func(_ int, s *goquery.Selection) {
			sources = append(sources, s.Text())
		})
	}

	seen := make(map[string]bool)
	var tags []string
	for _, src := range sources {
		for _, word := range tagWord.FindAllString(strings.ToLower(src), -1) {
			if len([]rune(word)) < 3 || seen[word] {
				continue
			}
			seen[word] = true
			tags = append(tags, word)
			if len(tags) >= maxArticleTags {
				return tags
			}
		}
	}
	return tags
}
