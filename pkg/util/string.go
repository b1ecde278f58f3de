package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// GenerateSlug creates a URL-friendly slug from a document title
func GenerateSlug(title string) string {
	// Convert to lowercase
	slug := strings.ToLower(title)

	// Replace spaces and special characters with hyphens
	reg := regexp.MustCompile(`[^a-z0-9]+`)
	slug = reg.ReplaceAllString(slug, "-")

	// Remove leading/trailing hyphens
	slug = strings.Trim(slug, "-")

	// Limit length
	if len(slug) > 50 {
		slug = slug[:50]
		slug = strings.Trim(slug, "-")
	}

	return slug
}

// MediaFilename creates a filename for an uploaded image
func MediaFilename(title string, index int, date time.Time) string {
	slug := GenerateSlug(title)
	if slug == "" {
		slug = "image"
	}
	return fmt.Sprintf("%s-%s-%d.png", date.Format("2006-01-02"), slug, index)
}

// Truncate shortens s to at most n characters, appending an ellipsis
// when anything was cut. Operates on runes so multibyte text survives.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// ParseTags parses tag strings into arrays
func ParseTags(tagStr string) []string {
	if tagStr == "" {
		return []string{}
	}

	// Remove brackets if present
	tagStr = strings.Trim(tagStr, "[]")

	// Split by comma and clean up
	tags := strings.Split(tagStr, ",")
	var cleanTags []string

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		tag = strings.Trim(tag, "\"'") // Remove quotes
		if tag != "" {
			cleanTags = append(cleanTags, tag)
		}
	}

	return cleanTags
}
