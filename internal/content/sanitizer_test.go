package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSanitizer() *Sanitizer {
	return NewSanitizer("myblog.example.com", zap.NewNop())
}

func TestSanitize_KeepsWhitelistedMarkup(t *testing.T) {
	s := newTestSanitizer()

	in := `<h2>Section</h2><p>Text with <strong>bold</strong> and <em>italic</em>.</p><ul><li>item</li></ul>`
	out, err := s.Sanitize(in)
	require.NoError(t, err)

	assert.Contains(t, out, "<h2>Section</h2>")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "<li>item</li>")
}

func TestSanitize_StripsTagKeepsText(t *testing.T) {
	s := newTestSanitizer()

	out, err := s.Sanitize(`<p>Before <marquee>still here</marquee> after</p>`)
	require.NoError(t, err)

	assert.NotContains(t, out, "marquee")
	assert.Contains(t, out, "still here")
}

func TestSanitize_DropsNoiseTagsWithContent(t *testing.T) {
	s := newTestSanitizer()

	out, err := s.Sanitize(`<style>.x{color:red}</style><p>Content</p><iframe src="https://evil.test"></iframe>`)
	require.NoError(t, err)

	assert.NotContains(t, out, "color:red")
	assert.NotContains(t, out, "iframe")
	assert.Contains(t, out, "<p>Content</p>")
}

func TestSanitize_AttributeWhitelist(t *testing.T) {
	s := newTestSanitizer()

	out, err := s.Sanitize(`<p style="text-align:center" onclick="alert(1)" data-block="7" spellcheck="false">x</p>`)
	require.NoError(t, err)

	assert.Contains(t, out, `style="text-align:center"`)
	assert.Contains(t, out, `data-block="7"`)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "spellcheck")
}

func TestSanitize_ScriptPassthroughForEmbeds(t *testing.T) {
	s := newTestSanitizer()

	out, err := s.Sanitize(`<div><script src="https://widgets.example.net/embed.js" async></script></div>`)
	require.NoError(t, err)
	assert.Contains(t, out, "<script")
	assert.Contains(t, out, "embed.js")
}

func TestSanitize_BlockCommentsSurvive(t *testing.T) {
	s := newTestSanitizer()

	in := "<!-- wp:html -->\n<table><tbody><tr><td>v</td></tr></tbody></table>\n<!-- /wp:html --><p>after</p>"
	out, err := s.Sanitize(in)
	require.NoError(t, err)

	assert.Contains(t, out, "<!-- wp:html -->")
	assert.Contains(t, out, "<!-- /wp:html -->")
	assert.Contains(t, out, "<td>v</td>")
}

func TestSanitize_RemovesOrdinaryComments(t *testing.T) {
	s := newTestSanitizer()

	out, err := s.Sanitize(`<p>keep</p><!-- internal note -->`)
	require.NoError(t, err)
	assert.NotContains(t, out, "internal note")
}

func TestSanitize_ExternalLinkRewrite(t *testing.T) {
	s := newTestSanitizer()

	out, err := s.Sanitize(`<p><a href="https://other.example.org/page">external</a></p>`)
	require.NoError(t, err)

	assert.Contains(t, out, `target="_blank"`)
	assert.Contains(t, out, `rel="noopener noreferrer"`)
}

func TestSanitize_SameDomainLinkUntouched(t *testing.T) {
	s := newTestSanitizer()

	for _, href := range []string{
		"https://myblog.example.com/about",
		"https://www.myblog.example.com/about",
		"/relative/path",
		"#anchor",
		"mailto:team@myblog.example.com",
		"tel:+15551234567",
	} {
		out, err := s.Sanitize(`<p><a href="` + href + `">link</a></p>`)
		require.NoError(t, err)
		assert.NotContains(t, out, "_blank", "href %s must not be rewritten", href)
		assert.NotContains(t, out, "noopener", "href %s must not be rewritten", href)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := newTestSanitizer()

	inputs := []string{
		`<p>plain</p>`,
		`<p><a href="https://other.example.org">x</a></p>`,
		"<!-- wp:html --><table><tbody><tr><td>v</td></tr></tbody></table><!-- /wp:html -->",
		`<div onclick="x()"><span>nested <b>deep</b></span></div>`,
		`<p>ampersand &amp; angle &lt;ok&gt;</p>`,
		`broken <p>unclosed <b>markup`,
	}

	for _, in := range inputs {
		once, err := s.Sanitize(in)
		require.NoError(t, err)
		twice, err := s.Sanitize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "sanitize must be idempotent for %q", in)
	}
}

func TestSanitize_MalformedInputNeverErrors(t *testing.T) {
	s := newTestSanitizer()

	for _, in := range []string{
		"",
		"<<<<>>>",
		"<p><table><p></table>",
		strings.Repeat("<div>", 50),
	} {
		_, err := s.Sanitize(in)
		assert.NoError(t, err, "input %q", in)
	}
}
