// Package markup cleans the rich text produced by the record editor.
package markup

import (
	"html"
	"regexp"
	"strings"
)

// emptyParagraph is what the editor emits for a blank line.
const emptyParagraph = "<p><br></p>"

// FixEditorArtifact replaces every empty editor paragraph with a plain line
// break. Applying it twice gives the same result as applying it once.
func FixEditorArtifact(s string) string {
	if !strings.Contains(s, emptyParagraph) {
		return s
	}
	return strings.ReplaceAll(s, emptyParagraph, "<br />")
}

var (
	brTags      = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockBounds = regexp.MustCompile(`(?i)</?(p|div|li|ul|ol|h[1-6]|blockquote|tr|td)[^>]*>`)
	allTags     = regexp.MustCompile(`<[^>]+>`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// StripToPlainText removes all tags for indexing. Line breaks and block
// boundaries become spaces so words on either side stay separate.
func StripToPlainText(s string) string {
	if s == "" {
		return s
	}
	s = brTags.ReplaceAllString(s, " ")
	s = blockBounds.ReplaceAllString(s, " ")
	s = allTags.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
