// Package htmlsanitize strips markup from user-supplied text.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every tag and attribute. bluemonday policies are safe for
// concurrent use once built.
var strict = bluemonday.StrictPolicy()

// PlainText removes all HTML from s and returns trimmed plain text.
// Entities are decoded back so "a & b" round-trips unchanged.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains no markup.
func IsPlainText(s string) bool {
	return PlainText(s) == strings.TrimSpace(s)
}
