package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	contentPolicy = bluemonday.UGCPolicy()
	textPolicy    = bluemonday.StrictPolicy()
)

// Sanitize cleans post HTML, keeping user-generated-content markup.
func Sanitize(input string) string {
	return contentPolicy.Sanitize(input)
}

// SanitizeText strips all markup, used for titles and names. Entities are
// decoded again since the result is stored as plain text.
func SanitizeText(input string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(input)))
}
