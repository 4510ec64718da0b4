package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds generated slugs.
const MaxSlugLength = 160

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces     = regexp.MustCompile(`\s+`)
	slugDashes     = regexp.MustCompile(`-+`)
)

// Slugify turns a title into a URL-safe slug: accents are folded, everything
// outside [a-z0-9-] dropped, whitespace runs become single dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	out := strings.ToLower(folded)
	out = slugDisallowed.ReplaceAllString(out, "")
	out = strings.TrimSpace(out)
	out = slugSpaces.ReplaceAllString(out, "-")
	out = slugDashes.ReplaceAllString(out, "-")
	if len(out) > MaxSlugLength {
		out = strings.TrimRight(out[:MaxSlugLength], "-")
	}
	return out
}
