package merchant

import (
	"regexp"
	"strings"
)

// suffixes stripped from the end of a normalized name, longest first so
// partial strips cannot happen. Store-type words only; brand-specific
// words like "supercenter" are deliberately not stripped.
var suffixPattern = regexp.MustCompile(`\s+(?:restaurant|pharmacy|market|coffee|store|shop|cafe|corp|llc|inc|ltd)$`)

var (
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes a merchant display name for equality comparison
// and filter construction: lowercase, alphanumerics only, one trailing
// corporate/store-type suffix removed. Two names refer to the same
// merchant iff their normalized forms are equal. Never used for display.
func Normalize(name string) string {
	if name == "" {
		return ""
	}
	norm := strings.ToLower(name)
	norm = nonAlnumRe.ReplaceAllString(norm, "")
	norm = strings.TrimSpace(whitespaceRe.ReplaceAllString(norm, " "))
	norm = suffixPattern.ReplaceAllString(norm, "")
	return strings.TrimSpace(norm)
}
