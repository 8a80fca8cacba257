package merchant

import (
	"regexp"
	"strings"
)

// Extraction strategies share vocabulary with the temporal and category
// extractors, so a candidate that is really a date or category term must
// be discarded before being treated as a merchant.

var reservedTerms = map[string]struct{}{
	// temporal vocabulary
	"january": {}, "february": {}, "march": {}, "april": {}, "may": {},
	"june": {}, "july": {}, "august": {}, "september": {}, "october": {},
	"november": {}, "december": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {},
	"aug": {}, "sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
	"today": {}, "yesterday": {}, "week": {}, "month": {}, "year": {},
	"quarter": {},
	// category vocabulary
	"coffee shop": {}, "coffee shops": {}, "restaurant": {}, "restaurants": {},
	"groceries": {}, "grocery": {}, "electronics": {}, "pharmacy": {},
	"health": {}, "treats": {},
}

var monthYearRe = regexp.MustCompile(`(?i)^(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept?|oct|nov|dec)\s+20\d{2}$`)

// FilterReserved drops candidates that are temporal terms, category
// terms, or look like a "Month Year" date.
func FilterReserved(candidates []string) []string {
	var out []string
	for _, c := range candidates {
		lower := strings.ToLower(strings.TrimSpace(c))
		if _, reserved := reservedTerms[lower]; reserved {
			continue
		}
		if monthYearRe.MatchString(lower) {
			continue
		}
		out = append(out, c)
	}
	return out
}
