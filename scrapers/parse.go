package scrapers

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// German storefronts print prices as "1.234,56 €": dot for thousands,
// comma for decimals.
var priceDE = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})+|\d+)(?:,(\d{1,2}))?`)

// ParsePriceDE extracts the first German-formatted amount from free text.
// Returns nil when no amount is present.
func ParsePriceDE(s string) *float64 {
	m := priceDE.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	whole := strings.ReplaceAll(m[1], ".", "")
	frac := m[2]
	if frac == "" {
		frac = "0"
	}
	v, err := strconv.ParseFloat(whole+"."+frac, 64)
	if err != nil || v < 0 {
		return nil
	}
	v = math.Round(v*100) / 100
	return &v
}

var freeShippingDE = []string{"kostenlos", "gratis", "free"}

// ParseShippingDE reads a shipping-cost fragment. Free-shipping wording
// yields zero; text without any recognizable amount yields nil.
func ParseShippingDE(s string) *float64 {
	low := strings.ToLower(s)
	for _, marker := range freeShippingDE {
		if strings.Contains(low, marker) {
			zero := 0.0
			return &zero
		}
	}
	return ParsePriceDE(s)
}

// firstText tries each selector in order and returns the first non-empty
// trimmed text. A selector that matches nothing is simply skipped.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// firstAttr tries each selector in order and returns the first non-empty
// attribute value.
func firstAttr(s *goquery.Selection, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := s.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// MatchConfidence scores how well a listing title covers the search term's
// tokens, from 0 (nothing) to 1 (every token present).
func MatchConfidence(term, title string) float64 {
	tokens := strings.Fields(strings.ToLower(term))
	if len(tokens) == 0 {
		return 0
	}
	low := strings.ToLower(title)
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(low, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}
