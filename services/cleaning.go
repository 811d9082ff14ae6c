package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Cleaning rules used by the normalizer. Every function here is pure and
// total: bad input yields a zero value or nil, never an error or panic, and
// re-applying a rule to its own output changes nothing.

// CaseMode selects the optional case fold applied by CleanString.
type CaseMode string

const (
	CaseNone  CaseMode = ""
	CaseLower CaseMode = "lower"
	CaseUpper CaseMode = "upper"
	CaseTitle CaseMode = "title"
)

// CleanOptions configures CleanString.
type CleanOptions struct {
	Case         CaseMode
	StripSpecial bool
}

var specialChars = regexp.MustCompile(`[^\p{L}\p{N}\s&\-.,']`)

// CleanString trims whitespace and optionally folds case and strips
// special characters. Unicode letters survive the strip so brand names
// like "Hermès" stay intact.
func CleanString(s string, opts CleanOptions) string {
	out := strings.TrimSpace(s)
	if opts.StripSpecial {
		out = specialChars.ReplaceAllString(out, "")
		out = strings.TrimSpace(out)
	}
	switch opts.Case {
	case CaseLower:
		out = strings.ToLower(out)
	case CaseUpper:
		out = strings.ToUpper(out)
	case CaseTitle:
		out = titleCase(out)
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var sizePattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)(ml|milliliter|millilitre|liter|litre|l|gramm|gram|g|kilogramm|kilogram|kilo|kg)\b`)

// canonical unit spellings, localized variants included
var unitAliases = map[string]string{
	"ml": "ml", "milliliter": "ml", "millilitre": "ml",
	"l": "l", "liter": "l", "litre": "l",
	"g": "g", "gram": "g", "gramm": "g",
	"kg": "kg", "kilo": "kg", "kilogram": "kg", "kilogramm": "kg",
}

// NormalizeSize lower-cases, strips internal whitespace and extracts a
// "<number><unit>" token such as "100ml" or "0.5l". Input without a
// numeric match is returned lowercased and de-spaced as-is.
func NormalizeSize(s string) string {
	compact := strings.Join(strings.Fields(strings.ToLower(s)), "")
	m := sizePattern.FindStringSubmatch(compact)
	if m == nil {
		return compact
	}
	number := strings.ReplaceAll(m[1], ",", ".")
	return number + unitAliases[m[2]]
}

var nonDigits = regexp.MustCompile(`\D`)

// CleanEAN strips everything but digits and accepts only the valid EAN/UPC
// lengths 8, 12, 13 and 14. Anything else yields the empty string; whether
// that is an error is the caller's judgment.
func CleanEAN(s string) string {
	digits := nonDigits.ReplaceAllString(s, "")
	switch len(digits) {
	case 8, 12, 13, 14:
		return digits
	}
	return ""
}

var priceChars = regexp.MustCompile(`[^\d.,]`)

// ParsePrice parses a price in either "1.234,56" (European) or "1234.56"
// convention. When a comma is present, dots are treated as thousands
// separators and the comma as the decimal mark. Unparsable or negative
// input yields nil. Results are rounded to two decimals.
func ParsePrice(s string) *float64 {
	cleaned := priceChars.ReplaceAllString(s, "")
	if cleaned == "" {
		return nil
	}
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return nil
	}
	v = math.Round(v*100) / 100
	return &v
}

var currencyAliases = map[string]string{
	"EURO": "EUR", "EUROS": "EUR", "€": "EUR",
	"DOLLAR": "USD", "DOLLARS": "USD", "$": "USD",
	"POUND": "GBP", "POUNDS": "GBP", "£": "GBP",
}

// NormalizeCurrency upper-cases a currency token and maps common aliases
// and symbols onto ISO codes. Unknown input passes through uppercased.
func NormalizeCurrency(s string) string {
	up := strings.ToUpper(strings.TrimSpace(s))
	if code, ok := currencyAliases[up]; ok {
		return code
	}
	return up
}

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// ordered so that counted words win over generic ones ("duo set" is 2)
var packWords = []struct {
	word string
	n    int
}{
	{"quad", 4},
	{"triple", 3},
	{"twin", 2},
	{"duo", 2},
	{"single", 1},
	{"pack", 1},
	{"set", 1},
	{"bundle", 1},
}

// ParsePackSize extracts a leading integer, falls back to a fixed word
// vocabulary (duo, triple, ...) and defaults to 1.
func ParsePackSize(s string) int {
	if m := leadingInt.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
			return n
		}
	}
	low := strings.ToLower(s)
	for _, pw := range packWords {
		if strings.Contains(low, pw.word) {
			return pw.n
		}
	}
	return 1
}

// availability vocabularies; short tokens are matched exactly, phrases as
// substrings
var (
	unavailableTokens  = map[string]bool{"0": true, "n": true, "no": true, "nee": true, "nein": true, "false": true}
	unavailablePhrases = []string{
		"out of stock", "unavailable", "sold out", "discontinued",
		"nicht verfügbar", "ausverkauft", "nicht lieferbar",
		"uitverkocht", "niet leverbaar", "niet op voorraad",
	}
	availableTokens  = map[string]bool{"1": true, "y": true, "yes": true, "ja": true, "true": true}
	availablePhrases = []string{
		"available", "in stock", "instock", "auf lager", "lieferbar",
		"verfügbar", "op voorraad", "leverbaar", "beschikbaar",
	}
)

// ParseAvailability infers a stock flag from free text. Unknown or
// ambiguous text defaults to true: an unknown stock state is assumed
// sellable.
func ParseAvailability(s string) bool {
	low := strings.ToLower(strings.TrimSpace(s))
	if low == "" {
		return true
	}
	if unavailableTokens[low] {
		return false
	}
	for _, phrase := range unavailablePhrases {
		if strings.Contains(low, phrase) {
			return false
		}
	}
	if availableTokens[low] {
		return true
	}
	for _, phrase := range availablePhrases {
		if strings.Contains(low, phrase) {
			return true
		}
	}
	return true
}
