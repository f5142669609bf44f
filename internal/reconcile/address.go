package reconcile

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// PlaceholderAddress is stored when a document carries no address.
const PlaceholderAddress = "unknown"

var placeholderValues = map[string]bool{
	"":            true,
	"unknown":     true,
	"sconosciuto": true,
	"n/d":         true,
	"nd":          true,
	"-":           true,
}

// AddressKey is the identity of an address for matching: case-folded with
// all whitespace removed. It is idempotent.
func AddressKey(addr string) string {
	// Casers are stateful, so one per call.
	folded := cases.Fold().String(addr)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}

// addressesOverlap reports whether either key contains the other. OCR often
// drops or adds floor/staircase details, so substring matching is tolerated.
func addressesOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// IsPlaceholderAddress reports whether s is empty or a stand-in such as "unknown".
func IsPlaceholderAddress(s string) bool {
	return placeholderValues[strings.ToLower(strings.TrimSpace(s))]
}
