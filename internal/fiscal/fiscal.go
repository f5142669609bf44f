// Package fiscal classifies Italian fiscal identifiers as belonging to a
// person or a company.
package fiscal

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/agency-crm/internal/model"
)

// Evidence records which tier of the classifier decided the type.
type Evidence string

const (
	EvidenceFormat    Evidence = "format"
	EvidenceHeuristic Evidence = "heuristic"
)

// Result is the outcome of Classify.
type Result struct {
	Type           model.CustomerType `json:"type"`
	NormalizedCode string             `json:"normalized_code"`
	Evidence       Evidence           `json:"evidence"`
}

// Digit positions of a personal code also accept the omocodia letters that
// replace digits when two people collide on the same code.
const omocodia = "0-9LMNPQRSTUV"

var (
	personalCode = regexp.MustCompile(`^[A-Z]{6}[` + omocodia + `]{2}[A-Z][` + omocodia + `]{2}[A-Z][` + omocodia + `]{3}[A-Z]$`)
	companyCode  = regexp.MustCompile(`^[0-9]{11}$`)
)

// companyMarkers are legal-form tokens that identify a company name. They
// are compared after dots and diacritics are removed.
var companyMarkers = map[string]bool{
	"SRL":     true,
	"SRLS":    true,
	"SPA":     true,
	"SNC":     true,
	"SAS":     true,
	"DITTA":   true,
	"SOCIETA": true,
}

// Normalize strips every non-alphanumeric character and uppercases.
func Normalize(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, r := range raw {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(unicode.ToUpper(r))
		}
	}
	return sb.String()
}

// IsPersonalCode reports whether code (already normalized) has the 16-char
// personal tax code shape.
func IsPersonalCode(code string) bool {
	return personalCode.MatchString(code)
}

// IsCompanyCode reports whether code (already normalized) is an 11-digit VAT number.
func IsCompanyCode(code string) bool {
	return companyCode.MatchString(code)
}

// Classify decides PERSON or COMPANY for a raw fiscal code. Format evidence
// always wins; the AI hint and the name keyword scan are only consulted for
// foreign or malformed codes.
func Classify(raw, name string, aiHint model.CustomerType) Result {
	code := Normalize(raw)
	switch {
	case IsPersonalCode(code):
		return Result{Type: model.CustomerPerson, NormalizedCode: code, Evidence: EvidenceFormat}
	case IsCompanyCode(code):
		return Result{Type: model.CustomerCompany, NormalizedCode: code, Evidence: EvidenceFormat}
	}

	t := model.CustomerPerson
	if aiHint == model.CustomerCompany || HasCompanyMarker(name) {
		t = model.CustomerCompany
	}
	return Result{Type: t, NormalizedCode: code, Evidence: EvidenceHeuristic}
}

// HasCompanyMarker scans a name for legal-form suffixes such as "S.R.L." or
// "SOCIETÀ".
func HasCompanyMarker(name string) bool {
	folded := strings.ToUpper(stripDiacritics(name))
	for _, tok := range strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '-' || r == '(' || r == ')'
	}) {
		if companyMarkers[strings.ReplaceAll(tok, ".", "")] {
			return true
		}
	}
	// Spaced forms like "S. R. L." tokenise into single letters.
	spaced := strings.ReplaceAll(folded, " ", "")
	return strings.Contains(spaced, "S.R.L") || strings.Contains(spaced, "S.P.A")
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
