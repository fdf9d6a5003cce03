package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Canonical units of measure.
const (
	UOMUnit     = "UNIT"
	UOMKilogram = "KGM"
	UOMMeter    = "MTR"
	UOMLiter    = "LTR"
)

// uomAliases maps the unit spellings seen on invoices and certificates to
// the canonical set.
var uomAliases = map[string]string{
	// Unit/piece variants
	"unt":    UOMUnit,
	"unit":   UOMUnit,
	"units":  UOMUnit,
	"pcs":    UOMUnit,
	"pc":     UOMUnit,
	"piece":  UOMUnit,
	"pieces": UOMUnit,
	"ea":     UOMUnit,
	"each":   UOMUnit,
	"nos":    UOMUnit,
	"no":     UOMUnit,
	"number": UOMUnit,
	// Kilogram variants
	"kgm":       UOMKilogram,
	"kgs":       UOMKilogram,
	"kg":        UOMKilogram,
	"kilogram":  UOMKilogram,
	"kilograms": UOMKilogram,
	// Meter variants
	"mtr":    UOMMeter,
	"m":      UOMMeter,
	"meter":  UOMMeter,
	"meters": UOMMeter,
	"metre":  UOMMeter,
	"metres": UOMMeter,
	// Liter variants
	"ltr":    UOMLiter,
	"l":      UOMLiter,
	"liter":  UOMLiter,
	"liters": UOMLiter,
	"litre":  UOMLiter,
	"litres": UOMLiter,
}

var foldCaser = cases.Fold()

// Normalize canonicalizes an item name for comparison: NFKD decomposition,
// case folding, punctuation replaced with spaces, whitespace collapsed.
// Empty or punctuation-only input normalizes to "".
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	decomposed := norm.NFKD.String(text)
	folded := foldCaser.String(decomposed)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeUOM maps a unit-of-measure string to its canonical form.
// Unrecognized units are upper-cased and returned as-is; empty input
// defaults to UNIT.
func NormalizeUOM(uom string) string {
	trimmed := strings.TrimSpace(uom)
	if trimmed == "" {
		return UOMUnit
	}
	if canonical, ok := uomAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return strings.ToUpper(trimmed)
}

// UOMsCompatible reports whether two units can have their quantities
// compared. There is no cross-unit conversion: units are compatible only
// when they normalize to the same canonical form.
func UOMsCompatible(a, b string) bool {
	return NormalizeUOM(a) == NormalizeUOM(b)
}
