package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "NETWORK ROUTER", "network router"},
		{"strips punctuation", "Stainless-Steel (Grade 304)", "stainless steel grade 304"},
		{"collapses whitespace", "  computer   processing\tunit ", "computer processing unit"},
		{"empty input", "", ""},
		{"punctuation only", "!!! --- ???", ""},
		{"decomposes accents", "Café", "cafe"},
		{"fullwidth compatibility forms", "ＣＰＵ", "cpu"},
		{"keeps digits", "Model X-200", "model x 200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeUOM(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"UNT", UOMUnit},
		{"pcs", UOMUnit},
		{"Pieces", UOMUnit},
		{"ea", UOMUnit},
		{"KGS", UOMKilogram},
		{"kg", UOMKilogram},
		{"KGM", UOMKilogram},
		{"m", UOMMeter},
		{"metres", UOMMeter},
		{"litre", UOMLiter},
		{"", UOMUnit},
		{"   ", UOMUnit},
		{"xyz", "XYZ"}, // unrecognized passes through upper-cased
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUOM(tt.input))
		})
	}
}

func TestUOMsCompatible(t *testing.T) {
	assert.True(t, UOMsCompatible("UNT", "pieces"))
	assert.True(t, UOMsCompatible("kgs", "KGM"))
	assert.True(t, UOMsCompatible("XYZ", "xyz"))

	// Compatibility groups are singletons: no cross-unit conversion.
	assert.False(t, UOMsCompatible("UNIT", "KGM"))
	assert.False(t, UOMsCompatible("MTR", "LTR"))
}
