package status

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func remaining(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestDerive(t *testing.T) {
	threshold := decimal.NewFromInt(10)

	tests := []struct {
		name      string
		remaining decimal.NullDecimal
		expected  Status
	}{
		{"uninitialized is normal", decimal.NullDecimal{}, Normal},
		{"above threshold", remaining("15"), Normal},
		{"just above threshold", remaining("10.001"), Normal},
		{"at threshold", remaining("10"), Warning},
		{"below threshold", remaining("5"), Warning},
		{"zero is depleted", remaining("0"), Depleted},
		{"slightly negative is overdrawn", remaining("-0.001"), Overdrawn},
		{"deep overdraw", remaining("-50"), Overdrawn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Derive(tt.remaining, threshold))
		})
	}
}

func TestDerive_DepletedBeatsWarningAtZeroThreshold(t *testing.T) {
	assert.Equal(t, Depleted, Derive(remaining("0"), decimal.Zero))
}

func TestResolve(t *testing.T) {
	def := decimal.NewFromInt(100)

	override := decimal.NullDecimal{Decimal: decimal.NewFromInt(25), Valid: true}
	assert.True(t, Resolve(override, def).Equal(decimal.NewFromInt(25)))
	assert.True(t, Resolve(decimal.NullDecimal{}, def).Equal(def))
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityRank(Overdrawn), SeverityRank(Depleted))
	assert.Less(t, SeverityRank(Depleted), SeverityRank(Warning))
	assert.Less(t, SeverityRank(Warning), SeverityRank(Normal))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(Normal))
	assert.True(t, IsValid(Overdrawn))
	assert.False(t, IsValid(Status("bogus")))
}
