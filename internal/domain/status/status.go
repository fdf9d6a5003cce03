// Package status derives the quantity health of a certificate item from
// its remaining balance. The derivation is a pure function so it can be
// re-run whenever either the remaining quantity or the threshold changes.
package status

import (
	"github.com/shopspring/decimal"
)

// Status is the derived health indicator of an item's remaining balance.
type Status string

const (
	Normal    Status = "normal"
	Warning   Status = "warning"
	Depleted  Status = "depleted"
	Overdrawn Status = "overdrawn"
)

// DefaultWarningThreshold is the initial process-wide threshold. It is a
// mutable setting; callers read the live value from storage and pass it in.
var DefaultWarningThreshold = decimal.NewFromInt(100)

// Derive computes the status for a remaining quantity against a threshold.
//
// Rules, in order: uninitialized remaining is normal, negative is
// overdrawn, zero is depleted (even when the threshold is zero), at or
// below the threshold is warning, otherwise normal.
func Derive(remaining decimal.NullDecimal, threshold decimal.Decimal) Status {
	if !remaining.Valid {
		return Normal
	}
	r := remaining.Decimal
	switch {
	case r.IsNegative():
		return Overdrawn
	case r.IsZero():
		return Depleted
	case r.LessThanOrEqual(threshold):
		return Warning
	default:
		return Normal
	}
}

// Resolve picks the effective threshold for an item: its own override when
// set, else the process-wide default.
func Resolve(itemThreshold decimal.NullDecimal, defaultThreshold decimal.Decimal) decimal.Decimal {
	if itemThreshold.Valid {
		return itemThreshold.Decimal
	}
	return defaultThreshold
}

// SeverityRank orders statuses for warning listings: overdrawn before
// depleted before warning; normal sorts last.
func SeverityRank(s Status) int {
	switch s {
	case Overdrawn:
		return 1
	case Depleted:
		return 2
	case Warning:
		return 3
	default:
		return 4
	}
}

// IsValid reports whether s is one of the known statuses.
func IsValid(s Status) bool {
	switch s {
	case Normal, Warning, Depleted, Overdrawn:
		return true
	}
	return false
}
