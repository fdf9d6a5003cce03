package matcher

import (
	"github.com/shopspring/decimal"
)

// Mode selects how item names are compared.
type Mode string

const (
	// ModeExact only accepts equal normalized names.
	ModeExact Mode = "exact"
	// ModeFuzzy falls back to similarity scoring when names differ.
	ModeFuzzy Mode = "fuzzy"
)

// Severity classifies a match warning.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Config holds matcher configuration
type Config struct {
	Mode      Mode    // exact or fuzzy (default: fuzzy)
	Threshold float64 // Minimum score for fuzzy matches (default: 0.75)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Mode:      ModeFuzzy,
		Threshold: 0.75,
	}
}

// InvoiceItem is a parsed invoice line to be matched. Produced by the
// invoice parser; the matcher never persists it.
type InvoiceItem struct {
	LineNo      int
	Name        string
	Quantity    decimal.Decimal
	QuantityUOM string
	NetWeight   decimal.NullDecimal // weight in KG, when the invoice carries one
	Amount      decimal.NullDecimal
}

// EffectiveQuantity returns the quantity used for balance comparisons.
// When the invoice line is measured in kilograms and a net weight is
// present, the net weight wins over the unit count.
func (i InvoiceItem) EffectiveQuantity() decimal.Decimal {
	if NormalizeUOM(i.QuantityUOM) == UOMKilogram && i.NetWeight.Valid {
		return i.NetWeight.Decimal
	}
	return i.Quantity
}

// CertificateItem is one approved line of an exemption certificate as the
// matcher sees it: identity, name, UOM and the quantity still available.
type CertificateItem struct {
	ID               string
	LineNo           int
	HSCode           string
	Name             string
	UOM              string
	ApprovedQuantity decimal.NullDecimal
	Remaining        decimal.NullDecimal // current remaining; falls back to approved when unset
}

// remainingOrApproved seeds the simulated balance for one matching pass.
func (c CertificateItem) remainingOrApproved() decimal.Decimal {
	if c.Remaining.Valid {
		return c.Remaining.Decimal
	}
	if c.ApprovedQuantity.Valid {
		return c.ApprovedQuantity.Decimal
	}
	return decimal.Zero
}

// Warning is a non-fatal annotation attached to a match. A match carrying
// an error-severity warning is still returned as matched; accepting it is
// the caller's call.
type Warning struct {
	InvoiceItem     string   `json:"invoice_item"`
	CertificateItem string   `json:"certificate_item"`
	Reason          string   `json:"reason"`
	Severity        Severity `json:"severity"`
	Details         string   `json:"details,omitempty"`
}

// Match pairs one invoice item with at most one certificate item.
type Match struct {
	InvoiceItem     InvoiceItem
	CertificateItem *CertificateItem // nil when no match was found
	Score           float64
	IsExact         bool
	RemainingQty    decimal.Decimal // simulated remaining after this match, not committed
	Warnings        []Warning
}

// Matched reports whether a certificate item was assigned.
func (m Match) Matched() bool {
	return m.CertificateItem != nil
}

// Result is the outcome of one matching pass. Matches mirrors the invoice
// input order, including unmatched lines.
type Result struct {
	Matches        []Match
	Unmatched      []InvoiceItem
	Warnings       []Warning
	TotalItems     int
	MatchedCount   int
	UnmatchedCount int
}
