// Package matcher pairs free-text invoice line items with certificate line
// items under fuzzy-text and unit-of-measure rules.
//
// Matching is a greedy, single forward pass over the invoice: earlier
// invoice items claim certificate items first, and each certificate item is
// consumed at most once per pass. This is intentionally NOT a globally
// optimal bipartite assignment.
//
// Example usage:
//
//	m := matcher.NewMatcher(matcher.DefaultConfig())
//	result := m.Match(invoiceItems, certificateItems)
//	for _, match := range result.Matches {
//		if match.Matched() {
//			// invoice line assigned to match.CertificateItem
//		}
//	}
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Warning reasons surfaced to callers.
const (
	ReasonUOMMismatch     = "UOM mismatch"
	ReasonNoRemaining     = "No remaining quantity"
	ReasonExceedsApproved = "Exceeds remaining approved quantity"
	ReasonNearLimit       = "Near limit"
)

// nearLimitRatio triggers the informational near-limit warning when an
// invoice line consumes at least this share of the remaining quantity.
var nearLimitRatio = decimal.NewFromFloat(0.90)

// Matcher assigns invoice items to certificate items 1-to-1.
type Matcher struct {
	config Config
}

// NewMatcher creates a new matcher with the given config
func NewMatcher(config Config) *Matcher {
	if config.Mode == "" {
		config.Mode = ModeFuzzy
	}
	return &Matcher{config: config}
}

// Match runs one matching pass. It is pure: repeated calls with the same
// inputs return identical assignments, and concurrent calls over
// independent inputs are safe. The simulated remaining quantities live
// only for the duration of the call.
func (m *Matcher) Match(invoiceItems []InvoiceItem, certItems []CertificateItem) Result {
	matches := make([]Match, 0, len(invoiceItems))
	var unmatched []InvoiceItem
	var allWarnings []Warning

	used := make(map[int]bool, len(certItems))

	// Simulated balances, seeded from each item's current remaining (or
	// approved) quantity and drawn down as earlier invoice lines match.
	remaining := make(map[int]decimal.Decimal, len(certItems))
	for idx, item := range certItems {
		remaining[idx] = item.remainingOrApproved()
	}

	for _, invItem := range invoiceItems {
		bestIdx, score, isExact := m.findBest(invItem, certItems, used)

		if bestIdx < 0 {
			unmatched = append(unmatched, invItem)
			matches = append(matches, Match{
				InvoiceItem:  invItem,
				Score:        0.0,
				RemainingQty: decimal.Zero,
			})
			continue
		}

		certItem := certItems[bestIdx]
		warnings := quantityWarnings(invItem, certItem, remaining[bestIdx])
		allWarnings = append(allWarnings, warnings...)

		// Draw down the simulated balance, floored at zero, so later
		// invoice lines see what this one consumed. Incompatible units
		// cannot be compared, so they consume nothing.
		if UOMsCompatible(invItem.QuantityUOM, certItem.UOM) {
			after := remaining[bestIdx].Sub(invItem.EffectiveQuantity())
			if after.IsNegative() {
				after = decimal.Zero
			}
			remaining[bestIdx] = after
		}

		used[bestIdx] = true

		matches = append(matches, Match{
			InvoiceItem:     invItem,
			CertificateItem: &certItem,
			Score:           score,
			IsExact:         isExact,
			RemainingQty:    remaining[bestIdx],
			Warnings:        warnings,
		})
	}

	matchedCount := 0
	for _, match := range matches {
		if match.Matched() {
			matchedCount++
		}
	}

	return Result{
		Matches:        matches,
		Unmatched:      unmatched,
		Warnings:       allWarnings,
		TotalItems:     len(invoiceItems),
		MatchedCount:   matchedCount,
		UnmatchedCount: len(unmatched),
	}
}

// findBest returns the index of the best unused certificate item for an
// invoice line, or -1 when nothing qualifies.
//
// Tie-breaking is deterministic: higher score wins, exact beats fuzzy at
// equal score, and a lower certificate line number breaks remaining ties.
func (m *Matcher) findBest(invItem InvoiceItem, certItems []CertificateItem, used map[int]bool) (int, float64, bool) {
	normInvoice := Normalize(invItem.Name)
	if normInvoice == "" {
		return -1, 0.0, false
	}

	bestIdx := -1
	bestScore := 0.0
	bestExact := false

	for idx, certItem := range certItems {
		if used[idx] {
			continue
		}

		normCert := Normalize(certItem.Name)
		if normCert == "" {
			continue
		}

		var score float64
		var isExact bool
		switch {
		case normInvoice == normCert:
			score = 1.0
			isExact = true
		case m.config.Mode == ModeFuzzy:
			score = Similarity(normInvoice, normCert)
		default:
			// Exact mode skips non-equal candidates entirely.
			continue
		}

		if !isExact && score < m.config.Threshold {
			continue
		}

		update := false
		switch {
		case score > bestScore:
			update = true
		case score == bestScore:
			if isExact && !bestExact {
				update = true
			} else if isExact == bestExact &&
				bestIdx >= 0 && certItem.LineNo < certItems[bestIdx].LineNo {
				update = true
			}
		}

		if update {
			bestIdx = idx
			bestScore = score
			bestExact = isExact
		}
	}

	return bestIdx, bestScore, bestExact
}

// quantityWarnings checks one accepted pairing for unit and balance
// problems. A UOM mismatch suppresses the quantity checks since the
// numbers are not comparable.
func quantityWarnings(invItem InvoiceItem, certItem CertificateItem, remaining decimal.Decimal) []Warning {
	var warnings []Warning

	invoiceDesc := itemDesc(invItem.LineNo, invItem.Name)
	certDesc := itemDesc(certItem.LineNo, certItem.Name)

	invoiceUOM := NormalizeUOM(invItem.QuantityUOM)
	certUOM := NormalizeUOM(certItem.UOM)

	if !UOMsCompatible(invoiceUOM, certUOM) {
		return append(warnings, Warning{
			InvoiceItem:     invoiceDesc,
			CertificateItem: certDesc,
			Reason:          ReasonUOMMismatch,
			Severity:        SeverityWarning,
			Details: fmt.Sprintf("Invoice UOM %q (%s) not compatible with certificate UOM %q (%s)",
				invItem.QuantityUOM, invoiceUOM, certItem.UOM, certUOM),
		})
	}

	quantity := invItem.EffectiveQuantity()

	switch {
	case remaining.LessThanOrEqual(decimal.Zero):
		warnings = append(warnings, Warning{
			InvoiceItem:     invoiceDesc,
			CertificateItem: certDesc,
			Reason:          ReasonNoRemaining,
			Severity:        SeverityError,
			Details:         fmt.Sprintf("Certificate item has no remaining approved quantity (0 %s)", certUOM),
		})
	case quantity.GreaterThan(remaining):
		warnings = append(warnings, Warning{
			InvoiceItem:     invoiceDesc,
			CertificateItem: certDesc,
			Reason:          ReasonExceedsApproved,
			Severity:        SeverityError,
			Details: fmt.Sprintf("Requested %s %s, but only %s %s remaining",
				quantity, invoiceUOM, remaining, certUOM),
		})
	default:
		ratio := quantity.Div(remaining)
		if ratio.GreaterThanOrEqual(nearLimitRatio) {
			percentage := ratio.Mul(decimal.NewFromInt(100)).IntPart()
			warnings = append(warnings, Warning{
				InvoiceItem:     invoiceDesc,
				CertificateItem: certDesc,
				Reason:          ReasonNearLimit,
				Severity:        SeverityInfo,
				Details: fmt.Sprintf("Using %d%% of remaining approved quantity (%s of %s %s)",
					percentage, quantity, remaining, certUOM),
			})
		}
	}

	return warnings
}

// itemDesc builds the short "Line N: name" reference used in warnings,
// truncating long names.
func itemDesc(lineNo int, name string) string {
	runes := []rune(name)
	if len(runes) > 40 {
		name = string(runes[:40])
	}
	return fmt.Sprintf("Line %d: %s", lineNo, name)
}
