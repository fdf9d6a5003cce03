package dto

import (
	"github.com/shopspring/decimal"

	"github.com/amirhzn/mida-tracker-backend/internal/application/service"
	"github.com/amirhzn/mida-tracker-backend/internal/domain/matcher"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/storage"
)

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ImportListResponse is a paginated ledger listing.
type ImportListResponse struct {
	Records    []*storage.ImportRecord `json:"records"`
	TotalCount int                     `json:"total_count"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
}

// BalanceListResponse is a paginated item balance listing.
type BalanceListResponse struct {
	Items      []*storage.CertificateItem `json:"items"`
	TotalCount int                        `json:"total_count"`
	Limit      int                        `json:"limit"`
	Offset     int                        `json:"offset"`
}

// WarningsResponse lists items needing attention, most severe first.
type WarningsResponse struct {
	Items []*storage.CertificateItem `json:"items"`
	Count int                        `json:"count"`
}

// PortSummariesResponse is the all-ports rollup.
type PortSummariesResponse struct {
	Ports []*storage.PortSummary `json:"ports"`
}

// ThresholdResponse reports the process-wide warning threshold.
type ThresholdResponse struct {
	WarningThreshold decimal.Decimal `json:"warning_threshold"`
}

// BulkImportResponse is the outcome of a committed batch.
type BulkImportResponse struct {
	Results []*service.ImportResult `json:"results"`
	Count   int                     `json:"count"`
}

// BulkPreviewResponse is the outcome of a previewed batch.
type BulkPreviewResponse struct {
	Previews []*service.ImportPreview `json:"previews"`
	Count    int                      `json:"count"`
}

// MatchResultItem is one invoice line's match outcome, mirroring the
// invoice order.
type MatchResultItem struct {
	InvoiceLineNo       int                 `json:"invoice_line_no"`
	InvoiceName         string              `json:"invoice_name"`
	Matched             bool                `json:"matched"`
	CertificateItemID   string              `json:"certificate_item_id,omitempty"`
	CertificateLineNo   int                 `json:"certificate_line_no,omitempty"`
	CertificateItemName string              `json:"certificate_item_name,omitempty"`
	HSCode              string              `json:"hs_code,omitempty"`
	Score               float64             `json:"score"`
	IsExact             bool                `json:"is_exact"`
	RemainingQty        decimal.NullDecimal `json:"remaining_qty"`
	Warnings            []matcher.Warning   `json:"warnings,omitempty"`
}

// MatchResponse is the outcome of one matching pass.
type MatchResponse struct {
	Matches        []MatchResultItem `json:"matches"`
	TotalItems     int               `json:"total_items"`
	MatchedCount   int               `json:"matched_count"`
	UnmatchedCount int               `json:"unmatched_count"`
	Warnings       []matcher.Warning `json:"warnings"`
}

// NewMatchResponse converts a matcher result to the wire shape.
func NewMatchResponse(result *matcher.Result) MatchResponse {
	resp := MatchResponse{
		Matches:        make([]MatchResultItem, 0, len(result.Matches)),
		TotalItems:     result.TotalItems,
		MatchedCount:   result.MatchedCount,
		UnmatchedCount: result.UnmatchedCount,
		Warnings:       result.Warnings,
	}
	for _, m := range result.Matches {
		item := MatchResultItem{
			InvoiceLineNo: m.InvoiceItem.LineNo,
			InvoiceName:   m.InvoiceItem.Name,
			Matched:       m.Matched(),
			Score:         m.Score,
			IsExact:       m.IsExact,
			Warnings:      m.Warnings,
		}
		if m.Matched() {
			item.CertificateItemID = m.CertificateItem.ID
			item.CertificateLineNo = m.CertificateItem.LineNo
			item.CertificateItemName = m.CertificateItem.Name
			item.HSCode = m.CertificateItem.HSCode
			item.RemainingQty = decimal.NullDecimal{Decimal: m.RemainingQty, Valid: true}
		}
		resp.Matches = append(resp.Matches, item)
	}
	return resp
}
