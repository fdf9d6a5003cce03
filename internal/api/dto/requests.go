package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD request field.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// CertificateItemRequest is one approved line of a new certificate.
type CertificateItemRequest struct {
	LineNo            int              `json:"line_no"`
	HSCode            string           `json:"hs_code"`
	ItemName          string           `json:"item_name"`
	UOM               string           `json:"uom"`
	ApprovedQuantity  *decimal.Decimal `json:"approved_quantity"`
	PortKlangQty      *decimal.Decimal `json:"port_klang_qty"`
	KLIAQty           *decimal.Decimal `json:"klia_qty"`
	BukitKayuHitamQty *decimal.Decimal `json:"bukit_kayu_hitam_qty"`
	WarningThreshold  *decimal.Decimal `json:"warning_threshold"`
}

// CreateCertificateRequest creates a certificate with its items.
type CreateCertificateRequest struct {
	CertificateNumber  string                   `json:"certificate_number"`
	CompanyName        string                   `json:"company_name"`
	ExemptionStartDate string                   `json:"exemption_start_date"` // YYYY-MM-DD, optional
	ExemptionEndDate   string                   `json:"exemption_end_date"`   // YYYY-MM-DD, optional
	Status             string                   `json:"status"`               // draft (default) or confirmed
	SourceFilename     string                   `json:"source_filename"`
	Items              []CertificateItemRequest `json:"items"`
}

// MatchInvoiceItem is one parsed invoice line to match.
type MatchInvoiceItem struct {
	LineNo      int              `json:"line_no"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UOM         string           `json:"uom"`
	NetWeightKG *decimal.Decimal `json:"net_weight_kg"`
	Amount      *decimal.Decimal `json:"amount"`
}

// MatchRequest matches invoice lines against a certificate's items.
type MatchRequest struct {
	Items     []MatchInvoiceItem `json:"items"`
	Mode      string             `json:"mode"`      // exact or fuzzy; empty = server default
	Threshold float64            `json:"threshold"` // 0 = server default
}

// ImportRecordRequest is one import declaration.
type ImportRecordRequest struct {
	CertificateItemID    string          `json:"certificate_item_id"`
	ImportDate           string          `json:"import_date"` // YYYY-MM-DD
	InvoiceNumber        string          `json:"invoice_number"`
	InvoiceLine          *int            `json:"invoice_line"`
	DeclarationFormRegNo string          `json:"declaration_form_reg_no"`
	QuantityImported     decimal.Decimal `json:"quantity_imported"`
	Port                 string          `json:"port"`
	Remarks              string          `json:"remarks"`
}

// BulkImportRequest commits or previews a batch of declarations.
type BulkImportRequest struct {
	Records []ImportRecordRequest `json:"records"`
}

// ItemThresholdRequest sets or clears an item's warning threshold
// override. A null threshold clears the override.
type ItemThresholdRequest struct {
	WarningThreshold *decimal.Decimal `json:"warning_threshold"`
}

// DefaultThresholdRequest sets the process-wide warning threshold.
type DefaultThresholdRequest struct {
	WarningThreshold decimal.Decimal `json:"warning_threshold"`
}
