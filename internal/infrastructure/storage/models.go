package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amirhzn/mida-tracker-backend/internal/domain/status"
)

// Port is one of the three fixed import checkpoints goods may be declared
// through against a certificate item.
type Port string

const (
	PortKlang          Port = "port_klang"
	PortKLIA           Port = "klia"
	PortBukitKayuHitam Port = "bukit_kayu_hitam"
)

// AllPorts lists the ports in their canonical order.
func AllPorts() []Port {
	return []Port{PortKlang, PortKLIA, PortBukitKayuHitam}
}

// ParsePort validates a port string.
func ParsePort(s string) (Port, error) {
	switch Port(s) {
	case PortKlang, PortKLIA, PortBukitKayuHitam:
		return Port(s), nil
	}
	return "", fmt.Errorf("unknown port %q", s)
}

// Certificate is a customs-exemption certificate header plus its line items.
type Certificate struct {
	ID                 string             `json:"id"`
	CertificateNumber  string             `json:"certificate_number"`
	CompanyName        string             `json:"company_name"`
	ExemptionStartDate *time.Time         `json:"exemption_start_date,omitempty"`
	ExemptionEndDate   *time.Time         `json:"exemption_end_date,omitempty"`
	Status             string             `json:"status"` // draft or confirmed
	SourceFilename     string             `json:"source_filename,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Items              []*CertificateItem `json:"items,omitempty"`
}

// CertificateItem is one approved line of a certificate, including the
// cached remaining quantities. The remaining fields are a projection of
// the import_records ledger and are always recomputable from it.
type CertificateItem struct {
	ID            string `json:"id"`
	CertificateID string `json:"certificate_id"`
	LineNo        int    `json:"line_no"`
	HSCode        string `json:"hs_code"`
	ItemName      string `json:"item_name"`
	UOM           string `json:"uom"`

	ApprovedQuantity  decimal.NullDecimal `json:"approved_quantity"`
	PortKlangQty      decimal.NullDecimal `json:"port_klang_qty"`
	KLIAQty           decimal.NullDecimal `json:"klia_qty"`
	BukitKayuHitamQty decimal.NullDecimal `json:"bukit_kayu_hitam_qty"`

	RemainingQuantity       decimal.NullDecimal `json:"remaining_quantity"`
	RemainingPortKlang      decimal.NullDecimal `json:"remaining_port_klang"`
	RemainingKLIA           decimal.NullDecimal `json:"remaining_klia"`
	RemainingBukitKayuHitam decimal.NullDecimal `json:"remaining_bukit_kayu_hitam"`

	WarningThreshold decimal.NullDecimal `json:"warning_threshold"`
	QuantityStatus   status.Status       `json:"quantity_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined certificate context, populated by item reads.
	CertificateNumber string `json:"certificate_number,omitempty"`
	CompanyName       string `json:"company_name,omitempty"`
}

// ApprovedForPort returns the approved allocation for one port.
func (i *CertificateItem) ApprovedForPort(p Port) decimal.NullDecimal {
	switch p {
	case PortKlang:
		return i.PortKlangQty
	case PortKLIA:
		return i.KLIAQty
	case PortBukitKayuHitam:
		return i.BukitKayuHitamQty
	}
	return decimal.NullDecimal{}
}

// RemainingForPort returns the cached remaining balance for one port.
func (i *CertificateItem) RemainingForPort(p Port) decimal.NullDecimal {
	switch p {
	case PortKlang:
		return i.RemainingPortKlang
	case PortKLIA:
		return i.RemainingKLIA
	case PortBukitKayuHitam:
		return i.RemainingBukitKayuHitam
	}
	return decimal.NullDecimal{}
}

// ImportRecord is one append-only ledger entry: a quantity declared against
// a certificate item at a port. balance_before/after are computed, never
// user-supplied, and get rewritten by replay after corrective edits.
type ImportRecord struct {
	ID                   string          `json:"id"`
	CertificateItemID    string          `json:"certificate_item_id"`
	ImportDate           time.Time       `json:"import_date"`
	InvoiceNumber        string          `json:"invoice_number"`
	InvoiceLine          *int            `json:"invoice_line,omitempty"`
	DeclarationFormRegNo string          `json:"declaration_form_reg_no,omitempty"`
	QuantityImported     decimal.Decimal `json:"quantity_imported"`
	Port                 Port            `json:"port"`
	BalanceBefore        decimal.Decimal `json:"balance_before"`
	BalanceAfter         decimal.Decimal `json:"balance_after"`
	Remarks              string          `json:"remarks,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            *time.Time      `json:"updated_at,omitempty"`

	// Joined context for history listings.
	CertificateNumber string `json:"certificate_number,omitempty"`
	CompanyName       string `json:"company_name,omitempty"`
	ItemHSCode        string `json:"item_hs_code,omitempty"`
	ItemName          string `json:"item_name,omitempty"`
	ItemUOM           string `json:"item_uom,omitempty"`

	// seq is the insertion-ordered rowid, the creation-time tie-break
	// for replay ordering.
	seq int64
}

// CertificateFilters narrows certificate listings.
type CertificateFilters struct {
	Status string // empty = all
	Limit  int    // 0 = default 50
	Offset int
}

// CertificateList is a paginated certificate listing.
type CertificateList struct {
	Certificates []*Certificate `json:"certificates"`
	TotalCount   int            `json:"total_count"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
}

// BalanceFilters narrows item balance listings.
type BalanceFilters struct {
	CertificateID  string
	QuantityStatus status.Status
	HSCode         string // substring match
	Limit          int
	Offset         int
}

// ImportFilters narrows ledger history listings.
type ImportFilters struct {
	CertificateItemID string
	CertificateID     string
	Port              Port
	InvoiceNumber     string // substring match
	StartDate         *time.Time
	EndDate           *time.Time
	Limit             int
	Offset            int
}

// PortSummary aggregates ledger activity at one port.
type PortSummary struct {
	Port               Port            `json:"port"`
	TotalRecords       int             `json:"total_records"`
	TotalQuantity      decimal.Decimal `json:"total_quantity_imported"`
	UniqueItems        int             `json:"unique_items"`
	UniqueCertificates int             `json:"unique_certificates"`
	RecentImports      []*ImportRecord `json:"recent_imports"`
}
