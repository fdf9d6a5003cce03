package storage

import (
	"github.com/shopspring/decimal"
)

// Repository defines the complete storage interface. It allows swapping
// implementations and makes testing with fakes straightforward.
type Repository interface {
	CertificateRepository
	ImportRepository
	SettingsRepository

	// InTransaction runs fn inside a single database transaction. Any
	// error from fn rolls the whole transaction back, so multi-record
	// mutations are all-or-nothing.
	InTransaction(fn func(Mutator) error) error

	Close() error
}

// CertificateRepository handles certificates and their line items.
type CertificateRepository interface {
	// CreateCertificate inserts a certificate header with its items.
	// Remaining quantities are initialized from the approved values.
	CreateCertificate(cert *Certificate) error

	// GetCertificate retrieves a certificate with its items, ordered by
	// line number.
	GetCertificate(id string) (*Certificate, error)

	// ListCertificates returns certificates matching the filters.
	ListCertificates(f CertificateFilters) (*CertificateList, error)

	// DeleteCertificate removes a certificate; items and their ledger
	// records cascade.
	DeleteCertificate(id string) error

	// GetItem retrieves one certificate item with joined certificate
	// context.
	GetItem(itemID string) (*CertificateItem, error)

	// ListItemBalances returns items with their cached balances, plus
	// the unpaginated total count.
	ListItemBalances(f BalanceFilters) ([]*CertificateItem, int, error)

	// ListItemsInWarning returns items in warning, depleted, or
	// overdrawn status, ordered by severity then line number.
	ListItemsInWarning(certificateID string) ([]*CertificateItem, error)
}

// ImportRepository handles read access to the import ledger.
type ImportRepository interface {
	// GetImportRecord retrieves a single ledger entry with context.
	GetImportRecord(recordID string) (*ImportRecord, error)

	// ListImportRecords returns ledger entries matching the filters,
	// newest first, plus the unpaginated total count.
	ListImportRecords(f ImportFilters) ([]*ImportRecord, int, error)

	// GetImportHistory returns the authoritative replay-ordered history
	// for an item: by import date, then creation time. An empty port
	// means all ports.
	GetImportHistory(itemID string, port Port) ([]*ImportRecord, error)

	// ItemImportStats returns the number of ledger entries and the sum
	// of imported quantities for an item across all ports.
	ItemImportStats(itemID string) (int, decimal.Decimal, error)

	// PortSummary aggregates activity at one port.
	PortSummary(port Port, recentLimit int) (*PortSummary, error)
}

// SettingsRepository handles process-wide mutable settings.
type SettingsRepository interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error

	// DefaultWarningThreshold reads the process-wide threshold applied
	// to items without their own override.
	DefaultWarningThreshold() (decimal.Decimal, error)
	SetDefaultWarningThreshold(threshold decimal.Decimal) error
}

// Mutator is the mutation surface available inside one transaction.
// Callers are expected to hold the owning item's lock for the duration of
// any read-modify-write sequence.
type Mutator interface {
	GetItem(itemID string) (*CertificateItem, error)
	GetImportRecord(recordID string) (*ImportRecord, error)

	// InsertImportRecord appends a ledger entry. Balances must already
	// be computed by the caller.
	InsertImportRecord(rec *ImportRecord) error

	// UpdateImportRecord rewrites a ledger entry's user-editable fields
	// (date, invoice refs, quantity, port, remarks). Balance replay is
	// the caller's responsibility via RecalcPortBalances.
	UpdateImportRecord(rec *ImportRecord) error

	// DeleteImportRecord removes a ledger entry.
	DeleteImportRecord(recordID string) error

	// RecalcPortBalances replays the (item, port) ledger sequence from
	// the port's approved quantity, rewriting balance_before/after on
	// every record. Idempotent over an unchanged history.
	RecalcPortBalances(itemID string, port Port) error

	// RecalcItemRemaining recomputes the cached remaining quantities
	// from the full ledger (approved minus imported, per port; total as
	// the sum of the three ports) and re-derives quantity status.
	RecalcItemRemaining(itemID string, defaultThreshold decimal.Decimal) error

	// UpdateItemThreshold sets or clears an item's warning threshold
	// override and re-derives its status.
	UpdateItemThreshold(itemID string, threshold decimal.NullDecimal, defaultThreshold decimal.Decimal) error

	// RederiveStatuses re-derives quantity_status for every item without
	// a threshold override, against a new default threshold.
	RederiveStatuses(defaultThreshold decimal.Decimal) error

	DefaultWarningThreshold() (decimal.Decimal, error)
	SetDefaultWarningThreshold(threshold decimal.Decimal) error
}
