package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amirhzn/mida-tracker-backend/internal/domain/status"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/storage"
)

// Service-level error taxonomy. Handlers map these to HTTP statuses with
// errors.Is; everything else is a 500.
var (
	// ErrValidation marks a malformed request (missing or non-positive
	// fields).
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPort marks an unknown port, or a port the item has no
	// approved allocation at.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInsufficientBalance marks a commit that would drive a port
	// balance negative while overdraw is disallowed.
	ErrInsufficientBalance = errors.New("insufficient remaining balance")
)

// ImportRequest holds one import declaration to preview or commit.
type ImportRequest struct {
	CertificateItemID    string
	ImportDate           time.Time
	InvoiceNumber        string
	InvoiceLine          *int
	DeclarationFormRegNo string
	QuantityImported     decimal.Decimal
	Port                 storage.Port
	Remarks              string
}

func (r ImportRequest) validate() error {
	if r.CertificateItemID == "" {
		return fmt.Errorf("%w: certificate_item_id is required", ErrValidation)
	}
	if r.InvoiceNumber == "" {
		return fmt.Errorf("%w: invoice_number is required", ErrValidation)
	}
	if r.ImportDate.IsZero() {
		return fmt.Errorf("%w: import_date is required", ErrValidation)
	}
	if !r.QuantityImported.IsPositive() {
		return fmt.Errorf("%w: quantity_imported must be positive", ErrValidation)
	}
	if _, err := storage.ParsePort(string(r.Port)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPort, err)
	}
	return nil
}

// RecordUpdate holds the user-editable fields of an existing ledger entry.
// The record's item binding never changes; moving a quantity to another
// item is a delete plus a new commit.
type RecordUpdate struct {
	ImportDate           time.Time
	InvoiceNumber        string
	InvoiceLine          *int
	DeclarationFormRegNo string
	QuantityImported     decimal.Decimal
	Port                 storage.Port
	Remarks              string
}

func (u RecordUpdate) validate() error {
	if u.InvoiceNumber == "" {
		return fmt.Errorf("%w: invoice_number is required", ErrValidation)
	}
	if u.ImportDate.IsZero() {
		return fmt.Errorf("%w: import_date is required", ErrValidation)
	}
	if !u.QuantityImported.IsPositive() {
		return fmt.Errorf("%w: quantity_imported must be positive", ErrValidation)
	}
	if _, err := storage.ParsePort(string(u.Port)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPort, err)
	}
	return nil
}

// ImportPreview is the side-effect-free projection of one declaration.
type ImportPreview struct {
	CertificateItemID string          `json:"certificate_item_id"`
	ItemName          string          `json:"item_name"`
	CertificateNumber string          `json:"certificate_number"`
	Port              storage.Port    `json:"port"`
	QuantityImported  decimal.Decimal `json:"quantity_imported"`

	BalanceBefore  decimal.Decimal `json:"balance_before"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	RemainingTotal decimal.Decimal `json:"remaining_quantity_after"`

	PreviousStatus status.Status `json:"previous_status"`
	NewStatus      status.Status `json:"new_status"`

	WillTriggerWarning bool   `json:"will_trigger_warning"`
	WillDeplete        bool   `json:"will_deplete"`
	WillOverdraw       bool   `json:"will_overdraw"`
	WarningMessage     string `json:"warning_message,omitempty"`
}

// ImportResult is the outcome of one committed declaration.
type ImportResult struct {
	Record *storage.ImportRecord    `json:"record"`
	Item   *storage.CertificateItem `json:"item"`

	PreviousStatus status.Status `json:"previous_status"`
	NewStatus      status.Status `json:"new_status"`

	TriggeredWarning   bool   `json:"triggered_warning"`
	TriggeredDepletion bool   `json:"triggered_depletion"`
	TriggeredOverdraw  bool   `json:"triggered_overdraw"`
	WarningMessage     string `json:"warning_message,omitempty"`
}

// BalanceSnapshot is the full balance view of one certificate item.
type BalanceSnapshot struct {
	Item               *storage.CertificateItem `json:"item"`
	ImportCount        int                      `json:"import_count"`
	TotalImported      decimal.Decimal          `json:"total_imported"`
	RemainingPercent   decimal.NullDecimal      `json:"remaining_percent"`
	EffectiveThreshold decimal.Decimal          `json:"effective_warning_threshold"`
}

// ImportService orchestrates the import ledger: previews, commits,
// corrective edits, recalculation, and the balance queries built on top.
type ImportService struct {
	store  storage.Repository
	logger *slog.Logger

	// Per-item locking: concurrent commits against the same item
	// serialize so each read-modify-write sees the previous one.
	itemLocks  map[string]*sync.Mutex
	locksMutex sync.Mutex
}

// NewImportService creates an import service.
func NewImportService(store storage.Repository, logger *slog.Logger) *ImportService {
	return &ImportService{
		store:     store,
		logger:    logger,
		itemLocks: make(map[string]*sync.Mutex),
	}
}

// Preview computes the effect of one declaration without committing it.
func (s *ImportService) Preview(req ImportRequest) (*ImportPreview, error) {
	previews, err := s.PreviewBulk([]ImportRequest{req})
	if err != nil {
		return nil, err
	}
	return previews[0], nil
}

// PreviewBulk computes the effect of a batch without committing anything.
// Requests are simulated in order, so a second declaration against the
// same item sees the balance left by the first.
func (s *ImportService) PreviewBulk(reqs []ImportRequest) ([]*ImportPreview, error) {
	for i, req := range reqs {
		if err := req.validate(); err != nil {
			return nil, fmt.Errorf("request %d: %w", i+1, err)
		}
	}

	defaultThreshold, err := s.store.DefaultWarningThreshold()
	if err != nil {
		return nil, err
	}

	type portKey struct {
		itemID string
		port   storage.Port
	}
	items := make(map[string]*storage.CertificateItem)
	portBalances := make(map[portKey]decimal.Decimal)
	totals := make(map[string]decimal.Decimal)

	previews := make([]*ImportPreview, 0, len(reqs))
	for i, req := range reqs {
		item, ok := items[req.CertificateItemID]
		if !ok {
			item, err = s.store.GetItem(req.CertificateItemID)
			if err != nil {
				return nil, fmt.Errorf("request %d: %w", i+1, err)
			}
			items[req.CertificateItemID] = item
			totals[item.ID] = remainingTotal(item)
		}

		key := portKey{itemID: item.ID, port: req.Port}
		before, ok := portBalances[key]
		if !ok {
			before, err = portBalance(item, req.Port)
			if err != nil {
				return nil, fmt.Errorf("request %d: %w", i+1, err)
			}
		}
		after := before.Sub(req.QuantityImported)
		totalBefore := totals[item.ID]
		totalAfter := totalBefore.Sub(req.QuantityImported)

		threshold := status.Resolve(item.WarningThreshold, defaultThreshold)
		preview := buildPreview(item, req, before, after, totalBefore, totalAfter, threshold)
		previews = append(previews, preview)

		portBalances[key] = after
		totals[item.ID] = totalAfter
	}

	return previews, nil
}

// Commit validates and persists one declaration, appending a ledger entry
// and refreshing the item's cached balances in a single transaction. A
// commit that would drive the port balance negative is rejected with
// ErrInsufficientBalance unless allowOverdraw is set.
func (s *ImportService) Commit(req ImportRequest, allowOverdraw bool) (*ImportResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	lock := s.itemLock(req.CertificateItemID)
	lock.Lock()
	defer lock.Unlock()

	var result *ImportResult
	err := s.store.InTransaction(func(m storage.Mutator) error {
		var err error
		result, err = s.commitOne(m, req, allowOverdraw)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("import committed",
		"record_id", result.Record.ID,
		"item_id", req.CertificateItemID,
		"port", req.Port,
		"quantity", req.QuantityImported,
		"balance_after", result.Record.BalanceAfter,
		"status", result.NewStatus,
	)

	return result, nil
}

// CommitBulk persists a batch of declarations in one transaction. Any
// rejected request rolls the whole batch back.
func (s *ImportService) CommitBulk(reqs []ImportRequest, allowOverdraw bool) ([]*ImportResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrValidation)
	}
	for i, req := range reqs {
		if err := req.validate(); err != nil {
			return nil, fmt.Errorf("request %d: %w", i+1, err)
		}
	}

	unlock := s.lockItems(itemIDs(reqs))
	defer unlock()

	results := make([]*ImportResult, 0, len(reqs))
	err := s.store.InTransaction(func(m storage.Mutator) error {
		for i, req := range reqs {
			result, err := s.commitOne(m, req, allowOverdraw)
			if err != nil {
				return fmt.Errorf("request %d: %w", i+1, err)
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bulk import committed", "records", len(results))
	return results, nil
}

// commitOne runs inside a transaction with the item lock held.
func (s *ImportService) commitOne(m storage.Mutator, req ImportRequest, allowOverdraw bool) (*ImportResult, error) {
	item, err := m.GetItem(req.CertificateItemID)
	if err != nil {
		return nil, err
	}

	defaultThreshold, err := m.DefaultWarningThreshold()
	if err != nil {
		return nil, err
	}
	threshold := status.Resolve(item.WarningThreshold, defaultThreshold)

	before, err := portBalance(item, req.Port)
	if err != nil {
		return nil, err
	}
	after := before.Sub(req.QuantityImported)

	if after.IsNegative() && !allowOverdraw {
		return nil, fmt.Errorf("%w: %s at %s holds %s, requested %s",
			ErrInsufficientBalance, item.ItemName, req.Port, before, req.QuantityImported)
	}

	rec := &storage.ImportRecord{
		CertificateItemID:    req.CertificateItemID,
		ImportDate:           req.ImportDate,
		InvoiceNumber:        req.InvoiceNumber,
		InvoiceLine:          req.InvoiceLine,
		DeclarationFormRegNo: req.DeclarationFormRegNo,
		QuantityImported:     req.QuantityImported,
		Port:                 req.Port,
		BalanceBefore:        before,
		BalanceAfter:         after,
		Remarks:              req.Remarks,
	}
	if err := m.InsertImportRecord(rec); err != nil {
		return nil, err
	}
	if err := m.RecalcItemRemaining(req.CertificateItemID, defaultThreshold); err != nil {
		return nil, err
	}

	refreshed, err := m.GetItem(req.CertificateItemID)
	if err != nil {
		return nil, err
	}
	rec.CertificateNumber = refreshed.CertificateNumber
	rec.CompanyName = refreshed.CompanyName
	rec.ItemHSCode = refreshed.HSCode
	rec.ItemName = refreshed.ItemName
	rec.ItemUOM = refreshed.UOM

	previous := status.Derive(decimal.NullDecimal{Decimal: remainingTotal(item), Valid: true}, threshold)
	current := refreshed.QuantityStatus

	return &ImportResult{
		Record:             rec,
		Item:               refreshed,
		PreviousStatus:     previous,
		NewStatus:          current,
		TriggeredWarning:   current == status.Warning && previous != status.Warning,
		TriggeredDepletion: current == status.Depleted && previous != status.Depleted,
		TriggeredOverdraw:  current == status.Overdrawn && previous != status.Overdrawn,
		WarningMessage:     warningMessage(refreshed.ItemName, req.Port, after, remainingTotal(refreshed), threshold),
	}, nil
}

// UpdateRecord rewrites a ledger entry's user-editable fields, then replays
// the affected port sequence(s) and refreshes the item's cached balances.
func (s *ImportService) UpdateRecord(recordID string, upd RecordUpdate) (*storage.ImportRecord, error) {
	if err := upd.validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.GetImportRecord(recordID)
	if err != nil {
		return nil, err
	}

	lock := s.itemLock(existing.CertificateItemID)
	lock.Lock()
	defer lock.Unlock()

	var updated *storage.ImportRecord
	err = s.store.InTransaction(func(m storage.Mutator) error {
		rec, err := m.GetImportRecord(recordID)
		if err != nil {
			return err
		}
		item, err := m.GetItem(rec.CertificateItemID)
		if err != nil {
			return err
		}
		if _, err := portBalance(item, upd.Port); err != nil {
			return err
		}

		oldPort := rec.Port
		rec.ImportDate = upd.ImportDate
		rec.InvoiceNumber = upd.InvoiceNumber
		rec.InvoiceLine = upd.InvoiceLine
		rec.DeclarationFormRegNo = upd.DeclarationFormRegNo
		rec.QuantityImported = upd.QuantityImported
		rec.Port = upd.Port
		rec.Remarks = upd.Remarks

		if err := m.UpdateImportRecord(rec); err != nil {
			return err
		}
		if err := m.RecalcPortBalances(rec.CertificateItemID, oldPort); err != nil {
			return err
		}
		if upd.Port != oldPort {
			if err := m.RecalcPortBalances(rec.CertificateItemID, upd.Port); err != nil {
				return err
			}
		}
		defaultThreshold, err := m.DefaultWarningThreshold()
		if err != nil {
			return err
		}
		if err := m.RecalcItemRemaining(rec.CertificateItemID, defaultThreshold); err != nil {
			return err
		}

		updated, err = m.GetImportRecord(recordID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("import record updated",
		"record_id", recordID,
		"item_id", updated.CertificateItemID,
		"port", updated.Port,
		"quantity", updated.QuantityImported,
	)

	return updated, nil
}

// DeleteRecord removes a ledger entry, then replays its port sequence and
// refreshes the item's cached balances.
func (s *ImportService) DeleteRecord(recordID string) error {
	existing, err := s.store.GetImportRecord(recordID)
	if err != nil {
		return err
	}

	lock := s.itemLock(existing.CertificateItemID)
	lock.Lock()
	defer lock.Unlock()

	err = s.store.InTransaction(func(m storage.Mutator) error {
		rec, err := m.GetImportRecord(recordID)
		if err != nil {
			return err
		}
		if err := m.DeleteImportRecord(recordID); err != nil {
			return err
		}
		if err := m.RecalcPortBalances(rec.CertificateItemID, rec.Port); err != nil {
			return err
		}
		defaultThreshold, err := m.DefaultWarningThreshold()
		if err != nil {
			return err
		}
		return m.RecalcItemRemaining(rec.CertificateItemID, defaultThreshold)
	})
	if err != nil {
		return err
	}

	s.logger.Info("import record deleted",
		"record_id", recordID,
		"item_id", existing.CertificateItemID,
		"port", existing.Port,
	)

	return nil
}

// SetItemThreshold sets or clears an item's warning threshold override and
// re-derives its status immediately.
func (s *ImportService) SetItemThreshold(itemID string, threshold decimal.NullDecimal) (*storage.CertificateItem, error) {
	if threshold.Valid && threshold.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: warning threshold must not be negative", ErrValidation)
	}

	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	var item *storage.CertificateItem
	err := s.store.InTransaction(func(m storage.Mutator) error {
		defaultThreshold, err := m.DefaultWarningThreshold()
		if err != nil {
			return err
		}
		if err := m.UpdateItemThreshold(itemID, threshold, defaultThreshold); err != nil {
			return err
		}
		item, err = m.GetItem(itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item threshold updated",
		"item_id", itemID,
		"threshold", threshold,
		"status", item.QuantityStatus,
	)

	return item, nil
}

// DefaultThreshold returns the process-wide warning threshold.
func (s *ImportService) DefaultThreshold() (decimal.Decimal, error) {
	return s.store.DefaultWarningThreshold()
}

// SetDefaultThreshold updates the process-wide warning threshold and
// re-derives the status of every item without an override.
func (s *ImportService) SetDefaultThreshold(threshold decimal.Decimal) error {
	if threshold.IsNegative() {
		return fmt.Errorf("%w: warning threshold must not be negative", ErrValidation)
	}

	err := s.store.InTransaction(func(m storage.Mutator) error {
		if err := m.SetDefaultWarningThreshold(threshold); err != nil {
			return err
		}
		return m.RederiveStatuses(threshold)
	})
	if err != nil {
		return err
	}

	s.logger.Info("default warning threshold updated", "threshold", threshold)
	return nil
}

// ItemBalance returns the full balance view of one item.
func (s *ImportService) ItemBalance(itemID string) (*BalanceSnapshot, error) {
	item, err := s.store.GetItem(itemID)
	if err != nil {
		return nil, err
	}
	count, total, err := s.store.ItemImportStats(itemID)
	if err != nil {
		return nil, err
	}
	defaultThreshold, err := s.store.DefaultWarningThreshold()
	if err != nil {
		return nil, err
	}

	snapshot := &BalanceSnapshot{
		Item:               item,
		ImportCount:        count,
		TotalImported:      total,
		EffectiveThreshold: status.Resolve(item.WarningThreshold, defaultThreshold),
	}
	if item.ApprovedQuantity.Valid && item.ApprovedQuantity.Decimal.IsPositive() && item.RemainingQuantity.Valid {
		percent := item.RemainingQuantity.Decimal.
			Div(item.ApprovedQuantity.Decimal).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		snapshot.RemainingPercent = decimal.NullDecimal{Decimal: percent, Valid: true}
	}

	return snapshot, nil
}

// ListBalances returns item balances matching the filters.
func (s *ImportService) ListBalances(f storage.BalanceFilters) ([]*storage.CertificateItem, int, error) {
	return s.store.ListItemBalances(f)
}

// Warnings returns items in warning, depleted, or overdrawn status,
// most severe first.
func (s *ImportService) Warnings(certificateID string) ([]*storage.CertificateItem, error) {
	return s.store.ListItemsInWarning(certificateID)
}

// Record returns one ledger entry with context.
func (s *ImportService) Record(recordID string) (*storage.ImportRecord, error) {
	return s.store.GetImportRecord(recordID)
}

// History returns ledger entries matching the filters, newest first.
func (s *ImportService) History(f storage.ImportFilters) ([]*storage.ImportRecord, int, error) {
	return s.store.ListImportRecords(f)
}

// PortSummaries aggregates ledger activity across all three ports.
func (s *ImportService) PortSummaries(recentLimit int) ([]*storage.PortSummary, error) {
	summaries := make([]*storage.PortSummary, 0, 3)
	for _, port := range storage.AllPorts() {
		summary, err := s.store.PortSummary(port, recentLimit)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// itemLock returns the mutex guarding one item's read-modify-write
// sequences, creating it on first use.
func (s *ImportService) itemLock(itemID string) *sync.Mutex {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if _, exists := s.itemLocks[itemID]; !exists {
		s.itemLocks[itemID] = &sync.Mutex{}
	}
	return s.itemLocks[itemID]
}

// lockItems acquires the locks for a set of items in sorted order, so two
// overlapping bulk commits cannot deadlock. Returns the unlock function.
func (s *ImportService) lockItems(ids []string) func() {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	locks := make([]*sync.Mutex, 0, len(sorted))
	for _, id := range sorted {
		lock := s.itemLock(id)
		lock.Lock()
		locks = append(locks, lock)
	}

	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

// itemIDs collects the unique item IDs of a batch.
func itemIDs(reqs []ImportRequest) []string {
	seen := make(map[string]bool, len(reqs))
	var ids []string
	for _, req := range reqs {
		if !seen[req.CertificateItemID] {
			seen[req.CertificateItemID] = true
			ids = append(ids, req.CertificateItemID)
		}
	}
	return ids
}

// portBalance returns the current balance at one port: the cached
// remaining, else the approved allocation. An item with neither has no
// allocation at that port.
func portBalance(item *storage.CertificateItem, port storage.Port) (decimal.Decimal, error) {
	if remaining := item.RemainingForPort(port); remaining.Valid {
		return remaining.Decimal, nil
	}
	if approved := item.ApprovedForPort(port); approved.Valid {
		return approved.Decimal, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s has no allocation at %s", ErrInvalidPort, item.ItemName, port)
}

// remainingTotal returns the cached total remaining, zero when unset.
func remainingTotal(item *storage.CertificateItem) decimal.Decimal {
	if item.RemainingQuantity.Valid {
		return item.RemainingQuantity.Decimal
	}
	return decimal.Zero
}

func buildPreview(item *storage.CertificateItem, req ImportRequest, before, after, totalBefore, totalAfter, threshold decimal.Decimal) *ImportPreview {
	previous := status.Derive(decimal.NullDecimal{Decimal: totalBefore, Valid: true}, threshold)
	next := status.Derive(decimal.NullDecimal{Decimal: totalAfter, Valid: true}, threshold)

	return &ImportPreview{
		CertificateItemID:  item.ID,
		ItemName:           item.ItemName,
		CertificateNumber:  item.CertificateNumber,
		Port:               req.Port,
		QuantityImported:   req.QuantityImported,
		BalanceBefore:      before,
		BalanceAfter:       after,
		RemainingTotal:     totalAfter,
		PreviousStatus:     previous,
		NewStatus:          next,
		WillTriggerWarning: next == status.Warning && previous != status.Warning,
		WillDeplete:        next == status.Depleted && previous != status.Depleted,
		WillOverdraw:       next == status.Overdrawn && previous != status.Overdrawn,
		WarningMessage:     warningMessage(item.ItemName, req.Port, after, totalAfter, threshold),
	}
}

// warningMessage renders the most severe applicable advisory, or "".
func warningMessage(itemName string, port storage.Port, portAfter, totalAfter, threshold decimal.Decimal) string {
	switch {
	case portAfter.IsNegative():
		return fmt.Sprintf("%s overdraws the balance at %s by %s", itemName, port, portAfter.Neg())
	case totalAfter.IsZero():
		return fmt.Sprintf("%s is fully depleted", itemName)
	case totalAfter.LessThanOrEqual(threshold):
		return fmt.Sprintf("%s remaining quantity %s is at or below the warning threshold %s", itemName, totalAfter, threshold)
	}
	return ""
}
