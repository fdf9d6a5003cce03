package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amirhzn/mida-tracker-backend/internal/domain/status"
)

const itemColumns = `
	i.id, i.certificate_id, i.line_no, i.hs_code, i.item_name, i.uom,
	i.approved_quantity, i.port_klang_qty, i.klia_qty, i.bukit_kayu_hitam_qty,
	i.remaining_quantity, i.remaining_port_klang, i.remaining_klia, i.remaining_bukit_kayu_hitam,
	i.warning_threshold, i.quantity_status, i.created_at, i.updated_at,
	c.certificate_number, c.company_name`

const itemFrom = `
	FROM certificate_items i
	JOIN certificates c ON c.id = i.certificate_id`

type scanner interface {
	Scan(dest ...any) error
}

// CreateCertificate inserts a certificate header and its items in one
// transaction. Remaining quantities are seeded from the approved values —
// the first write initializes the cached projection.
func (q *queries) CreateCertificate(cert *Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.Status == "" {
		cert.Status = "draft"
	}
	ts := now()
	cert.CreatedAt = ts
	cert.UpdatedAt = ts

	_, err := q.db.Exec(`
		INSERT INTO certificates
		(id, certificate_number, company_name, exemption_start_date,
		 exemption_end_date, status, source_filename, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cert.ID,
		cert.CertificateNumber,
		cert.CompanyName,
		nullDateString(cert.ExemptionStartDate),
		nullDateString(cert.ExemptionEndDate),
		cert.Status,
		emptyToNull(cert.SourceFilename),
		formatTime(ts),
		formatTime(ts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert certificate: %w", err)
	}

	for _, item := range cert.Items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.CertificateID = cert.ID
		item.CreatedAt = ts
		item.UpdatedAt = ts

		item.RemainingQuantity = item.ApprovedQuantity
		item.RemainingPortKlang = item.PortKlangQty
		item.RemainingKLIA = item.KLIAQty
		item.RemainingBukitKayuHitam = item.BukitKayuHitamQty
		if item.QuantityStatus == "" {
			item.QuantityStatus = status.Normal
		}

		_, err := q.db.Exec(`
			INSERT INTO certificate_items
			(id, certificate_id, line_no, hs_code, item_name, uom,
			 approved_quantity, port_klang_qty, klia_qty, bukit_kayu_hitam_qty,
			 remaining_quantity, remaining_port_klang, remaining_klia, remaining_bukit_kayu_hitam,
			 warning_threshold, quantity_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.CertificateID,
			item.LineNo,
			item.HSCode,
			item.ItemName,
			item.UOM,
			item.ApprovedQuantity,
			item.PortKlangQty,
			item.KLIAQty,
			item.BukitKayuHitamQty,
			item.RemainingQuantity,
			item.RemainingPortKlang,
			item.RemainingKLIA,
			item.RemainingBukitKayuHitam,
			item.WarningThreshold,
			string(item.QuantityStatus),
			formatTime(ts),
			formatTime(ts),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item line %d: %w", item.LineNo, err)
		}

		item.CertificateNumber = cert.CertificateNumber
		item.CompanyName = cert.CompanyName
	}

	return nil
}

// GetCertificate retrieves a certificate with its items.
func (q *queries) GetCertificate(id string) (*Certificate, error) {
	cert, err := q.scanCertificate(q.db.QueryRow(`
		SELECT id, certificate_number, company_name, exemption_start_date,
		       exemption_end_date, status, source_filename, created_at, updated_at
		FROM certificates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCertificateNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.db.Query(`SELECT `+itemColumns+itemFrom+`
		WHERE i.certificate_id = ?
		ORDER BY i.line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		cert.Items = append(cert.Items, item)
	}

	return cert, rows.Err()
}

// ListCertificates returns certificates matching the filters, newest first.
func (q *queries) ListCertificates(f CertificateFilters) (*CertificateList, error) {
	where := "WHERE 1=1"
	var args []any
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, f.Status)
	}

	var total int
	if err := q.db.QueryRow(`SELECT COUNT(*) FROM certificates `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	limit := clampLimit(f.Limit)
	args = append(args, limit, f.Offset)

	rows, err := q.db.Query(`
		SELECT id, certificate_number, company_name, exemption_start_date,
		       exemption_end_date, status, source_filename, created_at, updated_at
		FROM certificates `+where+`
		ORDER BY created_at DESC, certificate_number
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &CertificateList{Limit: limit, Offset: f.Offset, TotalCount: total}
	for rows.Next() {
		cert, err := q.scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		result.Certificates = append(result.Certificates, cert)
	}

	return result, rows.Err()
}

// DeleteCertificate removes a certificate; foreign keys cascade to items
// and their ledger records.
func (q *queries) DeleteCertificate(id string) error {
	res, err := q.db.Exec(`DELETE FROM certificates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCertificateNotFound
	}
	return nil
}

// GetItem retrieves one certificate item with joined certificate context.
func (q *queries) GetItem(itemID string) (*CertificateItem, error) {
	item, err := scanItem(q.db.QueryRow(`SELECT `+itemColumns+itemFrom+` WHERE i.id = ?`, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return item, err
}

// ListItemBalances returns items with their cached balances.
func (q *queries) ListItemBalances(f BalanceFilters) ([]*CertificateItem, int, error) {
	where := "WHERE 1=1"
	var args []any
	if f.CertificateID != "" {
		where += " AND i.certificate_id = ?"
		args = append(args, f.CertificateID)
	}
	if f.QuantityStatus != "" {
		where += " AND i.quantity_status = ?"
		args = append(args, string(f.QuantityStatus))
	}
	if f.HSCode != "" {
		where += " AND i.hs_code LIKE ?"
		args = append(args, "%"+f.HSCode+"%")
	}

	var total int
	if err := q.db.QueryRow(`SELECT COUNT(*) `+itemFrom+` `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, clampLimit(f.Limit), f.Offset)
	rows, err := q.db.Query(`SELECT `+itemColumns+itemFrom+` `+where+`
		ORDER BY i.certificate_id, i.line_no
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectItems(rows)
	return items, total, err
}

// ListItemsInWarning returns items whose balances need attention, most
// severe first (overdrawn, then depleted, then warning), then by line
// number.
func (q *queries) ListItemsInWarning(certificateID string) ([]*CertificateItem, error) {
	where := `WHERE i.quantity_status IN ('warning', 'depleted', 'overdrawn')`
	var args []any
	if certificateID != "" {
		where += " AND i.certificate_id = ?"
		args = append(args, certificateID)
	}

	rows, err := q.db.Query(`SELECT `+itemColumns+itemFrom+` `+where+`
		ORDER BY CASE i.quantity_status
			WHEN 'overdrawn' THEN 1
			WHEN 'depleted' THEN 2
			WHEN 'warning' THEN 3
			ELSE 4
		END, i.certificate_id, i.line_no`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectItems(rows)
}

// UpdateItemThreshold sets or clears an item's warning threshold override
// and re-derives its status against the new effective threshold.
func (q *queries) UpdateItemThreshold(itemID string, threshold decimal.NullDecimal, defaultThreshold decimal.Decimal) error {
	item, err := q.GetItem(itemID)
	if err != nil {
		return err
	}

	newStatus := status.Derive(item.RemainingQuantity, status.Resolve(threshold, defaultThreshold))

	_, err = q.db.Exec(`
		UPDATE certificate_items
		SET warning_threshold = ?, quantity_status = ?, updated_at = ?
		WHERE id = ?`,
		threshold, string(newStatus), formatTime(now()), itemID)
	return err
}

func (q *queries) scanCertificate(s scanner) (*Certificate, error) {
	var cert Certificate
	var startDate, endDate, sourceFilename sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&cert.ID,
		&cert.CertificateNumber,
		&cert.CompanyName,
		&startDate,
		&endDate,
		&cert.Status,
		&sourceFilename,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startDate.Valid {
		d, err := parseDate(startDate.String)
		if err != nil {
			return nil, err
		}
		cert.ExemptionStartDate = &d
	}
	if endDate.Valid {
		d, err := parseDate(endDate.String)
		if err != nil {
			return nil, err
		}
		cert.ExemptionEndDate = &d
	}
	cert.SourceFilename = sourceFilename.String

	if cert.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if cert.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &cert, nil
}

func scanItem(s scanner) (*CertificateItem, error) {
	var item CertificateItem
	var quantityStatus, createdAt, updatedAt string

	err := s.Scan(
		&item.ID,
		&item.CertificateID,
		&item.LineNo,
		&item.HSCode,
		&item.ItemName,
		&item.UOM,
		&item.ApprovedQuantity,
		&item.PortKlangQty,
		&item.KLIAQty,
		&item.BukitKayuHitamQty,
		&item.RemainingQuantity,
		&item.RemainingPortKlang,
		&item.RemainingKLIA,
		&item.RemainingBukitKayuHitam,
		&item.WarningThreshold,
		&quantityStatus,
		&createdAt,
		&updatedAt,
		&item.CertificateNumber,
		&item.CompanyName,
	)
	if err != nil {
		return nil, err
	}

	item.QuantityStatus = status.Status(quantityStatus)
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &item, nil
}

func collectItems(rows *sql.Rows) ([]*CertificateItem, error) {
	var items []*CertificateItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
