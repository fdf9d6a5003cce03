package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const recordColumns = `
	r.id, r.record_id, r.certificate_item_id, r.import_date, r.invoice_number,
	r.invoice_line, r.declaration_form_reg_no, r.quantity_imported, r.port,
	r.balance_before, r.balance_after, r.remarks, r.created_at, r.updated_at,
	c.certificate_number, c.company_name, i.hs_code, i.item_name, i.uom`

const recordFrom = `
	FROM import_records r
	JOIN certificate_items i ON i.id = r.certificate_item_id
	JOIN certificates c ON c.id = i.certificate_id`

// InsertImportRecord appends one ledger entry. The caller supplies the
// computed balance_before/balance_after pair.
func (q *queries) InsertImportRecord(rec *ImportRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = now()

	res, err := q.db.Exec(`
		INSERT INTO import_records
		(record_id, certificate_item_id, import_date, invoice_number,
		 invoice_line, declaration_form_reg_no, quantity_imported, port,
		 balance_before, balance_after, remarks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.CertificateItemID,
		formatDate(rec.ImportDate),
		rec.InvoiceNumber,
		rec.InvoiceLine,
		emptyToNull(rec.DeclarationFormRegNo),
		rec.QuantityImported,
		string(rec.Port),
		rec.BalanceBefore,
		rec.BalanceAfter,
		emptyToNull(rec.Remarks),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert import record: %w", err)
	}

	rec.seq, err = res.LastInsertId()
	return err
}

// UpdateImportRecord rewrites a ledger entry's user-editable fields. The
// stored balances are left to a subsequent RecalcPortBalances replay.
func (q *queries) UpdateImportRecord(rec *ImportRecord) error {
	ts := now()
	res, err := q.db.Exec(`
		UPDATE import_records
		SET import_date = ?, invoice_number = ?, invoice_line = ?,
		    declaration_form_reg_no = ?, quantity_imported = ?, port = ?,
		    remarks = ?, updated_at = ?
		WHERE record_id = ?`,
		formatDate(rec.ImportDate),
		rec.InvoiceNumber,
		rec.InvoiceLine,
		emptyToNull(rec.DeclarationFormRegNo),
		rec.QuantityImported,
		string(rec.Port),
		emptyToNull(rec.Remarks),
		formatTime(ts),
		rec.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	rec.UpdatedAt = &ts
	return nil
}

// DeleteImportRecord removes a ledger entry.
func (q *queries) DeleteImportRecord(recordID string) error {
	res, err := q.db.Exec(`DELETE FROM import_records WHERE record_id = ?`, recordID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// GetImportRecord retrieves one ledger entry with certificate context.
func (q *queries) GetImportRecord(recordID string) (*ImportRecord, error) {
	rec, err := scanRecord(q.db.QueryRow(`SELECT `+recordColumns+recordFrom+`
		WHERE r.record_id = ?`, recordID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return rec, err
}

// GetImportHistory returns the authoritative replay ordering for an
// item's ledger: import date, then creation time (insertion sequence as
// the final tie-break). An empty port returns all ports.
func (q *queries) GetImportHistory(itemID string, port Port) ([]*ImportRecord, error) {
	query := `SELECT ` + recordColumns + recordFrom + ` WHERE r.certificate_item_id = ?`
	args := []any{itemID}
	if port != "" {
		query += ` AND r.port = ?`
		args = append(args, string(port))
	}
	query += ` ORDER BY r.import_date, r.created_at, r.id`

	rows, err := q.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListImportRecords returns ledger entries matching the filters, newest
// first, plus the unpaginated total count.
func (q *queries) ListImportRecords(f ImportFilters) ([]*ImportRecord, int, error) {
	where := "WHERE 1=1"
	var args []any
	if f.CertificateItemID != "" {
		where += " AND r.certificate_item_id = ?"
		args = append(args, f.CertificateItemID)
	}
	if f.CertificateID != "" {
		where += " AND i.certificate_id = ?"
		args = append(args, f.CertificateID)
	}
	if f.Port != "" {
		where += " AND r.port = ?"
		args = append(args, string(f.Port))
	}
	if f.InvoiceNumber != "" {
		where += " AND r.invoice_number LIKE ?"
		args = append(args, "%"+f.InvoiceNumber+"%")
	}
	if f.StartDate != nil {
		where += " AND r.import_date >= ?"
		args = append(args, formatDate(*f.StartDate))
	}
	if f.EndDate != nil {
		where += " AND r.import_date <= ?"
		args = append(args, formatDate(*f.EndDate))
	}

	var total int
	if err := q.db.QueryRow(`SELECT COUNT(*) `+recordFrom+` `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, clampLimit(f.Limit), f.Offset)
	rows, err := q.db.Query(`SELECT `+recordColumns+recordFrom+` `+where+`
		ORDER BY r.import_date DESC, r.created_at DESC, r.id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	return records, total, err
}

// ItemImportStats returns the ledger entry count and total imported
// quantity for an item across all ports.
func (q *queries) ItemImportStats(itemID string) (int, decimal.Decimal, error) {
	var count int
	var total decimal.NullDecimal
	err := q.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(quantity_imported), 0)
		FROM import_records
		WHERE certificate_item_id = ?`, itemID).Scan(&count, &total)
	if err != nil {
		return 0, decimal.Zero, err
	}
	if !total.Valid {
		return count, decimal.Zero, nil
	}
	return count, total.Decimal, nil
}

// PortSummary aggregates ledger activity at one port.
func (q *queries) PortSummary(port Port, recentLimit int) (*PortSummary, error) {
	summary := &PortSummary{Port: port, TotalQuantity: decimal.Zero}

	var total decimal.NullDecimal
	err := q.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(quantity_imported), 0),
		       COUNT(DISTINCT certificate_item_id)
		FROM import_records
		WHERE port = ?`, string(port)).
		Scan(&summary.TotalRecords, &total, &summary.UniqueItems)
	if err != nil {
		return nil, err
	}
	if total.Valid {
		summary.TotalQuantity = total.Decimal
	}

	err = q.db.QueryRow(`
		SELECT COUNT(DISTINCT i.certificate_id)
		FROM import_records r
		JOIN certificate_items i ON i.id = r.certificate_item_id
		WHERE r.port = ?`, string(port)).Scan(&summary.UniqueCertificates)
	if err != nil {
		return nil, err
	}

	if recentLimit <= 0 {
		recentLimit = 10
	}
	rows, err := q.db.Query(`SELECT `+recordColumns+recordFrom+`
		WHERE r.port = ?
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ?`, string(port), recentLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary.RecentImports, err = collectRecords(rows)
	return summary, err
}

func scanRecord(s scanner) (*ImportRecord, error) {
	var rec ImportRecord
	var importDate, createdAt, port string
	var invoiceLine sql.NullInt64
	var declarationNo, remarks, updatedAt sql.NullString

	err := s.Scan(
		&rec.seq,
		&rec.ID,
		&rec.CertificateItemID,
		&importDate,
		&rec.InvoiceNumber,
		&invoiceLine,
		&declarationNo,
		&rec.QuantityImported,
		&port,
		&rec.BalanceBefore,
		&rec.BalanceAfter,
		&remarks,
		&createdAt,
		&updatedAt,
		&rec.CertificateNumber,
		&rec.CompanyName,
		&rec.ItemHSCode,
		&rec.ItemName,
		&rec.ItemUOM,
	)
	if err != nil {
		return nil, err
	}

	rec.Port = Port(port)
	if invoiceLine.Valid {
		line := int(invoiceLine.Int64)
		rec.InvoiceLine = &line
	}
	rec.DeclarationFormRegNo = declarationNo.String
	rec.Remarks = remarks.String

	if rec.ImportDate, err = parseDate(importDate); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		t, err := parseTime(updatedAt.String)
		if err != nil {
			return nil, err
		}
		rec.UpdatedAt = &t
	}

	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*ImportRecord, error) {
	var records []*ImportRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
