package storage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/amirhzn/mida-tracker-backend/internal/domain/status"
)

// RecalcPortBalances replays the full (item, port) ledger sequence from
// the port's approved quantity, rewriting balance_before/balance_after on
// every record. It is a pure fold over the ordered history rather than an
// incremental patch, which makes it idempotent: replaying an unchanged
// history writes the same balances again.
//
// Call it after editing or deleting a historical record, and after moving
// a record between ports (once per affected port).
func (q *queries) RecalcPortBalances(itemID string, port Port) error {
	item, err := q.GetItem(itemID)
	if err != nil {
		return err
	}

	approved := decimal.Zero
	if allocated := item.ApprovedForPort(port); allocated.Valid {
		approved = allocated.Decimal
	}

	history, err := q.GetImportHistory(itemID, port)
	if err != nil {
		return err
	}

	running := approved
	for _, rec := range history {
		before := running
		after := running.Sub(rec.QuantityImported)

		if !rec.BalanceBefore.Equal(before) || !rec.BalanceAfter.Equal(after) {
			_, err := q.db.Exec(`
				UPDATE import_records
				SET balance_before = ?, balance_after = ?
				WHERE id = ?`,
				before, after, rec.seq)
			if err != nil {
				return fmt.Errorf("failed to rewrite balances for record %s: %w", rec.ID, err)
			}
		}

		running = after
	}

	return nil
}

// RecalcItemRemaining recomputes the cached remaining quantities of an
// item from the full ledger: per port, approved minus the sum of imported
// quantities; in aggregate, the sum of the three port remainders (never an
// independent decrement, so the projection cannot drift). The quantity
// status is re-derived from the new total.
func (q *queries) RecalcItemRemaining(itemID string, defaultThreshold decimal.Decimal) error {
	item, err := q.GetItem(itemID)
	if err != nil {
		return err
	}

	imported, err := q.importedByPort(itemID)
	if err != nil {
		return err
	}

	remainingFor := func(p Port) decimal.Decimal {
		approved := decimal.Zero
		if allocated := item.ApprovedForPort(p); allocated.Valid {
			approved = allocated.Decimal
		}
		return approved.Sub(imported[p])
	}

	remainingKlang := remainingFor(PortKlang)
	remainingKLIA := remainingFor(PortKLIA)
	remainingBKH := remainingFor(PortBukitKayuHitam)
	remainingTotal := remainingKlang.Add(remainingKLIA).Add(remainingBKH)

	threshold := status.Resolve(item.WarningThreshold, defaultThreshold)
	newStatus := status.Derive(
		decimal.NullDecimal{Decimal: remainingTotal, Valid: true},
		threshold,
	)

	_, err = q.db.Exec(`
		UPDATE certificate_items
		SET remaining_port_klang = ?,
		    remaining_klia = ?,
		    remaining_bukit_kayu_hitam = ?,
		    remaining_quantity = ?,
		    quantity_status = ?,
		    updated_at = ?
		WHERE id = ?`,
		remainingKlang,
		remainingKLIA,
		remainingBKH,
		remainingTotal,
		string(newStatus),
		formatTime(now()),
		itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to update remaining quantities: %w", err)
	}

	return nil
}

// RederiveStatuses re-derives quantity_status for every item without a
// threshold override. Runs after the process default threshold changes;
// items with their own override are unaffected by the default.
func (q *queries) RederiveStatuses(defaultThreshold decimal.Decimal) error {
	rows, err := q.db.Query(`
		SELECT id, remaining_quantity, quantity_status
		FROM certificate_items
		WHERE warning_threshold IS NULL`)
	if err != nil {
		return err
	}

	type change struct {
		id        string
		newStatus status.Status
	}
	var changes []change
	for rows.Next() {
		var id, current string
		var remaining decimal.NullDecimal
		if err := rows.Scan(&id, &remaining, &current); err != nil {
			rows.Close()
			return err
		}
		derived := status.Derive(remaining, defaultThreshold)
		if string(derived) != current {
			changes = append(changes, change{id: id, newStatus: derived})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	ts := formatTime(now())
	for _, c := range changes {
		_, err := q.db.Exec(`
			UPDATE certificate_items
			SET quantity_status = ?, updated_at = ?
			WHERE id = ?`,
			string(c.newStatus), ts, c.id)
		if err != nil {
			return err
		}
	}

	return nil
}

// importedByPort sums committed quantities per port for one item.
func (q *queries) importedByPort(itemID string) (map[Port]decimal.Decimal, error) {
	imported := map[Port]decimal.Decimal{
		PortKlang:          decimal.Zero,
		PortKLIA:           decimal.Zero,
		PortBukitKayuHitam: decimal.Zero,
	}

	rows, err := q.db.Query(`
		SELECT port, COALESCE(SUM(quantity_imported), 0)
		FROM import_records
		WHERE certificate_item_id = ?
		GROUP BY port`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var port string
		var total decimal.Decimal
		if err := rows.Scan(&port, &total); err != nil {
			return nil, err
		}
		imported[Port(port)] = total
	}

	return imported, rows.Err()
}
