package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirhzn/mida-tracker-backend/internal/domain/status"
)

func TestLedger_InsertComputesRunningBalances(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)
	item := cert.Items[0] // 60 at Port Klang

	first := insertImport(t, store, item, PortKlang, "20", "2025-01-05")
	second := insertImport(t, store, item, PortKlang, "15", "2025-01-12")

	assert.True(t, first.BalanceBefore.Equal(dec("60")))
	assert.True(t, first.BalanceAfter.Equal(dec("40")))
	assert.True(t, second.BalanceBefore.Equal(dec("40")))
	assert.True(t, second.BalanceAfter.Equal(dec("25")))

	refreshed, err := store.GetItem(item.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.RemainingPortKlang.Decimal.Equal(dec("25")))
	assert.True(t, refreshed.RemainingKLIA.Decimal.Equal(dec("30")), "other ports untouched")
	assert.True(t, refreshed.RemainingQuantity.Decimal.Equal(dec("65")))
}

func TestLedger_RemainingIsSumOfPortRemainders(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)
	item := cert.Items[0]

	insertImport(t, store, item, PortKlang, "10", "2025-01-05")
	insertImport(t, store, item, PortKLIA, "5", "2025-01-06")
	insertImport(t, store, item, PortBukitKayuHitam, "2.5", "2025-01-07")

	refreshed, err := store.GetItem(item.ID)
	require.NoError(t, err)

	sum := refreshed.RemainingPortKlang.Decimal.
		Add(refreshed.RemainingKLIA.Decimal).
		Add(refreshed.RemainingBukitKayuHitam.Decimal)
	assert.True(t, refreshed.RemainingQuantity.Decimal.Equal(sum))
	assert.True(t, refreshed.RemainingQuantity.Decimal.Equal(dec("82.5")))
}

func TestLedger_HistoryOrderedByImportDateThenInsertion(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)
	item := cert.Items[0]

	// Inserted out of chronological order; two records share a date.
	late := insertImport(t, store, item, PortKlang, "1", "2025-03-01")
	early := insertImport(t, store, item, PortKlang, "2", "2025-01-01")
	sameDayFirst := insertImport(t, store, item, PortKlang, "3", "2025-02-01")
	sameDaySecond := insertImport(t, store, item, PortKlang, "4", "2025-02-01")

	history, err := store.GetImportHistory(item.ID, PortKlang)
	require.NoError(t, err)
	require.Len(t, history, 4)

	assert.Equal(t, early.ID, history[0].ID)
	assert.Equal(t, sameDayFirst.ID, history[1].ID, "same date resolves by insertion order")
	assert.Equal(t, sameDaySecond.ID, history[2].ID)
	assert.Equal(t, late.ID, history[3].ID)
}

func TestLedger_BackdatedInsertThenRecalcRestoresChain(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)
	item := cert.Items[0] // 60 at Port Klang

	insertImport(t, store, item, PortKlang, "20", "2025-02-01")
	// Backdated: lands before the existing record in replay order.
	insertImport(t, store, item, PortKlang, "10", "2025-01-01")

	err := store.InTransaction(func(m Mutator) error {
		return m.RecalcPortBalances(item.ID, PortKlang)
	})
	require.NoError(t, err)

	history, err := store.GetImportHistory(item.ID, PortKlang)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.True(t, history[0].BalanceBefore.Equal(dec("60")))
	assert.True(t, history[0].BalanceAfter.Equal(dec("50")))
	assert.True(t, history[1].BalanceBefore.Equal(dec("50")))
	assert.True(t, history[1].BalanceAfter.Equal(dec("30")))
}

func TestLedger_RecalcIsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)
	item := cert.Items[0]

	insertImport(t, store, item, PortKlang, "20", "2025-01-05")
	insertImport(t, store, item, PortKlang, "15", "2025-01-12")

	recalc := func() []*ImportRecord {
		err := store.InTransaction(func(m Mutator) error {
			if err := m.RecalcPortBalances(item.ID, PortKlang); err != nil {
				return err
			}
			return m.RecalcItemRemaining(item.ID, dec("100"))
		})
		require.NoError(t, err)
		history, err := store.GetImportHistory(item.ID, PortKlang)
		require.NoError(t, err)
		return history
	}

	first := recalc()
	second := recalc()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].BalanceBefore.Equal(second[i].BalanceBefore))
		assert.True(t, first[i].BalanceAfter.Equal(second[i].BalanceAfter))
	}
}

func TestLedger_EditQuantityThenReplay(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)
	item := cert.Items[0] // 60 at Port Klang

	edited := insertImport(t, store, item, PortKlang, "20", "2025-01-05")
	insertImport(t, store, item, PortKlang, "15", "2025-01-12")

	edited.QuantityImported = dec("30")
	err := store.InTransaction(func(m Mutator) error {
		if err := m.UpdateImportRecord(edited); err != nil {
			return err
		}
		if err := m.RecalcPortBalances(item.ID, PortKlang); err != nil {
			return err
		}
		return m.RecalcItemRemaining(item.ID, dec("100"))
	})
	require.NoError(t, err)

	history, err := store.GetImportHistory(item.ID, PortKlang)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].BalanceAfter.Equal(dec("30")))
	assert.True(t, history[1].BalanceBefore.Equal(dec("30")))
	assert.True(t, history[1].BalanceAfter.Equal(dec("15")))

	refreshed, err := store.GetItem(item.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.RemainingPortKlang.Decimal.Equal(dec("15")))
	assert.NotNil(t, history[0].UpdatedAt)
}

func TestLedger_DeleteThenReplay(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)
	item := cert.Items[0]

	doomed := insertImport(t, store, item, PortKlang, "20", "2025-01-05")
	insertImport(t, store, item, PortKlang, "15", "2025-01-12")

	err := store.InTransaction(func(m Mutator) error {
		if err := m.DeleteImportRecord(doomed.ID); err != nil {
			return err
		}
		if err := m.RecalcPortBalances(item.ID, PortKlang); err != nil {
			return err
		}
		return m.RecalcItemRemaining(item.ID, dec("100"))
	})
	require.NoError(t, err)

	history, err := store.GetImportHistory(item.ID, PortKlang)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].BalanceBefore.Equal(dec("60")))
	assert.True(t, history[0].BalanceAfter.Equal(dec("45")))

	refreshed, err := store.GetItem(item.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.RemainingPortKlang.Decimal.Equal(dec("45")))

	assert.ErrorIs(t, store.InTransaction(func(m Mutator) error {
		return m.DeleteImportRecord(doomed.ID)
	}), ErrRecordNotFound)
}

func TestLedger_MoveRecordBetweenPorts(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)
	item := cert.Items[0] // 60 Klang, 30 KLIA

	moved := insertImport(t, store, item, PortKlang, "20", "2025-01-05")

	moved.Port = PortKLIA
	err := store.InTransaction(func(m Mutator) error {
		if err := m.UpdateImportRecord(moved); err != nil {
			return err
		}
		// Both the old and the new port replay.
		if err := m.RecalcPortBalances(item.ID, PortKlang); err != nil {
			return err
		}
		if err := m.RecalcPortBalances(item.ID, PortKLIA); err != nil {
			return err
		}
		return m.RecalcItemRemaining(item.ID, dec("100"))
	})
	require.NoError(t, err)

	refreshed, err := store.GetItem(item.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.RemainingPortKlang.Decimal.Equal(dec("60")), "klang restored")
	assert.True(t, refreshed.RemainingKLIA.Decimal.Equal(dec("10")))
	assert.True(t, refreshed.RemainingQuantity.Decimal.Equal(dec("80")))

	kliaHistory, err := store.GetImportHistory(item.ID, PortKLIA)
	require.NoError(t, err)
	require.Len(t, kliaHistory, 1)
	assert.True(t, kliaHistory[0].BalanceBefore.Equal(dec("30")))
	assert.True(t, kliaHistory[0].BalanceAfter.Equal(dec("10")))
}

func TestLedger_StatusTransitions(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)
	item := cert.Items[1] // 50 at Port Klang only, default threshold 100

	// 50 remaining is already at or below the default threshold.
	insertImport(t, store, item, PortKlang, "10", "2025-01-05")
	refreshed, err := store.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Warning, refreshed.QuantityStatus)

	insertImport(t, store, item, PortKlang, "40", "2025-01-06")
	refreshed, err = store.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Depleted, refreshed.QuantityStatus)
	assert.True(t, refreshed.RemainingQuantity.Decimal.IsZero())

	insertImport(t, store, item, PortKlang, "5", "2025-01-07")
	refreshed, err = store.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Overdrawn, refreshed.QuantityStatus)
	assert.True(t, refreshed.RemainingQuantity.Decimal.Equal(dec("-5")))
}

func TestLedger_ListImportRecords(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)

	insertImport(t, store, cert.Items[0], PortKlang, "5", "2025-01-05")
	insertImport(t, store, cert.Items[0], PortKLIA, "3", "2025-02-01")
	insertImport(t, store, cert.Items[1], PortKlang, "7", "2025-01-20")

	all, total, err := store.ListImportRecords(ImportFilters{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	// Newest import date first.
	assert.Equal(t, "2025-02-01", all[0].ImportDate.Format("2006-01-02"))

	klang, total, err := store.ListImportRecords(ImportFilters{Port: PortKlang})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, klang, 2)

	byItem, total, err := store.ListImportRecords(ImportFilters{CertificateItemID: cert.Items[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "NETWORK ROUTER DEVICE", byItem[0].ItemName)

	start := date("2025-01-10")
	end := date("2025-01-31")
	ranged, total, err := store.ListImportRecords(ImportFilters{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "2025-01-20", ranged[0].ImportDate.Format("2006-01-02"))

	byInvoice, total, err := store.ListImportRecords(ImportFilters{InvoiceNumber: "2025-01-05"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "INV-2025-01-05", byInvoice[0].InvoiceNumber)
}

func TestLedger_ItemImportStats(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)
	item := cert.Items[0]

	count, total, err := store.ItemImportStats(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.True(t, total.IsZero())

	insertImport(t, store, item, PortKlang, "5", "2025-01-05")
	insertImport(t, store, item, PortKLIA, "2.5", "2025-01-06")

	count, total, err = store.ItemImportStats(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, total.Equal(dec("7.5")))
}

func TestLedger_PortSummary(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)

	insertImport(t, store, cert.Items[0], PortKlang, "5", "2025-01-05")
	insertImport(t, store, cert.Items[1], PortKlang, "7", "2025-01-06")
	insertImport(t, store, cert.Items[0], PortKLIA, "3", "2025-01-07")

	summary, err := store.PortSummary(PortKlang, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalRecords)
	assert.True(t, summary.TotalQuantity.Equal(dec("12")))
	assert.Equal(t, 2, summary.UniqueItems)
	assert.Equal(t, 1, summary.UniqueCertificates)
	require.Len(t, summary.RecentImports, 2)

	empty, err := store.PortSummary(PortBukitKayuHitam, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalRecords)
	assert.True(t, empty.TotalQuantity.IsZero())
	assert.Empty(t, empty.RecentImports)
}

func TestLedger_ListItemsInWarning_SeverityOrder(t *testing.T) {
	store := newTestStorage(t)
	cert := seedCertificate(t, store)

	// Item 1 (100 approved): import 105 -> overdrawn.
	insertImport(t, store, cert.Items[0], PortKlang, "60", "2025-01-05")
	insertImport(t, store, cert.Items[0], PortKLIA, "30", "2025-01-05")
	insertImport(t, store, cert.Items[0], PortBukitKayuHitam, "15", "2025-01-05")
	// Item 2 (50 approved): import 10 -> warning under default threshold.
	insertImport(t, store, cert.Items[1], PortKlang, "10", "2025-01-05")

	flagged, err := store.ListItemsInWarning("")
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	assert.Equal(t, status.Overdrawn, flagged[0].QuantityStatus)
	assert.Equal(t, 1, flagged[0].LineNo)
	assert.Equal(t, status.Warning, flagged[1].QuantityStatus)

	scoped, err := store.ListItemsInWarning(cert.ID)
	require.NoError(t, err)
	assert.Len(t, scoped, 2)

	none, err := store.ListItemsInWarning("no-such-cert")
	require.NoError(t, err)
	assert.Empty(t, none)
}
