package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirhzn/mida-tracker-backend/internal/api/dto"
	"github.com/amirhzn/mida-tracker-backend/internal/application/service"
	"github.com/amirhzn/mida-tracker-backend/internal/domain/matcher"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) (*Server, storage.Repository) {
	t.Helper()

	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	imports := service.NewImportService(store, logger)
	matching := service.NewMatchService(store, matcher.DefaultConfig(), logger)

	server := NewServer(DefaultConfig(), store, imports, matching, logger)
	return server, store
}

func doRequest(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func createCertificate(t *testing.T, server *Server) storage.Certificate {
	t.Helper()

	qty := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	rec := doRequest(t, server, http.MethodPost, "/api/certificates", dto.CreateCertificateRequest{
		CertificateNumber: "MIDA-2025-0001",
		CompanyName:       "Acme Manufacturing Sdn Bhd",
		Status:            "confirmed",
		Items: []dto.CertificateItemRequest{
			{
				LineNo:            1,
				HSCode:            "8471.30.000",
				ItemName:          "COMPUTER PROCESSING UNIT",
				UOM:               "UNIT",
				ApprovedQuantity:  qty("1000"),
				PortKlangQty:      qty("600"),
				KLIAQty:           qty("300"),
				BukitKayuHitamQty: qty("100"),
			},
			{
				LineNo:           2,
				HSCode:           "8517.62.000",
				ItemName:         "NETWORK ROUTER DEVICE",
				UOM:              "UNIT",
				ApprovedQuantity: qty("50"),
				PortKlangQty:     qty("50"),
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var cert storage.Certificate
	decodeJSON(t, rec, &cert)
	require.Len(t, cert.Items, 2)
	return cert
}

func importBody(itemID, port, qty, importDate string) dto.ImportRecordRequest {
	return dto.ImportRecordRequest{
		CertificateItemID: itemID,
		ImportDate:        importDate,
		InvoiceNumber:     "INV-" + importDate,
		QuantityImported:  decimal.RequireFromString(qty),
		Port:              port,
	}
}

func TestServer_Health(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestServer_CertificateLifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	cert := createCertificate(t, server)

	rec := doRequest(t, server, http.MethodGet, "/api/certificates/"+cert.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var fetched storage.Certificate
	decodeJSON(t, rec, &fetched)
	assert.Equal(t, "MIDA-2025-0001", fetched.CertificateNumber)
	assert.True(t, fetched.Items[0].RemainingQuantity.Decimal.Equal(decimal.RequireFromString("1000")))

	rec = doRequest(t, server, http.MethodGet, "/api/certificates?status=confirmed", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list storage.CertificateList
	decodeJSON(t, rec, &list)
	assert.Equal(t, 1, list.TotalCount)

	rec = doRequest(t, server, http.MethodDelete, "/api/certificates/"+cert.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/certificates/"+cert.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CreateCertificate_Validation(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/certificates", dto.CreateCertificateRequest{
		CompanyName: "No Number Sdn Bhd",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr dto.APIError
	decodeJSON(t, rec, &apiErr)
	assert.Equal(t, dto.ErrCodeBadRequest, apiErr.Code)
}

func TestServer_Match(t *testing.T) {
	server, _ := newTestServer(t)
	cert := createCertificate(t, server)

	rec := doRequest(t, server, http.MethodPost, "/api/certificates/"+cert.ID+"/match", dto.MatchRequest{
		Items: []dto.MatchInvoiceItem{
			{LineNo: 1, Description: "Computer Processing Unit", Quantity: decimal.RequireFromString("10"), UOM: "PCS"},
			{LineNo: 2, Description: "Something Unrelated Entirely", Quantity: decimal.RequireFromString("5"), UOM: "PCS"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.MatchResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 2, resp.TotalItems)
	assert.Equal(t, 1, resp.MatchedCount)
	assert.Equal(t, 1, resp.UnmatchedCount)
	require.Len(t, resp.Matches, 2)
	assert.True(t, resp.Matches[0].Matched)
	assert.Equal(t, 1, resp.Matches[0].CertificateLineNo)
	assert.True(t, resp.Matches[0].IsExact)
	assert.False(t, resp.Matches[1].Matched)

	rec = doRequest(t, server, http.MethodPost, "/api/certificates/nope/match", dto.MatchRequest{
		Items: []dto.MatchInvoiceItem{{LineNo: 1, Description: "x", Quantity: decimal.RequireFromString("1")}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ImportFlow(t *testing.T) {
	server, _ := newTestServer(t)
	cert := createCertificate(t, server)
	itemID := cert.Items[0].ID

	// Preview first.
	rec := doRequest(t, server, http.MethodPost, "/api/imports/preview", dto.BulkImportRequest{
		Records: []dto.ImportRecordRequest{importBody(itemID, "port_klang", "100", "2025-01-10")},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var previews dto.BulkPreviewResponse
	decodeJSON(t, rec, &previews)
	require.Equal(t, 1, previews.Count)
	assert.True(t, previews.Previews[0].BalanceAfter.Equal(decimal.RequireFromString("500")))

	// Then commit.
	rec = doRequest(t, server, http.MethodPost, "/api/imports", importBody(itemID, "port_klang", "100", "2025-01-10"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result service.ImportResult
	decodeJSON(t, rec, &result)
	assert.True(t, result.Record.BalanceAfter.Equal(decimal.RequireFromString("500")))
	recordID := result.Record.ID

	// History lists it.
	rec = doRequest(t, server, http.MethodGet, "/api/imports?certificate_item_id="+itemID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history dto.ImportListResponse
	decodeJSON(t, rec, &history)
	assert.Equal(t, 1, history.TotalCount)

	// Corrective edit.
	update := importBody(itemID, "klia", "100", "2025-01-10")
	rec = doRequest(t, server, http.MethodPut, "/api/imports/"+recordID, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated storage.ImportRecord
	decodeJSON(t, rec, &updated)
	assert.Equal(t, storage.PortKLIA, updated.Port)
	assert.True(t, updated.BalanceBefore.Equal(decimal.RequireFromString("300")))

	// Delete restores the balances.
	rec = doRequest(t, server, http.MethodDelete, "/api/imports/"+recordID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/items/"+itemID+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot service.BalanceSnapshot
	decodeJSON(t, rec, &snapshot)
	assert.Equal(t, 0, snapshot.ImportCount)
	assert.True(t, snapshot.Item.RemainingQuantity.Decimal.Equal(decimal.RequireFromString("1000")))
}

func TestServer_Commit_InsufficientBalance(t *testing.T) {
	server, _ := newTestServer(t)
	cert := createCertificate(t, server)
	itemID := cert.Items[1].ID // 50 at Port Klang

	rec := doRequest(t, server, http.MethodPost, "/api/imports", importBody(itemID, "port_klang", "60", "2025-01-10"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var apiErr dto.APIError
	decodeJSON(t, rec, &apiErr)
	assert.Equal(t, dto.ErrCodeInsufficientBalance, apiErr.Code)

	// The per-request override lets it through.
	rec = doRequest(t, server, http.MethodPost, "/api/imports?allow_overdraw=true", importBody(itemID, "port_klang", "60", "2025-01-10"))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestServer_Commit_BadRequests(t *testing.T) {
	server, _ := newTestServer(t)
	cert := createCertificate(t, server)
	itemID := cert.Items[0].ID

	rec := doRequest(t, server, http.MethodPost, "/api/imports", importBody(itemID, "penang", "10", "2025-01-10"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, server, http.MethodPost, "/api/imports", importBody("no-such-item", "port_klang", "10", "2025-01-10"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	bad := importBody(itemID, "port_klang", "10", "2025-01-10")
	bad.ImportDate = "10/01/2025"
	rec = doRequest(t, server, http.MethodPost, "/api/imports", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_BulkCommit(t *testing.T) {
	server, _ := newTestServer(t)
	cert := createCertificate(t, server)

	// Second record overdraws; whole batch rejected.
	rec := doRequest(t, server, http.MethodPost, "/api/imports/bulk", dto.BulkImportRequest{
		Records: []dto.ImportRecordRequest{
			importBody(cert.Items[0].ID, "port_klang", "100", "2025-01-10"),
			importBody(cert.Items[1].ID, "port_klang", "60", "2025-01-10"),
		},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/imports", nil)
	var history dto.ImportListResponse
	decodeJSON(t, rec, &history)
	assert.Equal(t, 0, history.TotalCount, "failed batch leaves no records")

	rec = doRequest(t, server, http.MethodPost, "/api/imports/bulk", dto.BulkImportRequest{
		Records: []dto.ImportRecordRequest{
			importBody(cert.Items[0].ID, "port_klang", "100", "2025-01-10"),
			importBody(cert.Items[1].ID, "port_klang", "10", "2025-01-10"),
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp dto.BulkImportResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)
}

func TestServer_BalancesAndWarnings(t *testing.T) {
	server, _ := newTestServer(t)
	cert := createCertificate(t, server)

	// Drive line 2 into warning (50 -> 40 under default threshold 100).
	rec := doRequest(t, server, http.MethodPost, "/api/imports", importBody(cert.Items[1].ID, "port_klang", "10", "2025-01-10"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/balances?quantity_status=warning", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balances dto.BalanceListResponse
	decodeJSON(t, rec, &balances)
	require.Equal(t, 1, balances.TotalCount)
	assert.Equal(t, 2, balances.Items[0].LineNo)

	rec = doRequest(t, server, http.MethodGet, "/api/warnings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var warnings dto.WarningsResponse
	decodeJSON(t, rec, &warnings)
	assert.Equal(t, 1, warnings.Count)

	rec = doRequest(t, server, http.MethodGet, "/api/balances?quantity_status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Thresholds(t *testing.T) {
	server, _ := newTestServer(t)
	cert := createCertificate(t, server)

	rec := doRequest(t, server, http.MethodGet, "/api/settings/warning-threshold", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var threshold dto.ThresholdResponse
	decodeJSON(t, rec, &threshold)
	assert.True(t, threshold.WarningThreshold.Equal(decimal.RequireFromString("100")))

	rec = doRequest(t, server, http.MethodPut, "/api/settings/warning-threshold", dto.DefaultThresholdRequest{
		WarningThreshold: decimal.RequireFromString("250"),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/settings/warning-threshold", nil)
	decodeJSON(t, rec, &threshold)
	assert.True(t, threshold.WarningThreshold.Equal(decimal.RequireFromString("250")))

	// Per-item override.
	override := decimal.RequireFromString("10")
	rec = doRequest(t, server, http.MethodPut, "/api/items/"+cert.Items[1].ID+"/threshold", dto.ItemThresholdRequest{
		WarningThreshold: &override,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var item storage.CertificateItem
	decodeJSON(t, rec, &item)
	require.True(t, item.WarningThreshold.Valid)
	assert.True(t, item.WarningThreshold.Decimal.Equal(override))
}

func TestServer_PortSummary(t *testing.T) {
	server, _ := newTestServer(t)
	cert := createCertificate(t, server)

	rec := doRequest(t, server, http.MethodPost, "/api/imports", importBody(cert.Items[0].ID, "port_klang", "25", "2025-01-10"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/ports/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary dto.PortSummariesResponse
	decodeJSON(t, rec, &summary)
	require.Len(t, summary.Ports, 3)
	assert.Equal(t, storage.PortKlang, summary.Ports[0].Port)
	assert.Equal(t, 1, summary.Ports[0].TotalRecords)
	assert.True(t, summary.Ports[0].TotalQuantity.Equal(decimal.RequireFromString("25")))
}
