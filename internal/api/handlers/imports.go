package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amirhzn/mida-tracker-backend/internal/api/dto"
	"github.com/amirhzn/mida-tracker-backend/internal/application/service"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/storage"
)

// ImportsHandler handles the import ledger: previews, commits, corrective
// edits and history queries.
type ImportsHandler struct {
	*Base
	svc *service.ImportService

	// allowOverdraw is the configured default; requests can still opt in
	// per call with ?allow_overdraw=true.
	allowOverdraw bool
}

// NewImportsHandler creates an imports handler.
func NewImportsHandler(svc *service.ImportService, allowOverdraw bool, logger *slog.Logger) *ImportsHandler {
	return &ImportsHandler{Base: NewBase(logger), svc: svc, allowOverdraw: allowOverdraw}
}

// Preview handles POST /api/imports/preview.
func (h *ImportsHandler) Preview(c *gin.Context) {
	reqs, ok := h.bindBatch(c)
	if !ok {
		return
	}

	previews, err := h.svc.PreviewBulk(reqs)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BulkPreviewResponse{Previews: previews, Count: len(previews)})
}

// Commit handles POST /api/imports.
func (h *ImportsHandler) Commit(c *gin.Context) {
	var body dto.ImportRecordRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req, err := toImportRequest(body)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Commit(req, QueryBool(c, "allow_overdraw", h.allowOverdraw))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// CommitBulk handles POST /api/imports/bulk.
func (h *ImportsHandler) CommitBulk(c *gin.Context) {
	reqs, ok := h.bindBatch(c)
	if !ok {
		return
	}

	results, err := h.svc.CommitBulk(reqs, QueryBool(c, "allow_overdraw", h.allowOverdraw))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.BulkImportResponse{Results: results, Count: len(results)})
}

// Update handles PUT /api/imports/:id.
func (h *ImportsHandler) Update(c *gin.Context) {
	var body dto.ImportRecordRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	importDate, err := dto.ParseDate(body.ImportDate)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.svc.UpdateRecord(c.Param("id"), service.RecordUpdate{
		ImportDate:           importDate,
		InvoiceNumber:        body.InvoiceNumber,
		InvoiceLine:          body.InvoiceLine,
		DeclarationFormRegNo: body.DeclarationFormRegNo,
		QuantityImported:     body.QuantityImported,
		Port:                 storage.Port(body.Port),
		Remarks:              body.Remarks,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Delete handles DELETE /api/imports/:id.
func (h *ImportsHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteRecord(c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get handles GET /api/imports/:id.
func (h *ImportsHandler) Get(c *gin.Context) {
	record, err := h.svc.Record(c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// List handles GET /api/imports.
func (h *ImportsHandler) List(c *gin.Context) {
	filters := storage.ImportFilters{
		CertificateItemID: c.Query("certificate_item_id"),
		CertificateID:     c.Query("certificate_id"),
		Port:              storage.Port(c.Query("port")),
		InvoiceNumber:     c.Query("invoice_number"),
		Limit:             QueryInt(c, "limit", 0),
		Offset:            QueryInt(c, "offset", 0),
	}
	if filters.Port != "" {
		if _, err := storage.ParsePort(string(filters.Port)); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}
	if s := c.Query("start_date"); s != "" {
		start, err := dto.ParseDate(s)
		if err != nil {
			h.BadRequest(c, err.Error())
			return
		}
		filters.StartDate = &start
	}
	if s := c.Query("end_date"); s != "" {
		end, err := dto.ParseDate(s)
		if err != nil {
			h.BadRequest(c, err.Error())
			return
		}
		filters.EndDate = &end
	}

	records, total, err := h.svc.History(filters)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ImportListResponse{
		Records:    records,
		TotalCount: total,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	})
}

// bindBatch reads a BulkImportRequest body into service requests.
func (h *ImportsHandler) bindBatch(c *gin.Context) ([]service.ImportRequest, bool) {
	var body dto.BulkImportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return nil, false
	}
	if len(body.Records) == 0 {
		h.BadRequest(c, "records must not be empty")
		return nil, false
	}

	reqs := make([]service.ImportRequest, 0, len(body.Records))
	for _, rec := range body.Records {
		req, err := toImportRequest(rec)
		if err != nil {
			h.BadRequest(c, err.Error())
			return nil, false
		}
		reqs = append(reqs, req)
	}
	return reqs, true
}

func toImportRequest(body dto.ImportRecordRequest) (service.ImportRequest, error) {
	importDate, err := dto.ParseDate(body.ImportDate)
	if err != nil {
		return service.ImportRequest{}, err
	}
	return service.ImportRequest{
		CertificateItemID:    body.CertificateItemID,
		ImportDate:           importDate,
		InvoiceNumber:        body.InvoiceNumber,
		InvoiceLine:          body.InvoiceLine,
		DeclarationFormRegNo: body.DeclarationFormRegNo,
		QuantityImported:     body.QuantityImported,
		Port:                 storage.Port(body.Port),
		Remarks:              body.Remarks,
	}, nil
}
