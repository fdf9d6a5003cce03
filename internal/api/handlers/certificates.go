package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/amirhzn/mida-tracker-backend/internal/api/dto"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/storage"
)

// CertificatesHandler handles certificate CRUD.
type CertificatesHandler struct {
	*Base
	repo storage.Repository
}

// NewCertificatesHandler creates a certificates handler.
func NewCertificatesHandler(repo storage.Repository, logger *slog.Logger) *CertificatesHandler {
	return &CertificatesHandler{Base: NewBase(logger), repo: repo}
}

// Create handles POST /api/certificates.
func (h *CertificatesHandler) Create(c *gin.Context) {
	var req dto.CreateCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.CertificateNumber == "" {
		h.BadRequest(c, "certificate_number is required")
		return
	}
	if req.CompanyName == "" {
		h.BadRequest(c, "company_name is required")
		return
	}
	if req.Status != "" && req.Status != "draft" && req.Status != "confirmed" {
		h.BadRequest(c, "status must be draft or confirmed")
		return
	}

	cert := &storage.Certificate{
		CertificateNumber: req.CertificateNumber,
		CompanyName:       req.CompanyName,
		Status:            req.Status,
		SourceFilename:    req.SourceFilename,
	}

	var err error
	if cert.ExemptionStartDate, err = optionalDate(req.ExemptionStartDate); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if cert.ExemptionEndDate, err = optionalDate(req.ExemptionEndDate); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	seen := make(map[int]bool, len(req.Items))
	for _, item := range req.Items {
		if item.ItemName == "" {
			h.BadRequest(c, "every item needs an item_name")
			return
		}
		if seen[item.LineNo] {
			h.BadRequest(c, "duplicate line_no in items")
			return
		}
		seen[item.LineNo] = true

		cert.Items = append(cert.Items, &storage.CertificateItem{
			LineNo:            item.LineNo,
			HSCode:            item.HSCode,
			ItemName:          item.ItemName,
			UOM:               item.UOM,
			ApprovedQuantity:  toNullDecimal(item.ApprovedQuantity),
			PortKlangQty:      toNullDecimal(item.PortKlangQty),
			KLIAQty:           toNullDecimal(item.KLIAQty),
			BukitKayuHitamQty: toNullDecimal(item.BukitKayuHitamQty),
			WarningThreshold:  toNullDecimal(item.WarningThreshold),
		})
	}

	if err := h.repo.CreateCertificate(cert); err != nil {
		h.Error(c, err)
		return
	}

	h.logger.Info("certificate created",
		"certificate_id", cert.ID,
		"certificate_number", cert.CertificateNumber,
		"items", len(cert.Items),
	)

	c.JSON(http.StatusCreated, cert)
}

// List handles GET /api/certificates.
func (h *CertificatesHandler) List(c *gin.Context) {
	result, err := h.repo.ListCertificates(storage.CertificateFilters{
		Status: c.Query("status"),
		Limit:  QueryInt(c, "limit", 0),
		Offset: QueryInt(c, "offset", 0),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get handles GET /api/certificates/:id.
func (h *CertificatesHandler) Get(c *gin.Context) {
	cert, err := h.repo.GetCertificate(c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

// Delete handles DELETE /api/certificates/:id.
func (h *CertificatesHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.repo.DeleteCertificate(id); err != nil {
		h.Error(c, err)
		return
	}
	h.logger.Info("certificate deleted", "certificate_id", id)
	c.Status(http.StatusNoContent)
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := dto.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
