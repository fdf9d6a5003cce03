package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/amirhzn/mida-tracker-backend/internal/api/dto"
	"github.com/amirhzn/mida-tracker-backend/internal/application/service"
	"github.com/amirhzn/mida-tracker-backend/internal/domain/status"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/storage"
)

// BalancesHandler serves balance snapshots, listings, warnings, and
// per-item threshold overrides.
type BalancesHandler struct {
	*Base
	svc *service.ImportService
}

// NewBalancesHandler creates a balances handler.
func NewBalancesHandler(svc *service.ImportService, logger *slog.Logger) *BalancesHandler {
	return &BalancesHandler{Base: NewBase(logger), svc: svc}
}

// ItemBalance handles GET /api/items/:id/balance.
func (h *BalancesHandler) ItemBalance(c *gin.Context) {
	snapshot, err := h.svc.ItemBalance(c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// List handles GET /api/balances.
func (h *BalancesHandler) List(c *gin.Context) {
	filters := storage.BalanceFilters{
		CertificateID:  c.Query("certificate_id"),
		QuantityStatus: status.Status(c.Query("quantity_status")),
		HSCode:         c.Query("hs_code"),
		Limit:          QueryInt(c, "limit", 0),
		Offset:         QueryInt(c, "offset", 0),
	}
	if filters.QuantityStatus != "" && !status.IsValid(filters.QuantityStatus) {
		h.BadRequest(c, "unknown quantity_status")
		return
	}

	items, total, err := h.svc.ListBalances(filters)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceListResponse{
		Items:      items,
		TotalCount: total,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	})
}

// Warnings handles GET /api/warnings.
func (h *BalancesHandler) Warnings(c *gin.Context) {
	items, err := h.svc.Warnings(c.Query("certificate_id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.WarningsResponse{Items: items, Count: len(items)})
}

// SetItemThreshold handles PUT /api/items/:id/threshold.
func (h *BalancesHandler) SetItemThreshold(c *gin.Context) {
	var body dto.ItemThresholdRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	var threshold decimal.NullDecimal
	if body.WarningThreshold != nil {
		threshold = decimal.NullDecimal{Decimal: *body.WarningThreshold, Valid: true}
	}

	item, err := h.svc.SetItemThreshold(c.Param("id"), threshold)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
