package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/amirhzn/mida-tracker-backend/internal/api/dto"
	"github.com/amirhzn/mida-tracker-backend/internal/application/service"
	"github.com/amirhzn/mida-tracker-backend/internal/domain/matcher"
)

// MatchHandler matches invoice lines against stored certificates.
type MatchHandler struct {
	*Base
	svc *service.MatchService
}

// NewMatchHandler creates a match handler.
func NewMatchHandler(svc *service.MatchService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{Base: NewBase(logger), svc: svc}
}

// Match handles POST /api/certificates/:id/match.
func (h *MatchHandler) Match(c *gin.Context) {
	var req dto.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		h.BadRequest(c, "items must not be empty")
		return
	}
	if req.Mode != "" && req.Mode != string(matcher.ModeExact) && req.Mode != string(matcher.ModeFuzzy) {
		h.BadRequest(c, "mode must be exact or fuzzy")
		return
	}

	invoiceItems := make([]matcher.InvoiceItem, 0, len(req.Items))
	for _, item := range req.Items {
		inv := matcher.InvoiceItem{
			LineNo:      item.LineNo,
			Name:        item.Description,
			Quantity:    item.Quantity,
			QuantityUOM: item.UOM,
		}
		if item.NetWeightKG != nil {
			inv.NetWeight = decimal.NullDecimal{Decimal: *item.NetWeightKG, Valid: true}
		}
		if item.Amount != nil {
			inv.Amount = decimal.NullDecimal{Decimal: *item.Amount, Valid: true}
		}
		invoiceItems = append(invoiceItems, inv)
	}

	var overrides *matcher.Config
	if req.Mode != "" || req.Threshold > 0 {
		overrides = &matcher.Config{Mode: matcher.Mode(req.Mode), Threshold: req.Threshold}
	}

	result, err := h.svc.MatchCertificate(c.Param("id"), invoiceItems, overrides)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMatchResponse(result))
}
