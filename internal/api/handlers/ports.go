package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amirhzn/mida-tracker-backend/internal/api/dto"
	"github.com/amirhzn/mida-tracker-backend/internal/application/service"
)

// PortsHandler serves per-port ledger rollups.
type PortsHandler struct {
	*Base
	svc *service.ImportService
}

// NewPortsHandler creates a ports handler.
func NewPortsHandler(svc *service.ImportService, logger *slog.Logger) *PortsHandler {
	return &PortsHandler{Base: NewBase(logger), svc: svc}
}

// Summary handles GET /api/ports/summary.
func (h *PortsHandler) Summary(c *gin.Context) {
	summaries, err := h.svc.PortSummaries(QueryInt(c, "recent_limit", 10))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PortSummariesResponse{Ports: summaries})
}
