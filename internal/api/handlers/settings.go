package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amirhzn/mida-tracker-backend/internal/api/dto"
	"github.com/amirhzn/mida-tracker-backend/internal/application/service"
)

// SettingsHandler serves process-wide settings.
type SettingsHandler struct {
	*Base
	svc *service.ImportService
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(svc *service.ImportService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{Base: NewBase(logger), svc: svc}
}

// GetWarningThreshold handles GET /api/settings/warning-threshold.
func (h *SettingsHandler) GetWarningThreshold(c *gin.Context) {
	threshold, err := h.svc.DefaultThreshold()
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ThresholdResponse{WarningThreshold: threshold})
}

// SetWarningThreshold handles PUT /api/settings/warning-threshold.
func (h *SettingsHandler) SetWarningThreshold(c *gin.Context) {
	var body dto.DefaultThresholdRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.svc.SetDefaultThreshold(body.WarningThreshold); err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ThresholdResponse{WarningThreshold: body.WarningThreshold})
}
