package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amirhzn/mida-tracker-backend/internal/api/dto"
	"github.com/amirhzn/mida-tracker-backend/internal/application/service"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/storage"
)

// Base provides shared functionality for all handlers.
type Base struct {
	logger *slog.Logger
}

// NewBase creates a new base handler.
func NewBase(logger *slog.Logger) *Base {
	return &Base{logger: logger}
}

// Error maps a service or storage error to the right HTTP response.
func (b *Base) Error(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrCertificateNotFound):
		c.JSON(http.StatusNotFound, dto.NotFoundError("certificate"))
	case errors.Is(err, storage.ErrItemNotFound):
		c.JSON(http.StatusNotFound, dto.NotFoundError("certificate item"))
	case errors.Is(err, storage.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, dto.NotFoundError("import record"))
	case errors.Is(err, service.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, dto.NewAPIError(dto.ErrCodeInsufficientBalance, err.Error()))
	case errors.Is(err, service.ErrInvalidPort):
		c.JSON(http.StatusBadRequest, dto.NewAPIError(dto.ErrCodeInvalidPort, err.Error()))
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
	default:
		b.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
	}
}

// BadRequest writes a 400 with the given message.
func (b *Base) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.BadRequestError(message))
}

// QueryInt parses an integer query parameter with a default value.
func QueryInt(c *gin.Context, name string, defaultVal int) int {
	val := c.Query(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// QueryBool parses a boolean query parameter with a default value.
func QueryBool(c *gin.Context, name string, defaultVal bool) bool {
	val := c.Query(name)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}
