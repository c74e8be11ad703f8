package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Elias8833/webmonetization/internal/exclusive"
	"github.com/Elias8833/webmonetization/internal/models"
	"github.com/Elias8833/webmonetization/internal/service"
	"github.com/Elias8833/webmonetization/internal/storage"
)

type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
	}
}

// POST /api/exclusive-content - Generate encrypted content and its embed script
func (h *Handler) Generate(c *gin.Context) {
	var req models.GenerationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIError{
			Error:   "Invalid request format",
			Code:    models.ErrorCodeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	content, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Location", "/api/exclusive-content/"+content.ID)
	c.JSON(http.StatusCreated, content)
}

// GET /api/exclusive-content/:id - Fetch a generated result
func (h *Handler) Get(c *gin.Context) {
	content, err := h.service.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, content)
}

// GET /api/exclusive-content/:id/script - Raw embed script for copy and paste
func (h *Handler) Script(c *gin.Context) {
	script, err := h.service.Script(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(script))
}

// DELETE /api/exclusive-content/:id - Discard a generated result
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// POST /api/decrypt - Check a receipt against a payload and reveal the content
func (h *Handler) Decrypt(c *gin.Context) {
	var req models.DecryptRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIError{
			Error:   "Invalid request format",
			Code:    models.ErrorCodeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	plaintext, err := h.service.Decrypt(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.DecryptResponse{
		Plaintext: plaintext,
	})
}

// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	total, expired := h.service.Stats()

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:         "healthy",
		ContentStored:  total,
		ContentExpired: expired,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrMissingField), errors.Is(err, models.ErrInvalidEncoding):
		c.JSON(http.StatusBadRequest, models.APIError{
			Error: err.Error(),
			Code:  models.ErrorCodeValidationFailed,
		})
	case errors.Is(err, exclusive.ErrMalformedPayload):
		c.JSON(http.StatusBadRequest, models.APIError{
			Error: err.Error(),
			Code:  models.ErrorCodeInvalidRequest,
		})
	case errors.Is(err, exclusive.ErrDecrypt):
		// tampered ciphertext or iv; the GCM detail is not echoed back
		c.JSON(http.StatusBadRequest, models.APIError{
			Error: "Payload failed authentication",
			Code:  models.ErrorCodeInvalidRequest,
		})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, models.APIError{
			Error: "No content found for given id",
			Code:  models.ErrorCodeNotFound,
		})
	case errors.Is(err, exclusive.ErrVerifierMismatch):
		c.JSON(http.StatusForbidden, models.APIError{
			Error: "Payment pointer and receipt do not unlock this content",
			Code:  models.ErrorCodeVerifierMismatch,
		})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIError{
			Error: "Failed to process request",
			Code:  models.ErrorCodeInternalError,
		})
	}
}
