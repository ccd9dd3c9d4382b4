package handlers

import (
	"errors"
	"io"
	"net/http"

	"ridewallet/internal/services"
	"ridewallet/internal/utils"
	"ridewallet/pkg/logger"

	"github.com/gin-gonic/gin"
)

// maxWebhookBodyBytes caps webhook bodies; larger payloads are rejected before verification.
const maxWebhookBodyBytes = 65536

type WebhookHandler struct {
	webhookService services.WebhookService
	logger         *logger.Logger
}

func NewWebhookHandler(webhookService services.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         log,
	}
}

// HandleStripeWebhook verifies and applies a Stripe event. The body must be
// read raw: the signature covers the exact bytes sent.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
	if err != nil {
		utils.RawJSONResponse(c, http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(payload) > maxWebhookBodyBytes {
		utils.RawJSONResponse(c, http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}

	result, err := h.webhookService.HandleStripeEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		var appErr *services.AppError
		if errors.As(err, &appErr) {
			utils.RawJSONResponse(c, appErr.Status, gin.H{"error": appErr.Message, "code": appErr.Code})
			return
		}
		h.logger.WithContext(c.Request.Context()).WithError(err).Error("Webhook processing failed")
		utils.RawJSONResponse(c, http.StatusInternalServerError, gin.H{"error": utils.ErrInternalServer})
		return
	}

	utils.RawJSONResponse(c, http.StatusOK, gin.H{
		"received": true,
		"outcome":  result.Outcome,
	})
}
