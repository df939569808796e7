package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "stripe-minter.backend/internal/domain/errors"
	"stripe-minter.backend/internal/interfaces/http/response"
	"stripe-minter.backend/internal/usecases"
	"stripe-minter.backend/pkg/logger"
)

// StripeSignatureHeader carries the webhook signature
const StripeSignatureHeader = "Stripe-Signature"

// maxWebhookBodyBytes caps the raw event body
const maxWebhookBodyBytes = 1 << 16

type webhookService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*usecases.WebhookResult, error)
}

// WebhookHandler handles provider webhook deliveries
type WebhookHandler struct {
	webhookUsecase webhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookUsecase webhookService) *WebhookHandler {
	return &WebhookHandler{webhookUsecase: webhookUsecase}
}

// HandleStripeWebhook verifies and enqueues a Stripe event. The body is read
// raw because the signature covers the exact bytes.
// POST /webhook
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := c.GetRawData()
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Failed to read request body"))
		return
	}

	result, err := h.webhookUsecase.HandleWebhook(c.Request.Context(), payload, c.GetHeader(StripeSignatureHeader))
	if err != nil {
		logger.Warn(c.Request.Context(), "Webhook rejected", zap.Error(err))
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"received": true,
		"eventId":  result.EventID,
		"jobId":    result.JobID,
	})
}
