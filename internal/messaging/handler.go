package messaging

import (
	"encoding/json"
	"io"
	"net/http"

	"funnel_backend/platform/config"
	"funnel_backend/platform/httpkit"
	"funnel_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// signatureHeader carries the base64 HMAC of the raw request body.
const signatureHeader = "X-Messaging-Signature"

// maxWebhookBody bounds how much of an unauthenticated request we will read.
const maxWebhookBody = 1 << 20

// Handler handles messaging webhook HTTP requests.
type Handler struct {
	service *Service
	cfg     config.MessagingConfig
	log     *logger.Logger
}

// NewHandler creates a new messaging webhook handler.
func NewHandler(service *Service, cfg config.MessagingConfig, log *logger.Logger) *Handler {
	return &Handler{service: service, cfg: cfg, log: log}
}

// HandleWebhook processes an inbound messaging-platform delivery.
// POST /api/v1/webhook/messaging
//
// The signature is computed over the raw body, so the body is read before any
// JSON decoding. Once the delivery is verified and parsed, the response is
// always 200: per-event failures are the receiver's problem, not the sender's.
func (h *Handler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unable to read request body", nil)
		return
	}

	signature := c.GetHeader(signatureHeader)
	if !ValidateSignature(h.cfg.GetMessagingChannelSecret(), body, signature) {
		h.log.SignatureRejected("messaging", c.ClientIP(), "hmac mismatch")
		httpkit.Error(c, http.StatusUnauthorized, "invalid signature", nil)
		return
	}

	var envelope WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}

	for _, event := range envelope.Events {
		h.service.HandleEvent(c.Request.Context(), event)
	}

	c.JSON(http.StatusOK, gin.H{"received": len(envelope.Events)})
}
