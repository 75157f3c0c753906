package payments

import (
	"io"
	"net/http"
	"time"

	"funnel_backend/platform/httpkit"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxWebhookBody bounds how much of an unauthenticated request we will read.
const maxWebhookBody = 1 << 20

// Handler handles payment HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new payment handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// CheckoutRequest asks for a provider checkout session.
type CheckoutRequest struct {
	LeadID   uuid.UUID `json:"leadId" validate:"required"`
	Amount   int64     `json:"amount" validate:"required"`
	Currency string    `json:"currency" validate:"omitempty,len=3"`
}

// CheckoutResponse carries the checkout URL for redirect and as a QR image.
type CheckoutResponse struct {
	PaymentID         uuid.UUID `json:"paymentId"`
	ProviderSessionID string    `json:"providerSessionId"`
	CheckoutURL       string    `json:"checkoutUrl"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	QRPNG             string    `json:"qrPng,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// HandleCreateCheckout creates a checkout session.
// POST /api/v1/payment/checkout
func (h *Handler) HandleCreateCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	checkout, err := h.service.CreateCheckout(c.Request.Context(), CreateCheckoutInput{
		LeadID:   req.LeadID,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, CheckoutResponse{
		PaymentID:         checkout.Payment.ID,
		ProviderSessionID: checkout.Payment.ProviderSessionID,
		CheckoutURL:       checkout.Payment.CheckoutURL,
		Amount:            checkout.Payment.Amount,
		Currency:          checkout.Payment.Currency,
		QRPNG:             checkout.QRPNG,
		CreatedAt:         checkout.Payment.CreatedAt,
	})
}

// HandleWebhook processes a signed provider delivery.
// POST /api/v1/webhook/payment
func (h *Handler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unable to read request body", nil)
		return
	}

	if err := h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader(SignatureHeader), c.ClientIP()); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
