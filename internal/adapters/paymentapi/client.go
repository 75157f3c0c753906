// Package paymentapi is the outbound client for the payment provider's
// checkout API.
package paymentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"funnel_backend/internal/payments"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
)

// Client talks to the payment provider over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates the payment provider client.
func NewClient(cfg config.PaymentConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GetPaymentAPIURL(), "/"),
		apiKey:  cfg.GetPaymentAPIKey(),
		http:    &http.Client{Timeout: cfg.GetCollaboratorTimeout()},
		log:     log,
	}
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession creates a hosted checkout session. The provider
// speaks form-encoded requests, Stripe style.
func (c *Client) CreateCheckoutSession(ctx context.Context, input payments.CheckoutSessionInput) (payments.CheckoutSession, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(input.Amount, 10))
	form.Set("currency", input.Currency)
	form.Set("client_reference_id", input.Reference)
	form.Set("success_url", input.SuccessURL)
	form.Set("cancel_url", input.CancelURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return payments.CheckoutSession{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return payments.CheckoutSession{}, apperr.Wrap(apperr.KindUnavailable, "payment provider is unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return payments.CheckoutSession{}, apperr.Unavailable(fmt.Sprintf("payment provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return payments.CheckoutSession{}, fmt.Errorf("payment provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return payments.CheckoutSession{}, apperr.Wrap(apperr.KindUnavailable, "payment provider response unreadable", err)
	}
	if session.ID == "" || session.URL == "" {
		return payments.CheckoutSession{}, apperr.Unavailable("payment provider returned an incomplete session")
	}

	return payments.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// Compile-time check that Client implements payments.ProviderClient
var _ payments.ProviderClient = (*Client)(nil)
