// Package payments reconciles checkout state with the payment provider:
// checkout creation on our side, settlement via signed provider webhooks.
package payments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/leads/domain"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

const providerName = "payment"

// Provider event types we act on. Anything else is verified, recorded, and
// acknowledged without state change.
const (
	eventCheckoutCompleted = "checkout.session.completed"
	eventCheckoutExpired   = "checkout.session.expired"
	eventPaymentFailed     = "checkout.session.async_payment_failed"
)

// Store is the persistence surface the reconciler needs. *Repository
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	CreatePending(ctx context.Context, leadID uuid.UUID, sessionID string, amount int64, currency, checkoutURL string) (*Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	MarkTerminal(ctx context.Context, sessionID, status string) (bool, error)
	RecordEvent(ctx context.Context, provider, providerEventID, eventType string) (bool, error)
}

// Service is the payment reconciler.
type Service struct {
	store     Store
	provider  ProviderClient
	leads     LeadGate
	scheduler DeadlineScheduler
	bus       events.Bus
	cfg       config.PaymentConfig
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates the payment reconciler.
func NewService(store Store, provider ProviderClient, leads LeadGate, scheduler DeadlineScheduler, bus events.Bus, cfg config.PaymentConfig, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		provider:  provider,
		leads:     leads,
		scheduler: scheduler,
		bus:       bus,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// CreateCheckoutInput carries a checkout request.
type CreateCheckoutInput struct {
	LeadID   uuid.UUID
	Amount   int64
	Currency string
}

// Checkout is the result of creating a provider checkout session.
type Checkout struct {
	Payment *Payment
	QRPNG   string
}

// CreateCheckout creates a provider checkout session and records it as a
// pending payment. The pending row is written before the URL is returned, so
// a fast provider webhook always finds its session.
func (s *Service) CreateCheckout(ctx context.Context, in CreateCheckoutInput) (*Checkout, error) {
	if in.LeadID == uuid.Nil {
		return nil, apperr.Validation("leadId is required")
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		// The first allowed currency is the shop default.
		currency = s.cfg.GetAllowedCurrencies()[0]
	}
	if !s.currencyAllowed(currency) {
		return nil, apperr.Validation("currency is not supported: " + currency)
	}

	ok, err := s.leads.Exists(ctx, in.LeadID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("lead not found")
	}

	provCtx, cancel := context.WithTimeout(ctx, s.cfg.GetCollaboratorTimeout())
	defer cancel()
	session, err := s.provider.CreateCheckoutSession(provCtx, CheckoutSessionInput{
		Amount:     in.Amount,
		Currency:   currency,
		Reference:  in.LeadID.String(),
		SuccessURL: s.cfg.GetPaymentSuccessURL(),
		CancelURL:  s.cfg.GetPaymentCancelURL(),
	})
	if err != nil {
		s.log.CollaboratorError(providerName, "create_checkout", err)
		if apperr.Is(err, apperr.KindUnavailable) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindUnavailable, "payment provider is unavailable", err)
	}

	payment, err := s.store.CreatePending(ctx, in.LeadID, session.ID, in.Amount, currency, session.URL)
	if err != nil {
		s.log.DatabaseError("payments.create_pending", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to record payment", err)
	}

	if deadline := s.cfg.GetPaymentDeadline(); deadline > 0 {
		if err := s.scheduler.SchedulePaymentDeadline(ctx, session.ID, deadline); err != nil {
			s.log.Error("failed to schedule payment deadline",
				"session_id", session.ID, "error", err.Error())
		}
	}

	return &Checkout{Payment: payment, QRPNG: encodeQR(session.URL, s.log)}, nil
}

// providerEnvelope is the parsed webhook body.
type providerEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// HandleWebhook processes one provider delivery. The signature covers the raw
// body; verification failure means no state change and no event record. A
// verified delivery is always acknowledged (nil), whether or not it moves any
// state: duplicates, unknown sessions, and unrecognized types are the
// provider's retry machinery at work, not errors.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signatureHeader, clientIP string) error {
	if !VerifySignature(s.cfg.GetPaymentWebhookSecret(), body, signatureHeader, s.cfg.GetPaymentSignatureTolerance(), s.now()) {
		s.log.SignatureRejected(providerName, clientIP, "signature mismatch or stale timestamp")
		return apperr.Unauthorized("invalid signature")
	}

	var env providerEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apperr.BadRequest("invalid payload")
	}
	if env.ID == "" || env.Type == "" {
		return apperr.BadRequest("missing event id or type")
	}

	fresh, err := s.store.RecordEvent(ctx, providerName, env.ID, env.Type)
	if err != nil {
		s.log.DatabaseError("payments.record_event", err)
		return apperr.Wrap(apperr.KindInternal, "failed to record event", err)
	}
	if !fresh {
		s.log.WebhookEvent(providerName, env.Type, false)
		// An earlier delivery may have settled the payment but failed to
		// advance the lead. Re-running settle converges both; it is a no-op
		// when they already agree.
		if env.Type == eventCheckoutCompleted {
			return s.settle(ctx, env.Data.Object.ID, PaymentPaid, "")
		}
		return nil
	}

	switch env.Type {
	case eventCheckoutCompleted:
		return s.settle(ctx, env.Data.Object.ID, PaymentPaid, "")
	case eventCheckoutExpired:
		return s.settle(ctx, env.Data.Object.ID, PaymentCancelled, env.Type)
	case eventPaymentFailed:
		return s.settle(ctx, env.Data.Object.ID, PaymentFailed, env.Type)
	default:
		s.log.WebhookEvent(providerName, env.Type, false)
		return nil
	}
}

// ExpireIfPending fails a checkout session that never settled before its
// deadline. Settled sessions are left alone.
func (s *Service) ExpireIfPending(ctx context.Context, sessionID string) error {
	payment, err := s.store.FindBySessionID(ctx, sessionID)
	if err == ErrPaymentNotFound {
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to load payment", err)
	}
	if payment.Status != PaymentPending {
		return nil
	}
	return s.settle(ctx, sessionID, PaymentCancelled, "deadline expired")
}

// GetPayment fetches one payment.
func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	payment, err := s.store.GetByID(ctx, id)
	if err == ErrPaymentNotFound {
		return nil, apperr.NotFound("payment not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load payment", err)
	}
	return payment, nil
}

func (s *Service) settle(ctx context.Context, sessionID, status, reason string) error {
	if sessionID == "" {
		s.log.Warn("provider event without session id", "status", status)
		return nil
	}

	payment, err := s.store.FindBySessionID(ctx, sessionID)
	if err == ErrPaymentNotFound {
		s.log.Warn("provider event for unknown session", "session_id", sessionID)
		return nil
	}
	if err != nil {
		s.log.DatabaseError("payments.find_by_session", err)
		return apperr.Wrap(apperr.KindInternal, "failed to load payment", err)
	}

	applied, err := s.store.MarkTerminal(ctx, sessionID, status)
	if err != nil {
		s.log.DatabaseError("payments.mark_terminal", err)
		return apperr.Wrap(apperr.KindInternal, "failed to settle payment", err)
	}
	if !applied {
		// Already settled. A paid session still re-asserts the lead status:
		// if a prior delivery marked the payment paid but errored before the
		// lead moved, this is where the retry heals it. Advance is
		// idempotent, so a converged lead is untouched.
		if status == PaymentPaid && payment.Status == PaymentPaid {
			if err := s.leads.Advance(ctx, payment.LeadID, domain.StatusPaid); err != nil {
				return err
			}
		}
		s.log.WebhookEvent(providerName, "duplicate."+status, false)
		return nil
	}

	if status == PaymentPaid {
		if err := s.leads.Advance(ctx, payment.LeadID, domain.StatusPaid); err != nil {
			return err
		}
		s.bus.Publish(ctx, events.PaymentCompleted{
			BaseEvent:         events.NewBaseEvent(),
			PaymentID:         payment.ID,
			LeadID:            payment.LeadID,
			ProviderSessionID: sessionID,
			Amount:            payment.Amount,
			Currency:          payment.Currency,
		})
	} else {
		s.bus.Publish(ctx, events.PaymentFailed{
			BaseEvent:         events.NewBaseEvent(),
			PaymentID:         payment.ID,
			LeadID:            payment.LeadID,
			ProviderSessionID: sessionID,
			Reason:            reason,
		})
	}

	s.log.WebhookEvent(providerName, status, true)
	return nil
}

func (s *Service) currencyAllowed(currency string) bool {
	for _, allowed := range s.cfg.GetAllowedCurrencies() {
		if currency == allowed {
			return true
		}
	}
	return false
}

// encodeQR renders the checkout URL as a base64 PNG for in-store displays.
// QR generation is cosmetic; on failure the checkout proceeds without one.
func encodeQR(url string, log *logger.Logger) string {
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		log.Warn("failed to encode checkout qr", "error", err.Error())
		return ""
	}
	return base64.StdEncoding.EncodeToString(png)
}
