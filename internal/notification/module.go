package notification

import (
	"context"
	"fmt"

	"funnel_backend/internal/events"
	leadrepo "funnel_backend/internal/leads/repository"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

const slotTimeFormat = "2006-01-02 15:04"

// LeadGate is the slice of the lead lifecycle engine this module needs.
type LeadGate interface {
	GetLead(ctx context.Context, id uuid.UUID) (*leadrepo.Lead, error)
}

// Pusher sends a proactive message to a linked messaging identity.
type Pusher interface {
	Push(ctx context.Context, messagingUserID, text string) error
}

// TokenIssuer signs lead-facing feedback links.
type TokenIssuer interface {
	Issue(leadID uuid.UUID) (string, error)
}

// Module reacts to funnel events with emails and messaging pushes. Delivery
// is best effort: a failed notification is logged and dropped, never retried
// into the state machine.
type Module struct {
	sender Sender
	pusher Pusher
	leads  LeadGate
	tokens TokenIssuer
	cfg    config.NotificationConfig
	log    *logger.Logger
}

// NewModule creates the notification module.
func NewModule(sender Sender, pusher Pusher, leads LeadGate, tokens TokenIssuer, cfg config.NotificationConfig, log *logger.Logger) *Module {
	return &Module{sender: sender, pusher: pusher, leads: leads, tokens: tokens, cfg: cfg, log: log}
}

// Subscribe registers the module's event handlers on the bus.
func (m *Module) Subscribe(bus events.Bus) {
	bus.Subscribe(events.BookingConfirmed{}.EventName(), events.HandlerFunc(m.onBookingConfirmed))
	bus.Subscribe(events.PaymentCompleted{}.EventName(), events.HandlerFunc(m.onPaymentCompleted))
	bus.Subscribe(events.FeedbackSubmitted{}.EventName(), events.HandlerFunc(m.onFeedbackSubmitted))
}

func (m *Module) onBookingConfirmed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.BookingConfirmed)
	if !ok {
		return nil
	}

	lead, err := m.leads.GetLead(ctx, e.LeadID)
	if err != nil {
		m.log.Error("notification: lead lookup failed", "lead_id", e.LeadID.String(), "error", err.Error())
		return nil
	}

	slotText := fmt.Sprintf("%s - %s", e.SlotStart.Format(slotTimeFormat), e.SlotEnd.Format("15:04"))
	if err := m.sender.SendBookingConfirmed(ctx, lead.Email, lead.Name, slotText); err != nil {
		m.log.Error("notification: booking email failed", "lead_id", e.LeadID.String(), "error", err.Error())
	}
	return nil
}

func (m *Module) onPaymentCompleted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.PaymentCompleted)
	if !ok {
		return nil
	}

	lead, err := m.leads.GetLead(ctx, e.LeadID)
	if err != nil {
		m.log.Error("notification: lead lookup failed", "lead_id", e.LeadID.String(), "error", err.Error())
		return nil
	}

	feedbackURL := ""
	if token, err := m.tokens.Issue(lead.ID); err == nil {
		feedbackURL = fmt.Sprintf("%s/feedback?token=%s", m.cfg.GetAppBaseURL(), token)
	} else {
		m.log.Error("notification: feedback token issue failed", "lead_id", e.LeadID.String(), "error", err.Error())
	}

	if err := m.sender.SendPaymentReceipt(ctx, lead.Email, lead.Name, e.Amount, e.Currency, feedbackURL); err != nil {
		m.log.Error("notification: receipt email failed", "lead_id", e.LeadID.String(), "error", err.Error())
	}

	if lead.MessagingUserID != nil && feedbackURL != "" {
		text := fmt.Sprintf("お支払いありがとうございます。よろしければ感想をお聞かせください: %s", feedbackURL)
		if err := m.pusher.Push(ctx, *lead.MessagingUserID, text); err != nil {
			m.log.CollaboratorError("messaging", "push", err)
		}
	}
	return nil
}

func (m *Module) onFeedbackSubmitted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.FeedbackSubmitted)
	if !ok {
		return nil
	}

	lead, err := m.leads.GetLead(ctx, e.LeadID)
	if err != nil {
		m.log.Error("notification: lead lookup failed", "lead_id", e.LeadID.String(), "error", err.Error())
		return nil
	}

	if err := m.sender.SendFeedbackThanks(ctx, lead.Email, lead.Name, e.PointsAwarded); err != nil {
		m.log.Error("notification: thanks email failed", "lead_id", e.LeadID.String(), "error", err.Error())
	}
	return nil
}
