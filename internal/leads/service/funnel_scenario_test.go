package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/feedback"
	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/leads/repository"
	leadsvc "funnel_backend/internal/leads/service"
	"funnel_backend/internal/messaging"
	"funnel_backend/internal/payments"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

// In-memory stores spanning every module, so the whole funnel can run as one
// scenario without PostgreSQL.

type funnelLeadStore struct {
	leads map[uuid.UUID]*repository.Lead
}

func (f *funnelLeadStore) Create(_ context.Context, email, name string, phone *string, source string) (*repository.Lead, error) {
	lead := &repository.Lead{ID: uuid.New(), Email: email, Name: name, Phone: phone, Source: source, Status: domain.StatusNew}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *funnelLeadStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *lead
	return &copied, nil
}

func (f *funnelLeadStore) FindByEmail(_ context.Context, email string) (*repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.Email == email {
			copied := *lead
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *funnelLeadStore) FindByMessagingUserID(_ context.Context, messagingUserID string) (*repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.MessagingUserID != nil && *lead.MessagingUserID == messagingUserID {
			copied := *lead
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *funnelLeadStore) BindMessagingUser(_ context.Context, leadID uuid.UUID, messagingUserID string) error {
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.ErrNotFound
	}
	if lead.MessagingUserID != nil {
		return repository.ErrAlreadyBound
	}
	lead.MessagingUserID = &messagingUserID
	return nil
}

func (f *funnelLeadStore) AdvanceStatus(_ context.Context, id uuid.UUID, from, to domain.Status) (bool, error) {
	lead, ok := f.leads[id]
	if !ok || lead.Status != from {
		return false, nil
	}
	lead.Status = to
	return true, nil
}

type funnelPaymentStore struct {
	payments map[string]*payments.Payment
	seen     map[string]bool
}

func (f *funnelPaymentStore) CreatePending(_ context.Context, leadID uuid.UUID, sessionID string, amount int64, currency, checkoutURL string) (*payments.Payment, error) {
	p := &payments.Payment{ID: uuid.New(), LeadID: leadID, ProviderSessionID: sessionID, Amount: amount, Currency: currency, Status: payments.PaymentPending, CheckoutURL: checkoutURL, CreatedAt: time.Now()}
	f.payments[sessionID] = p
	return p, nil
}

func (f *funnelPaymentStore) FindBySessionID(_ context.Context, sessionID string) (*payments.Payment, error) {
	p, ok := f.payments[sessionID]
	if !ok {
		return nil, payments.ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *funnelPaymentStore) GetByID(_ context.Context, id uuid.UUID) (*payments.Payment, error) {
	for _, p := range f.payments {
		if p.ID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, payments.ErrPaymentNotFound
}

func (f *funnelPaymentStore) MarkTerminal(_ context.Context, sessionID, status string) (bool, error) {
	p, ok := f.payments[sessionID]
	if !ok || p.Status != payments.PaymentPending {
		return false, nil
	}
	p.Status = status
	return true, nil
}

func (f *funnelPaymentStore) RecordEvent(_ context.Context, provider, providerEventID, _ string) (bool, error) {
	key := provider + ":" + providerEventID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type funnelFeedbackStore struct {
	feedbacks map[uuid.UUID]*feedback.Feedback
	rewards   map[uuid.UUID]*feedback.Reward
}

func (f *funnelFeedbackStore) CreateFeedback(_ context.Context, id, leadID uuid.UUID, rating int, comment string) (bool, error) {
	if _, ok := f.feedbacks[id]; ok {
		return false, nil
	}
	f.feedbacks[id] = &feedback.Feedback{ID: id, LeadID: leadID, Rating: rating, Comment: comment, CreatedAt: time.Now()}
	return true, nil
}

func (f *funnelFeedbackStore) GetFeedback(_ context.Context, id uuid.UUID) (*feedback.Feedback, error) {
	fb := f.feedbacks[id]
	copied := *fb
	return &copied, nil
}

func (f *funnelFeedbackStore) GrantReward(_ context.Context, leadID, feedbackID uuid.UUID, points int, reason string) (bool, error) {
	if _, ok := f.rewards[feedbackID]; ok {
		return false, nil
	}
	for _, r := range f.rewards {
		if r.LeadID == leadID && r.Reason == reason {
			return false, nil
		}
	}
	f.rewards[feedbackID] = &feedback.Reward{ID: uuid.New(), LeadID: leadID, FeedbackID: feedbackID, Points: points, Reason: reason, CreatedAt: time.Now()}
	return true, nil
}

func (f *funnelFeedbackStore) GetRewardByFeedbackID(_ context.Context, feedbackID uuid.UUID) (*feedback.Reward, error) {
	r, ok := f.rewards[feedbackID]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (f *funnelFeedbackStore) TotalPoints(_ context.Context, leadID uuid.UUID) (int, error) {
	total := 0
	for _, r := range f.rewards {
		if r.LeadID == leadID {
			total += r.Points
		}
	}
	return total, nil
}

type recordingReplier struct {
	replies []string
}

func (r *recordingReplier) Reply(_ context.Context, _ string, text string) error {
	r.replies = append(r.replies, text)
	return nil
}

type staticProvider struct{}

func (staticProvider) CreateCheckoutSession(context.Context, payments.CheckoutSessionInput) (payments.CheckoutSession, error) {
	return payments.CheckoutSession{ID: "S1", URL: "https://pay.example/S1"}, nil
}

type noopDeadlines struct{}

func (noopDeadlines) SchedulePaymentDeadline(context.Context, string, time.Duration) error {
	return nil
}

// TestFunnelEndToEnd walks one visitor through the whole funnel: landing-page
// signup, chat identity link, checkout, provider settlement (with a duplicate
// delivery), and rewarded feedback.
func TestFunnelEndToEnd(t *testing.T) {
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)

	leadStore := &funnelLeadStore{leads: make(map[uuid.UUID]*repository.Lead)}
	engine := leadsvc.New(leadStore, bus, log)

	replier := &recordingReplier{}
	chat := messaging.NewService(engine, replier, log)

	payStore := &funnelPaymentStore{payments: make(map[string]*payments.Payment), seen: make(map[string]bool)}
	payCfg := &config.Config{
		PaymentWebhookSecret:      "whsec_scenario",
		PaymentSignatureTolerance: 5 * time.Minute,
		AllowedCurrencies:         []string{"jpy"},
		CollaboratorTimeout:       time.Second,
	}
	paySvc := payments.NewService(payStore, staticProvider{}, engine, noopDeadlines{}, bus, payCfg, log)

	fbStore := &funnelFeedbackStore{feedbacks: make(map[uuid.UUID]*feedback.Feedback), rewards: make(map[uuid.UUID]*feedback.Reward)}
	fbSvc := feedback.NewService(fbStore, engine, bus, &config.Config{FeedbackRewardPoints: 100}, log)

	ctx := context.Background()

	// Landing-page signup.
	lead, err := engine.CreateLead(ctx, leadsvc.CreateLeadInput{Email: "a@x.com", Name: "A"})
	if err != nil {
		t.Fatalf("create lead failed: %v", err)
	}
	if lead.Status != domain.StatusNew || lead.Source != "lp" {
		t.Fatalf("lead = %+v, want status new and source lp", lead)
	}

	// Chat follow prompts for the registered email.
	follow := messaging.InboundEvent{Type: messaging.EventTypeFollow, ReplyToken: "r1"}
	follow.Source.UserID = "U1"
	chat.HandleEvent(ctx, follow)
	if len(replier.replies) != 1 || !strings.Contains(replier.replies[0], "email") {
		t.Fatalf("follow replies = %v, want an email prompt", replier.replies)
	}

	// The email message links the identity and moves the lead forward.
	msg := messaging.InboundEvent{Type: messaging.EventTypeMessage, ReplyToken: "r2"}
	msg.Source.UserID = "U1"
	msg.Message.Type = "text"
	msg.Message.Text = "a@x.com"
	chat.HandleEvent(ctx, msg)

	linked := leadStore.leads[lead.ID]
	if linked.Status != domain.StatusLinked {
		t.Fatalf("status = %q, want linked", linked.Status)
	}
	if linked.MessagingUserID == nil || *linked.MessagingUserID != "U1" {
		t.Fatal("messaging identity not bound to the lead")
	}

	// Checkout persists the session before any webhook can arrive.
	checkout, err := paySvc.CreateCheckout(ctx, payments.CreateCheckoutInput{LeadID: lead.ID, Amount: 5000, Currency: "jpy"})
	if err != nil {
		t.Fatalf("create checkout failed: %v", err)
	}
	if checkout.Payment.ProviderSessionID != "S1" || checkout.Payment.Status != payments.PaymentPending {
		t.Fatalf("payment = %+v, want pending session S1", checkout.Payment)
	}

	// Provider settles the session; the duplicate delivery changes nothing.
	body, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{"id": "S1"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	sig := payments.ComputeSignature("whsec_scenario", body, time.Now())

	if err := paySvc.HandleWebhook(ctx, body, sig, "ip"); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if payStore.payments["S1"].Status != payments.PaymentPaid {
		t.Fatalf("payment status = %q, want paid", payStore.payments["S1"].Status)
	}
	if leadStore.leads[lead.ID].Status != domain.StatusPaid {
		t.Fatalf("lead status = %q, want paid", leadStore.leads[lead.ID].Status)
	}

	if err := paySvc.HandleWebhook(ctx, body, sig, "ip"); err != nil {
		t.Fatalf("duplicate webhook errored: %v", err)
	}
	if payStore.payments["S1"].Status != payments.PaymentPaid || leadStore.leads[lead.ID].Status != domain.StatusPaid {
		t.Fatal("duplicate delivery changed state")
	}

	// Feedback closes the funnel with exactly one reward.
	result, err := fbSvc.SubmitFeedback(ctx, feedback.SubmitFeedbackInput{LeadID: lead.ID, Rating: 5, Comment: "great"})
	if err != nil {
		t.Fatalf("submit feedback failed: %v", err)
	}
	if result.PointsAwarded != 100 {
		t.Fatalf("points = %d, want 100", result.PointsAwarded)
	}
	if len(fbStore.rewards) != 1 {
		t.Fatalf("rewards = %d, want exactly one", len(fbStore.rewards))
	}
	if leadStore.leads[lead.ID].Status != domain.StatusFeedbackGiven {
		t.Fatalf("lead status = %q, want feedback_given", leadStore.leads[lead.ID].Status)
	}
}
