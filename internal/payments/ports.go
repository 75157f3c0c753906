package payments

import (
	"context"
	"time"

	"funnel_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// CheckoutSession is what the provider returns for a new checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutSessionInput describes the checkout to create at the provider.
type CheckoutSessionInput struct {
	Amount     int64
	Currency   string
	Reference  string
	SuccessURL string
	CancelURL  string
}

// ProviderClient talks to the payment provider. Implementations must
// translate transport failures into apperr.KindUnavailable.
type ProviderClient interface {
	CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (CheckoutSession, error)
}

// LeadGate is the slice of the lead lifecycle engine this module needs.
type LeadGate interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Advance(ctx context.Context, leadID uuid.UUID, target domain.Status) error
}

// DeadlineScheduler enqueues the delayed expiry of a checkout session that
// never settles.
type DeadlineScheduler interface {
	SchedulePaymentDeadline(ctx context.Context, sessionID string, delay time.Duration) error
}
