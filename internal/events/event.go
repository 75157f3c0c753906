// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"funnel_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when a new lead enters the funnel.
type LeadCreated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Source string    `json:"source"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadLinked is published when a messaging identity is bound to a lead.
type LeadLinked struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	MessagingUserID string    `json:"messagingUserId"`
	Email           string    `json:"email"`
}

func (e LeadLinked) EventName() string { return "leads.linked" }

// =============================================================================
// Booking Domain Events
// =============================================================================

// BookingConfirmed is published when the calendar collaborator acknowledges
// event creation and the booking becomes confirmed.
type BookingConfirmed struct {
	BaseEvent
	BookingID uuid.UUID `json:"bookingId"`
	LeadID    uuid.UUID `json:"leadId"`
	SlotStart time.Time `json:"slotStart"`
	SlotEnd   time.Time `json:"slotEnd"`
}

func (e BookingConfirmed) EventName() string { return "booking.confirmed" }

// BookingCancelled is published when a booking is cancelled.
type BookingCancelled struct {
	BaseEvent
	BookingID uuid.UUID `json:"bookingId"`
	LeadID    uuid.UUID `json:"leadId"`
	Reason    string    `json:"reason"`
}

func (e BookingCancelled) EventName() string { return "booking.cancelled" }

// =============================================================================
// Payment Domain Events
// =============================================================================

// PaymentCompleted is published when a provider webhook settles a payment as paid.
type PaymentCompleted struct {
	BaseEvent
	PaymentID         uuid.UUID `json:"paymentId"`
	LeadID            uuid.UUID `json:"leadId"`
	ProviderSessionID string    `json:"providerSessionId"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
}

func (e PaymentCompleted) EventName() string { return "payments.completed" }

// PaymentFailed is published when a provider webhook settles a payment as
// failed or the payment deadline expires.
type PaymentFailed struct {
	BaseEvent
	PaymentID         uuid.UUID `json:"paymentId"`
	LeadID            uuid.UUID `json:"leadId"`
	ProviderSessionID string    `json:"providerSessionId"`
	Reason            string    `json:"reason"`
}

func (e PaymentFailed) EventName() string { return "payments.failed" }

// =============================================================================
// Feedback Domain Events
// =============================================================================

// FeedbackSubmitted is published when feedback is persisted and its reward granted.
type FeedbackSubmitted struct {
	BaseEvent
	FeedbackID    uuid.UUID `json:"feedbackId"`
	LeadID        uuid.UUID `json:"leadId"`
	Rating        int       `json:"rating"`
	PointsAwarded int       `json:"pointsAwarded"`
}

func (e FeedbackSubmitted) EventName() string { return "feedback.submitted" }
