package booking

import (
	"context"
	"time"

	"funnel_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Window is a busy interval reported by the calendar collaborator.
type Window struct {
	Start time.Time
	End   time.Time
}

// EventInput describes the calendar event created for a confirmed booking.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendee    string
}

// CalendarClient talks to the calendar collaborator. Implementations must
// translate transport failures into apperr.KindUnavailable so callers can
// distinguish "calendar is down" from "calendar said no".
type CalendarClient interface {
	ListBusyWindows(ctx context.Context, from, to time.Time) ([]Window, error)
	CreateEvent(ctx context.Context, input EventInput) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// LeadGate is the slice of the lead lifecycle engine this module needs.
type LeadGate interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Advance(ctx context.Context, leadID uuid.UUID, target domain.Status) error
	EnsureNotBeyond(ctx context.Context, leadID uuid.UUID, limit domain.Status) error
}

// ConfirmScheduler enqueues a delayed retry for bookings left pending after a
// calendar outage.
type ConfirmScheduler interface {
	ScheduleBookingConfirmRetry(ctx context.Context, bookingID uuid.UUID, delay time.Duration) error
}
