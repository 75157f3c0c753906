// Package booking manages consultation slot discovery and reservation against
// the calendar collaborator.
package booking

import (
	"context"
	"fmt"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/leads/domain"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

// confirmRetryDelay is the backoff before a pending booking retries its
// calendar event creation.
const confirmRetryDelay = 2 * time.Minute

// Store is the persistence surface the booking service needs. *Repository
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	Create(ctx context.Context, leadID uuid.UUID, slotStart, slotEnd time.Time) (*Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	HasActiveOverlap(ctx context.Context, slotStart, slotEnd time.Time) (bool, error)
	ListActiveWindows(ctx context.Context, from, to time.Time) ([]Window, error)
	Confirm(ctx context.Context, id uuid.UUID, calendarEventID string) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service coordinates slot discovery and booking against the calendar.
type Service struct {
	store     Store
	calendar  CalendarClient
	leads     LeadGate
	scheduler ConfirmScheduler
	bus       events.Bus
	cfg       config.BookingConfig
	timeout   time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates the booking service.
func NewService(store Store, calendar CalendarClient, leads LeadGate, scheduler ConfirmScheduler, bus events.Bus, cfg config.BookingConfig, calCfg config.CalendarConfig, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		calendar:  calendar,
		leads:     leads,
		scheduler: scheduler,
		bus:       bus,
		cfg:       cfg,
		timeout:   calCfg.GetCollaboratorTimeout(),
		log:       log,
		now:       time.Now,
	}
}

// GetAvailableSlots returns the full slot grid for one day with availability
// flags. Busy intervals come from two sources: the calendar collaborator and
// our own pending or confirmed bookings.
func (s *Service) GetAvailableSlots(ctx context.Context, date time.Time) ([]Slot, error) {
	grid := BuildSlotGrid(date, s.cfg)
	if len(grid) == 0 {
		return []Slot{}, nil
	}
	from := grid[0].Start
	to := grid[len(grid)-1].End

	calCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	busy, err := s.calendar.ListBusyWindows(calCtx, from, to)
	if err != nil {
		s.log.CollaboratorError("calendar", "list_busy", err)
		if apperr.Is(err, apperr.KindUnavailable) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindUnavailable, "calendar is unavailable", err)
	}

	local, err := s.store.ListActiveWindows(ctx, from, to)
	if err != nil {
		s.log.DatabaseError("bookings.list_active", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load bookings", err)
	}

	MarkBusy(grid, append(busy, local...))
	return grid, nil
}

// CreateBookingInput carries a slot reservation request.
type CreateBookingInput struct {
	LeadID    uuid.UUID
	SlotStart time.Time
	SlotEnd   time.Time
	Email     string
	Name      string
}

// CreateBooking reserves a slot for a lead. The booking row is written before
// the calendar call: if the calendar is down the reservation survives as
// pending and a delayed retry finishes the confirmation, so the caller gets
// 503 with the booking ID rather than losing the slot.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (*Booking, error) {
	if !in.SlotStart.Before(in.SlotEnd) {
		return nil, apperr.Validation("slot start must be before slot end")
	}
	if in.SlotStart.Before(s.now()) {
		return nil, apperr.Validation("slot is in the past")
	}

	ok, err := s.leads.Exists(ctx, in.LeadID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("lead not found")
	}

	taken, err := s.store.HasActiveOverlap(ctx, in.SlotStart, in.SlotEnd)
	if err != nil {
		s.log.DatabaseError("bookings.overlap_check", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to check slot availability", err)
	}
	if taken {
		return nil, apperr.Conflict("slot is no longer available")
	}

	b, err := s.store.Create(ctx, in.LeadID, in.SlotStart, in.SlotEnd)
	if err == ErrSlotTaken {
		// Lost the insert race to a concurrent booking for the same window.
		return nil, apperr.Conflict("slot is no longer available")
	}
	if err != nil {
		s.log.DatabaseError("bookings.create", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create booking", err)
	}

	eventID, err := s.createCalendarEvent(ctx, b, in.Email, in.Name)
	if err != nil {
		s.log.CollaboratorError("calendar", "create_event", err)
		if schedErr := s.scheduler.ScheduleBookingConfirmRetry(ctx, b.ID, confirmRetryDelay); schedErr != nil {
			s.log.Error("failed to schedule booking confirm retry",
				"booking_id", b.ID.String(), "error", schedErr.Error())
		}
		return nil, apperr.Wrap(apperr.KindUnavailable, "calendar is unavailable, booking kept pending", err).
			WithDetails(map[string]string{"bookingId": b.ID.String()})
	}

	return s.settleConfirmed(ctx, b, eventID)
}

// ConfirmPending retries calendar event creation for a booking left pending
// by an earlier outage. Safe to call repeatedly; a booking that is no longer
// pending is left alone.
func (s *Service) ConfirmPending(ctx context.Context, bookingID uuid.UUID) error {
	b, err := s.store.GetByID(ctx, bookingID)
	if err == ErrBookingNotFound {
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to load booking", err)
	}
	if b.Status != BookingPending {
		return nil
	}

	eventID, err := s.createCalendarEvent(ctx, b, "", "")
	if err != nil {
		s.log.CollaboratorError("calendar", "create_event", err)
		return err
	}

	_, err = s.settleConfirmed(ctx, b, eventID)
	return err
}

// CancelBooking cancels a booking. Cancelling an already cancelled booking is
// a no-op; cancelling after the lead has paid is a state conflict because the
// money decision outranks the booking decision.
func (s *Service) CancelBooking(ctx context.Context, bookingID uuid.UUID, reason string) error {
	b, err := s.store.GetByID(ctx, bookingID)
	if err == ErrBookingNotFound {
		return apperr.NotFound("booking not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to load booking", err)
	}

	if err := s.leads.EnsureNotBeyond(ctx, b.LeadID, domain.StatusBooked); err != nil {
		return err
	}

	changed, err := s.store.Cancel(ctx, bookingID)
	if err != nil {
		s.log.DatabaseError("bookings.cancel", err)
		return apperr.Wrap(apperr.KindInternal, "failed to cancel booking", err)
	}
	if !changed {
		return nil
	}

	if b.CalendarEventID != nil {
		calCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.calendar.DeleteEvent(calCtx, *b.CalendarEventID); err != nil {
			// Best effort; the authoritative record is ours.
			s.log.CollaboratorError("calendar", "delete_event", err)
		}
	}

	s.bus.Publish(ctx, events.BookingCancelled{
		BaseEvent: events.NewBaseEvent(),
		BookingID: b.ID,
		LeadID:    b.LeadID,
		Reason:    reason,
	})
	return nil
}

// GetBooking fetches one booking.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err == ErrBookingNotFound {
		return nil, apperr.NotFound("booking not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load booking", err)
	}
	return b, nil
}

func (s *Service) createCalendarEvent(ctx context.Context, b *Booking, email, name string) (string, error) {
	summary := "Consultation"
	if name != "" {
		summary = fmt.Sprintf("Consultation: %s", name)
	}
	calCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.calendar.CreateEvent(calCtx, EventInput{
		Summary:     summary,
		Description: fmt.Sprintf("Lead %s", b.LeadID),
		Start:       b.SlotStart,
		End:         b.SlotEnd,
		Attendee:    email,
	})
}

func (s *Service) settleConfirmed(ctx context.Context, b *Booking, calendarEventID string) (*Booking, error) {
	confirmed, err := s.store.Confirm(ctx, b.ID, calendarEventID)
	if err != nil {
		s.log.DatabaseError("bookings.confirm", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to confirm booking", err)
	}
	if !confirmed {
		// Raced with a cancel or an earlier retry; current row wins.
		return s.GetBooking(ctx, b.ID)
	}

	if err := s.leads.Advance(ctx, b.LeadID, domain.StatusBooked); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.BookingConfirmed{
		BaseEvent: events.NewBaseEvent(),
		BookingID: b.ID,
		LeadID:    b.LeadID,
		SlotStart: b.SlotStart,
		SlotEnd:   b.SlotEnd,
	})

	b.Status = BookingConfirmed
	b.CalendarEventID = &calendarEventID
	return b, nil
}
