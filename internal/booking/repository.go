package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgExclusionViolation is the SQLSTATE raised by the bookings_no_overlap
// exclusion constraint.
const pgExclusionViolation = "23P01"

// Booking statuses. A booking is pending until the calendar collaborator
// acknowledges the event, then confirmed; cancellation is terminal.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

var (
	// ErrBookingNotFound is returned when no booking matches the given ID.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrSlotTaken is returned when an insert loses the race for a window to
	// a concurrent active booking.
	ErrSlotTaken = errors.New("slot already booked")
)

// Booking is a consultation slot reservation for a lead.
type Booking struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	SlotStart       time.Time
	SlotEnd         time.Time
	Status          string
	CalendarEventID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository persists bookings in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a booking repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bookingColumns = `id, lead_id, slot_start, slot_end, status, calendar_event_id, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.LeadID, &b.SlotStart, &b.SlotEnd, &b.Status, &b.CalendarEventID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Create inserts a new pending booking. The bookings_no_overlap exclusion
// constraint is the serialization point for concurrent inserts on the same
// window; losing that race returns ErrSlotTaken.
func (r *Repository) Create(ctx context.Context, leadID uuid.UUID, slotStart, slotEnd time.Time) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, lead_id, slot_start, slot_end, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+bookingColumns,
		uuid.New(), leadID, slotStart, slotEnd, BookingPending)
	b, err := scanBooking(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return b, nil
}

// GetByID fetches one booking.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

// HasActiveOverlap reports whether any pending or confirmed booking overlaps
// the given interval. Pending bookings count as taken so that two visitors
// cannot race for the same slot while the calendar call is in flight.
func (r *Repository) HasActiveOverlap(ctx context.Context, slotStart, slotEnd time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE status IN ($1, $2)
			  AND slot_start < $4
			  AND $3 < slot_end
		)`, BookingPending, BookingConfirmed, slotStart, slotEnd).Scan(&exists)
	return exists, err
}

// ListActiveWindows returns the occupied intervals of pending and confirmed
// bookings inside the given range.
func (r *Repository) ListActiveWindows(ctx context.Context, from, to time.Time) ([]Window, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_start, slot_end FROM bookings
		WHERE status IN ($1, $2)
		  AND slot_start < $4
		  AND $3 < slot_end
		ORDER BY slot_start`,
		BookingPending, BookingConfirmed, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []Window
	for rows.Next() {
		var w Window
		if err := rows.Scan(&w.Start, &w.End); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// Confirm moves a pending booking to confirmed, recording the calendar event
// ID. Returns false when the booking is no longer pending.
func (r *Repository) Confirm(ctx context.Context, id uuid.UUID, calendarEventID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $1, calendar_event_id = $2, updated_at = now()
		WHERE id = $3 AND status = $4`,
		BookingConfirmed, calendarEventID, id, BookingPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Cancel moves a booking to cancelled. Returns false when the booking was
// already cancelled; cancelling twice is a no-op, not an error.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status <> $1`,
		BookingCancelled, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
