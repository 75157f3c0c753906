package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"funnel_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no lead matches the lookup.
	ErrNotFound = errors.New("lead not found")
	// ErrIdentityTaken is returned when the messaging identity is already
	// bound to some lead (unique index violation).
	ErrIdentityTaken = errors.New("messaging identity already bound")
	// ErrAlreadyBound is returned when the lead already carries a
	// messaging identity.
	ErrAlreadyBound = errors.New("lead already has a messaging identity")
)

const pgUniqueViolation = "23505"

// Lead is the authoritative prospect record.
type Lead struct {
	ID              uuid.UUID
	Email           string
	Name            string
	Phone           *string
	Source          string
	MessagingUserID *string
	Status          domain.Status
	PublicToken     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, email, name, phone, source, messaging_user_id, status, public_token, created_at, updated_at`

func scanLead(row pgx.Row) (*Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Email, &lead.Name, &lead.Phone, &lead.Source,
		&lead.MessagingUserID, &lead.Status, &lead.PublicToken,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// Create inserts a new lead in status "new".
func (r *Repository) Create(ctx context.Context, email, name string, phone *string, source string) (*Lead, error) {
	token, err := newPublicToken()
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (id, email, name, phone, source, status, public_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+leadColumns,
		uuid.New(), email, name, phone, source, domain.StatusNew, token)

	return scanLead(row)
}

// GetByID fetches a lead by primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// FindByEmail returns the most recently created lead for the email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE lower(email) = lower($1)
		ORDER BY created_at DESC
		LIMIT 1`, email)
	return scanLead(row)
}

// FindByMessagingUserID returns the lead bound to the messaging identity.
func (r *Repository) FindByMessagingUserID(ctx context.Context, messagingUserID string) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE messaging_user_id = $1`, messagingUserID)
	return scanLead(row)
}

// BindMessagingUser sets the messaging identity on a lead. The identity is
// set at most once per lead (guarded by the IS NULL predicate) and maps to at
// most one lead (guarded by the unique index on messaging_user_id).
func (r *Repository) BindMessagingUser(ctx context.Context, leadID uuid.UUID, messagingUserID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET messaging_user_id = $2, updated_at = now()
		WHERE id = $1 AND messaging_user_id IS NULL`,
		leadID, messagingUserID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrIdentityTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		current, err := r.GetByID(ctx, leadID)
		if err != nil {
			return err
		}
		if current.MessagingUserID != nil && *current.MessagingUserID == messagingUserID {
			return nil // same identity, retried bind
		}
		return ErrAlreadyBound
	}
	return nil
}

// AdvanceStatus performs a compare-and-swap on the lead status. It returns
// true when this call applied the transition, false when the row no longer
// matched the expected prior status (some concurrent writer won).
func (r *Repository) AdvanceStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func newPublicToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
