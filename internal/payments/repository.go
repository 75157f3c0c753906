package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Payment statuses. A payment is pending from checkout creation until a
// verified provider event settles it; paid, failed, and cancelled are
// terminal. Cancelled covers sessions that expired or were abandoned,
// failed covers sessions where the charge itself was declined.
const (
	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
)

// ErrPaymentNotFound is returned when no payment matches the lookup.
var ErrPaymentNotFound = errors.New("payment not found")

// Payment is one checkout attempt, keyed to the provider by session ID.
type Payment struct {
	ID                uuid.UUID
	LeadID            uuid.UUID
	ProviderSessionID string
	Amount            int64
	Currency          string
	Status            string
	CheckoutURL       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Repository persists payments and verified provider events in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const paymentColumns = `id, lead_id, provider_session_id, amount, currency, status, checkout_url, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.LeadID, &p.ProviderSessionID, &p.Amount, &p.Currency, &p.Status, &p.CheckoutURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreatePending records a fresh checkout session before the URL is handed to
// the visitor, so a webhook arriving first still finds its session.
func (r *Repository) CreatePending(ctx context.Context, leadID uuid.UUID, sessionID string, amount int64, currency, checkoutURL string) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO payments (id, lead_id, provider_session_id, amount, currency, status, checkout_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+paymentColumns,
		uuid.New(), leadID, sessionID, amount, currency, PaymentPending, checkoutURL)
	return scanPayment(row)
}

// FindBySessionID fetches the payment for a provider session.
func (r *Repository) FindBySessionID(ctx context.Context, sessionID string) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_session_id = $1`, sessionID)
	return scanPayment(row)
}

// GetByID fetches one payment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

// MarkTerminal moves a pending payment to a terminal status. Returns false
// when the payment was already settled, which is how duplicate provider
// deliveries collapse into a no-op.
func (r *Repository) MarkTerminal(ctx context.Context, sessionID, status string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET status = $1, updated_at = now()
		WHERE provider_session_id = $2 AND status = $3`,
		status, sessionID, PaymentPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecordEvent stores a verified provider event. Returns false for a replayed
// event ID, using the (provider, provider_event_id) unique constraint as the
// dedup ledger.
func (r *Repository) RecordEvent(ctx context.Context, provider, providerEventID, eventType string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_events (id, provider, provider_event_id, event_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		uuid.New(), provider, providerEventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
