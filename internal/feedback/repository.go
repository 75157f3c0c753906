package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrFeedbackNotFound is returned when no feedback matches the lookup.
var ErrFeedbackNotFound = errors.New("feedback not found")

// Feedback is one post-consultation response.
type Feedback struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// Reward is the points grant earned by a feedback submission. The feedback ID
// is the dedup key: one grant per feedback, ever.
type Reward struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	FeedbackID uuid.UUID
	Points     int
	Reason     string
	CreatedAt  time.Time
}

// Repository persists feedback and rewards in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a feedback repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateFeedback inserts a feedback row. Returns created=false when the ID
// already exists, which is how client-resubmitted forms collapse into the
// original submission.
func (r *Repository) CreateFeedback(ctx context.Context, id, leadID uuid.UUID, rating int, comment string) (created bool, err error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO feedbacks (id, lead_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		id, leadID, rating, comment)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetFeedback fetches one feedback row.
func (r *Repository) GetFeedback(ctx context.Context, id uuid.UUID) (*Feedback, error) {
	var f Feedback
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, rating, comment, created_at FROM feedbacks WHERE id = $1`, id).
		Scan(&f.ID, &f.LeadID, &f.Rating, &f.Comment, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFeedbackNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GrantReward inserts a reward for a feedback. Returns granted=false when the
// feedback already earned its reward or the lead already holds a reward for
// this reason.
func (r *Repository) GrantReward(ctx context.Context, leadID, feedbackID uuid.UUID, points int, reason string) (granted bool, err error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO rewards (id, lead_id, feedback_id, points, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		uuid.New(), leadID, feedbackID, points, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetRewardByFeedbackID fetches the reward granted for a feedback, if any.
func (r *Repository) GetRewardByFeedbackID(ctx context.Context, feedbackID uuid.UUID) (*Reward, error) {
	var rw Reward
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, feedback_id, points, reason, created_at
		FROM rewards WHERE feedback_id = $1`, feedbackID).
		Scan(&rw.ID, &rw.LeadID, &rw.FeedbackID, &rw.Points, &rw.Reason, &rw.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rw, nil
}

// TotalPoints sums the reward points a lead has accumulated.
func (r *Repository) TotalPoints(ctx context.Context, leadID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM rewards WHERE lead_id = $1`, leadID).Scan(&total)
	return total, err
}
